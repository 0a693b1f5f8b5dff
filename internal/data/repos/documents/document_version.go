package documents

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

type DocumentVersionRepo interface {
	Create(dbc dbctx.Context, rows []*domain.DocumentVersion) ([]*domain.DocumentVersion, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DocumentVersion, error)
	ListByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*domain.DocumentVersion, error)

	// GetMaxVersionNumber returns 0 when the document has no versions yet.
	GetMaxVersionNumber(dbc dbctx.Context, documentID uuid.UUID) (int, error)
}

type documentVersionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentVersionRepo(db *gorm.DB, baseLog *logger.Logger) DocumentVersionRepo {
	return &documentVersionRepo{db: db, log: baseLog.With("repo", "DocumentVersionRepo")}
}

func (r *documentVersionRepo) Create(dbc dbctx.Context, rows []*domain.DocumentVersion) ([]*domain.DocumentVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*domain.DocumentVersion{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *documentVersionRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.DocumentVersion, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.DocumentVersion
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *documentVersionRepo) ListByDocumentID(dbc dbctx.Context, documentID uuid.UUID) ([]*domain.DocumentVersion, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.DocumentVersion
	if documentID == uuid.Nil {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("document_id = ?", documentID).
		Order("version_number DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentVersionRepo) GetMaxVersionNumber(dbc dbctx.Context, documentID uuid.UUID) (int, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if documentID == uuid.Nil {
		return 0, nil
	}
	var max *int
	err := t.WithContext(dbc.Ctx).
		Model(&domain.DocumentVersion{}).
		Where("document_id = ?", documentID).
		Select("MAX(version_number)").
		Scan(&max).Error
	if err != nil {
		return 0, err
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}
