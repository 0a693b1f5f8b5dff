package approvals

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

// ApprovalRepo serves both lifecycle engines; rows are scoped either to one
// document version or to one change request.
type ApprovalRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Approval) ([]*domain.Approval, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Approval, error)

	ListByDocumentVersionID(dbc dbctx.Context, versionID uuid.UUID) ([]*domain.Approval, error)
	ListByChangeRequestID(dbc dbctx.Context, requestID uuid.UUID) ([]*domain.Approval, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	// DeleteByIDs removes superseded rows when a round is reopened with a
	// different decider set.
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error

	// UpdatePendingByVersion bulk-updates still-pending rows of one version,
	// returning how many were touched.
	UpdatePendingByVersion(dbc dbctx.Context, versionID uuid.UUID, updates map[string]interface{}) (int64, error)
	UpdatePendingByChangeRequest(dbc dbctx.Context, requestID uuid.UUID, updates map[string]interface{}) (int64, error)
}

type approvalRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApprovalRepo(db *gorm.DB, baseLog *logger.Logger) ApprovalRepo {
	return &approvalRepo{db: db, log: baseLog.With("repo", "ApprovalRepo")}
}

func (r *approvalRepo) Create(dbc dbctx.Context, rows []*domain.Approval) ([]*domain.Approval, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*domain.Approval{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *approvalRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Approval, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.Approval
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *approvalRepo) ListByDocumentVersionID(dbc dbctx.Context, versionID uuid.UUID) ([]*domain.Approval, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.Approval
	if versionID == uuid.Nil {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("document_version_id = ?", versionID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *approvalRepo) ListByChangeRequestID(dbc dbctx.Context, requestID uuid.UUID) ([]*domain.Approval, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.Approval
	if requestID == uuid.Nil {
		return out, nil
	}
	err := t.WithContext(dbc.Ctx).
		Where("change_request_id = ?", requestID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *approvalRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&domain.Approval{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *approvalRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(ids) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Where("id IN ?", ids).
		Delete(&domain.Approval{}).Error
}

func (r *approvalRepo) UpdatePendingByVersion(dbc dbctx.Context, versionID uuid.UUID, updates map[string]interface{}) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if versionID == uuid.Nil || len(updates) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Model(&domain.Approval{}).
		Where("document_version_id = ? AND status = ?", versionID, domain.ApprovalStatusPending).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *approvalRepo) UpdatePendingByChangeRequest(dbc dbctx.Context, requestID uuid.UUID, updates map[string]interface{}) (int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if requestID == uuid.Nil || len(updates) == 0 {
		return 0, nil
	}
	res := t.WithContext(dbc.Ctx).
		Model(&domain.Approval{}).
		Where("change_request_id = ? AND status = ?", requestID, domain.ApprovalStatusPending).
		Updates(updates)
	return res.RowsAffected, res.Error
}
