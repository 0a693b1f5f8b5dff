package documents

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

type DocumentRepo interface {
	Create(dbc dbctx.Context, rows []*domain.Document) ([]*domain.Document, error)

	GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Document, error)
	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Document, error)

	LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Document, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	List(dbc dbctx.Context, filter DocumentFilter) ([]*domain.Document, error)
	ListDueBefore(dbc dbctx.Context, before time.Time, limit int) ([]*domain.Document, error)
	ListDueWithin(dbc dbctx.Context, from, to time.Time, limit int) ([]*domain.Document, error)
	CountByStatus(dbc dbctx.Context) (map[domain.DocumentStatus]int64, error)
}

type DocumentFilter struct {
	Statuses []domain.DocumentStatus
	OwnerID  *uuid.UUID
	Limit    int
	Offset   int
}

type documentRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewDocumentRepo(db *gorm.DB, baseLog *logger.Logger) DocumentRepo {
	return &documentRepo{db: db, log: baseLog.With("repo", "DocumentRepo")}
}

func (r *documentRepo) Create(dbc dbctx.Context, rows []*domain.Document) ([]*domain.Document, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*domain.Document{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *documentRepo) GetByIDs(dbc dbctx.Context, ids []uuid.UUID) ([]*domain.Document, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.Document
	if len(ids) == 0 {
		return out, nil
	}
	if err := t.WithContext(dbc.Ctx).Where("id IN ?", ids).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.Document, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	rows, err := r.GetByIDs(dbc, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *documentRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.Document, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.Document
	err := t.WithContext(dbc.Ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *documentRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&domain.Document{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *documentRepo) List(dbc dbctx.Context, filter DocumentFilter) ([]*domain.Document, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Model(&domain.Document{})
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.OwnerID != nil && *filter.OwnerID != uuid.Nil {
		q = q.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var out []*domain.Document
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) ListDueBefore(dbc dbctx.Context, before time.Time, limit int) ([]*domain.Document, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).
		Where("status = ?", domain.DocumentStatusApproved).
		Where("next_review_date IS NOT NULL AND next_review_date < ?", before).
		Order("next_review_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*domain.Document
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) ListDueWithin(dbc dbctx.Context, from, to time.Time, limit int) ([]*domain.Document, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).
		Where("status = ?", domain.DocumentStatusApproved).
		Where("next_review_date >= ? AND next_review_date < ?", from, to).
		Order("next_review_date ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []*domain.Document
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *documentRepo) CountByStatus(dbc dbctx.Context) (map[domain.DocumentStatus]int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	type row struct {
		Status domain.DocumentStatus
		Count  int64
	}
	var rows []row
	err := t.WithContext(dbc.Ctx).
		Model(&domain.Document{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.DocumentStatus]int64, len(rows))
	for _, rr := range rows {
		out[rr.Status] = rr.Count
	}
	return out, nil
}
