package changes

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

type ChangeRequestRepo interface {
	Create(dbc dbctx.Context, rows []*domain.ChangeRequest) ([]*domain.ChangeRequest, error)

	GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ChangeRequest, error)
	LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.ChangeRequest, error)

	UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error

	List(dbc dbctx.Context, filter ChangeRequestFilter) ([]*domain.ChangeRequest, error)
	CountByStatus(dbc dbctx.Context) (map[domain.ChangeRequestStatus]int64, error)
	CountByPriority(dbc dbctx.Context) (map[domain.ChangeRequestPriority]int64, error)
}

type ChangeRequestFilter struct {
	Statuses   []domain.ChangeRequestStatus
	Priority   *domain.ChangeRequestPriority
	DocumentID *uuid.UUID
	Limit      int
	Offset     int
}

type changeRequestRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewChangeRequestRepo(db *gorm.DB, baseLog *logger.Logger) ChangeRequestRepo {
	return &changeRequestRepo{db: db, log: baseLog.With("repo", "ChangeRequestRepo")}
}

func (r *changeRequestRepo) Create(dbc dbctx.Context, rows []*domain.ChangeRequest) ([]*domain.ChangeRequest, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if len(rows) == 0 {
		return []*domain.ChangeRequest{}, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *changeRequestRepo) GetByID(dbc dbctx.Context, id uuid.UUID) (*domain.ChangeRequest, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.ChangeRequest
	if err := t.WithContext(dbc.Ctx).Where("id = ?", id).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

func (r *changeRequestRepo) LockByID(dbc dbctx.Context, id uuid.UUID) (*domain.ChangeRequest, error) {
	if id == uuid.Nil {
		return nil, nil
	}
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var row domain.ChangeRequest
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

func (r *changeRequestRepo) UpdateFields(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) error {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if id == uuid.Nil || len(updates) == 0 {
		return nil
	}
	return t.WithContext(dbc.Ctx).
		Model(&domain.ChangeRequest{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *changeRequestRepo) List(dbc dbctx.Context, filter ChangeRequestFilter) ([]*domain.ChangeRequest, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	q := t.WithContext(dbc.Ctx).Model(&domain.ChangeRequest{})
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN ?", filter.Statuses)
	}
	if filter.Priority != nil {
		q = q.Where("priority = ?", *filter.Priority)
	}
	if filter.DocumentID != nil && *filter.DocumentID != uuid.Nil {
		q = q.Where("document_id = ?", *filter.DocumentID)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	var out []*domain.ChangeRequest
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *changeRequestRepo) CountByStatus(dbc dbctx.Context) (map[domain.ChangeRequestStatus]int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	type row struct {
		Status domain.ChangeRequestStatus
		Count  int64
	}
	var rows []row
	err := t.WithContext(dbc.Ctx).
		Model(&domain.ChangeRequest{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ChangeRequestStatus]int64, len(rows))
	for _, rr := range rows {
		out[rr.Status] = rr.Count
	}
	return out, nil
}

func (r *changeRequestRepo) CountByPriority(dbc dbctx.Context) (map[domain.ChangeRequestPriority]int64, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	type row struct {
		Priority domain.ChangeRequestPriority
		Count    int64
	}
	var rows []row
	err := t.WithContext(dbc.Ctx).
		Model(&domain.ChangeRequest{}).
		Select("priority, count(*) as count").
		Group("priority").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[domain.ChangeRequestPriority]int64, len(rows))
	for _, rr := range rows {
		out[rr.Priority] = rr.Count
	}
	return out, nil
}
