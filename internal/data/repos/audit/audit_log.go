package audit

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

// AuditLogRepo is append-and-read-only. Append is always called from inside
// the mutating transaction of a lifecycle engine; there is deliberately no
// update or delete method.
type AuditLogRepo interface {
	Append(dbc dbctx.Context, entry *domain.AuditLogEntry) (*domain.AuditLogEntry, error)

	ListByEntity(dbc dbctx.Context, entityType domain.AuditEntityType, entityID uuid.UUID, filter EntryFilter) ([]*domain.AuditLogEntry, error)
	ListByActor(dbc dbctx.Context, actorID uuid.UUID, limit, offset int) ([]*domain.AuditLogEntry, error)
	ListRecent(dbc dbctx.Context, limit int) ([]*domain.AuditLogEntry, error)

	StatsByEntity(dbc dbctx.Context, entityType domain.AuditEntityType, entityID uuid.UUID) (*EntryStats, error)
}

type EntryFilter struct {
	Actions []domain.AuditAction
	From    *time.Time
	To      *time.Time
	Limit   int
	Offset  int
}

// EntryStats is derived at read time; there is no separate write path.
type EntryStats struct {
	Total        int64                        `json:"total"`
	ByAction     map[domain.AuditAction]int64 `json:"by_action"`
	UniqueActors int64                        `json:"unique_actors"`
	FirstEntry   *time.Time                   `json:"first_entry,omitempty"`
	LastEntry    *time.Time                   `json:"last_entry,omitempty"`
}

type auditLogRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAuditLogRepo(db *gorm.DB, baseLog *logger.Logger) AuditLogRepo {
	return &auditLogRepo{db: db, log: baseLog.With("repo", "AuditLogRepo")}
}

func (r *auditLogRepo) Append(dbc dbctx.Context, entry *domain.AuditLogEntry) (*domain.AuditLogEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if entry == nil {
		return nil, nil
	}
	if err := t.WithContext(dbc.Ctx).Create(entry).Error; err != nil {
		return nil, err
	}
	return entry, nil
}

func (r *auditLogRepo) ListByEntity(dbc dbctx.Context, entityType domain.AuditEntityType, entityID uuid.UUID, filter EntryFilter) ([]*domain.AuditLogEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.AuditLogEntry
	if entityID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityID)
	if len(filter.Actions) > 0 {
		q = q.Where("action IN ?", filter.Actions)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", *filter.To)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *auditLogRepo) ListByActor(dbc dbctx.Context, actorID uuid.UUID, limit, offset int) ([]*domain.AuditLogEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	var out []*domain.AuditLogEntry
	if actorID == uuid.Nil {
		return out, nil
	}
	q := t.WithContext(dbc.Ctx).Where("actor_id = ?", actorID)
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	if err := q.Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *auditLogRepo) ListRecent(dbc dbctx.Context, limit int) ([]*domain.AuditLogEntry, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var out []*domain.AuditLogEntry
	err := t.WithContext(dbc.Ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *auditLogRepo) StatsByEntity(dbc dbctx.Context, entityType domain.AuditEntityType, entityID uuid.UUID) (*EntryStats, error) {
	t := dbc.Tx
	if t == nil {
		t = r.db
	}
	if entityID == uuid.Nil {
		return &EntryStats{ByAction: map[domain.AuditAction]int64{}}, nil
	}

	type actionRow struct {
		Action domain.AuditAction
		Count  int64
	}
	var actionRows []actionRow
	err := t.WithContext(dbc.Ctx).
		Model(&domain.AuditLogEntry{}).
		Select("action, count(*) as count").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Group("action").
		Scan(&actionRows).Error
	if err != nil {
		return nil, err
	}

	stats := &EntryStats{ByAction: make(map[domain.AuditAction]int64, len(actionRows))}
	for _, ar := range actionRows {
		stats.ByAction[ar.Action] = ar.Count
		stats.Total += ar.Count
	}

	if stats.Total == 0 {
		return stats, nil
	}

	type boundsRow struct {
		Actors int64
		First  time.Time
		Last   time.Time
	}
	var bounds boundsRow
	err = t.WithContext(dbc.Ctx).
		Model(&domain.AuditLogEntry{}).
		Select("count(distinct actor_id) as actors, min(created_at) as first, max(created_at) as last").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		Scan(&bounds).Error
	if err != nil {
		return nil, err
	}
	stats.UniqueActors = bounds.Actors
	first := bounds.First
	last := bounds.Last
	stats.FirstEntry = &first
	stats.LastEntry = &last
	return stats, nil
}
