package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	auditrepo "github.com/veridian-labs/doccontrol-backend/internal/data/repos/audit"
	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

// AuditQueryService is the read side of the ledger. The write side lives
// inside the lifecycle engines and is not exposed here.
type AuditQueryService interface {
	GetTrail(ctx context.Context, entityType domain.AuditEntityType, entityID uuid.UUID, filter auditrepo.EntryFilter) ([]*domain.AuditLogEntry, error)
	GetByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*domain.AuditLogEntry, error)
	GetRecent(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error)
	GetStats(ctx context.Context, entityType domain.AuditEntityType, entityID uuid.UUID) (*auditrepo.EntryStats, error)
}

type auditQueryService struct {
	db      *gorm.DB
	log     *logger.Logger
	entries auditrepo.AuditLogRepo
}

func NewAuditQueryService(db *gorm.DB, baseLog *logger.Logger, entries auditrepo.AuditLogRepo) AuditQueryService {
	return &auditQueryService{
		db:      db,
		log:     baseLog.With("service", "AuditQueryService"),
		entries: entries,
	}
}

func (s *auditQueryService) GetTrail(ctx context.Context, entityType domain.AuditEntityType, entityID uuid.UUID, filter auditrepo.EntryFilter) ([]*domain.AuditLogEntry, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("audit query service not configured")
	}
	if entityType != domain.AuditEntityDocument && entityType != domain.AuditEntityChangeRequest {
		return nil, fmt.Errorf("unknown entity type: %s", entityType)
	}
	if entityID == uuid.Nil {
		return nil, fmt.Errorf("missing entity_id")
	}
	for _, action := range filter.Actions {
		if !domain.KnownAuditAction(action) {
			return nil, fmt.Errorf("unknown action: %s", action)
		}
	}
	return s.entries.ListByEntity(dbctx.Context{Ctx: ctx}, entityType, entityID, filter)
}

func (s *auditQueryService) GetByActor(ctx context.Context, actorID uuid.UUID, limit, offset int) ([]*domain.AuditLogEntry, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("audit query service not configured")
	}
	if actorID == uuid.Nil {
		return nil, fmt.Errorf("missing actor_id")
	}
	return s.entries.ListByActor(dbctx.Context{Ctx: ctx}, actorID, limit, offset)
}

func (s *auditQueryService) GetRecent(ctx context.Context, limit int) ([]*domain.AuditLogEntry, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("audit query service not configured")
	}
	return s.entries.ListRecent(dbctx.Context{Ctx: ctx}, limit)
}

func (s *auditQueryService) GetStats(ctx context.Context, entityType domain.AuditEntityType, entityID uuid.UUID) (*auditrepo.EntryStats, error) {
	if s == nil || s.entries == nil {
		return nil, fmt.Errorf("audit query service not configured")
	}
	if entityType != domain.AuditEntityDocument && entityType != domain.AuditEntityChangeRequest {
		return nil, fmt.Errorf("unknown entity type: %s", entityType)
	}
	if entityID == uuid.Nil {
		return nil, fmt.Errorf("missing entity_id")
	}
	return s.entries.StatsByEntity(dbctx.Context{Ctx: ctx}, entityType, entityID)
}
