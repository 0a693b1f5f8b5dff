package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	auditrepo "github.com/veridian-labs/doccontrol-backend/internal/data/repos/audit"
	types "github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
)

func TestAuditQueryGetTrailValidatesInput(t *testing.T) {
	entries := &fakeAuditLogRepo{}
	svc := NewAuditQueryService(nil, testLogger(t), entries)
	ctx := context.Background()

	if _, err := svc.GetTrail(ctx, "widget", uuid.New(), auditrepo.EntryFilter{}); err == nil {
		t.Fatalf("expected error for unknown entity type")
	}
	if _, err := svc.GetTrail(ctx, types.AuditEntityDocument, uuid.Nil, auditrepo.EntryFilter{}); err == nil {
		t.Fatalf("expected error for missing entity id")
	}
	if _, err := svc.GetTrail(ctx, types.AuditEntityDocument, uuid.New(), auditrepo.EntryFilter{
		Actions: []types.AuditAction{"made_it_up"},
	}); err == nil {
		t.Fatalf("expected error for unknown action")
	}
	if entries.listByEntityCalls != 0 {
		t.Fatalf("repo must not be consulted on invalid input, got %d calls", entries.listByEntityCalls)
	}

	if _, err := svc.GetTrail(ctx, types.AuditEntityDocument, uuid.New(), auditrepo.EntryFilter{
		Actions: []types.AuditAction{types.ActionApprove},
	}); err != nil {
		t.Fatalf("GetTrail: %v", err)
	}
	if entries.listByEntityCalls != 1 {
		t.Fatalf("list calls: want=1 got=%d", entries.listByEntityCalls)
	}
}

func TestAuditQueryGetByActorRequiresActor(t *testing.T) {
	svc := NewAuditQueryService(nil, testLogger(t), &fakeAuditLogRepo{})
	if _, err := svc.GetByActor(context.Background(), uuid.Nil, 10, 0); err == nil {
		t.Fatalf("expected error for missing actor")
	}
}

func TestAuditQueryGetStatsDelegates(t *testing.T) {
	now := time.Now().UTC()
	entries := &fakeAuditLogRepo{
		stats: &auditrepo.EntryStats{
			Total:        3,
			ByAction:     map[types.AuditAction]int64{types.ActionApprove: 2, types.ActionReject: 1},
			UniqueActors: 2,
			FirstEntry:   &now,
			LastEntry:    &now,
		},
	}
	svc := NewAuditQueryService(nil, testLogger(t), entries)

	stats, err := svc.GetStats(context.Background(), types.AuditEntityChangeRequest, uuid.New())
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.Total != 3 {
		t.Fatalf("total: want=3 got=%d", stats.Total)
	}
	if stats.ByAction[types.ActionApprove] != 2 {
		t.Fatalf("approve count: want=2 got=%d", stats.ByAction[types.ActionApprove])
	}
}

type fakeAuditLogRepo struct {
	listByEntityCalls int
	trail             []*types.AuditLogEntry
	stats             *auditrepo.EntryStats
}

func (f *fakeAuditLogRepo) Append(_ dbctx.Context, entry *types.AuditLogEntry) (*types.AuditLogEntry, error) {
	return entry, nil
}

func (f *fakeAuditLogRepo) ListByEntity(_ dbctx.Context, _ types.AuditEntityType, _ uuid.UUID, _ auditrepo.EntryFilter) ([]*types.AuditLogEntry, error) {
	f.listByEntityCalls++
	return f.trail, nil
}

func (f *fakeAuditLogRepo) ListByActor(_ dbctx.Context, _ uuid.UUID, _, _ int) ([]*types.AuditLogEntry, error) {
	return nil, nil
}

func (f *fakeAuditLogRepo) ListRecent(_ dbctx.Context, _ int) ([]*types.AuditLogEntry, error) {
	return nil, nil
}

func (f *fakeAuditLogRepo) StatsByEntity(_ dbctx.Context, _ types.AuditEntityType, _ uuid.UUID) (*auditrepo.EntryStats, error) {
	return f.stats, nil
}
