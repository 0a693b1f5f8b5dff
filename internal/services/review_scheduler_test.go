package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/veridian-labs/doccontrol-backend/internal/data/repos/documents"
	types "github.com/veridian-labs/doccontrol-backend/internal/domain"
	domainagg "github.com/veridian-labs/doccontrol-backend/internal/domain/aggregates"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return log
}

func overdueDoc(daysOverdue int, asOf time.Time) *types.Document {
	due := asOf.AddDate(0, 0, -daysOverdue)
	return &types.Document{
		ID:             uuid.New(),
		Status:         types.DocumentStatusApproved,
		NextReviewDate: &due,
	}
}

func TestReviewSchedulerListOverdueBuckets(t *testing.T) {
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	docs := &fakeDocumentRepo{
		dueBefore: []*types.Document{
			overdueDoc(3, asOf),
			overdueDoc(14, asOf),
			overdueDoc(120, asOf),
		},
	}
	svc := NewReviewSchedulerService(nil, testLogger(t), docs, &fakeDocumentAggregate{}, nil)

	out, err := svc.ListOverdue(context.Background(), asOf, 0)
	if err != nil {
		t.Fatalf("ListOverdue: %v", err)
	}
	if len(out) != 3 {
		t.Fatalf("overdue count: want=3 got=%d", len(out))
	}
	if out[0].DaysOverdue != 3 || out[0].Bucket != types.OverdueBucketWeek {
		t.Fatalf("first bucket: got=%d/%s", out[0].DaysOverdue, out[0].Bucket)
	}
	if out[1].Bucket != types.OverdueBucketMonth {
		t.Fatalf("second bucket: want=%s got=%s", types.OverdueBucketMonth, out[1].Bucket)
	}
	if out[2].Bucket != types.OverdueBucketBeyond {
		t.Fatalf("third bucket: want=%s got=%s", types.OverdueBucketBeyond, out[2].Bucket)
	}
	if docs.dueBeforeLimit != defaultSweepLimit {
		t.Fatalf("limit default: want=%d got=%d", defaultSweepLimit, docs.dueBeforeLimit)
	}
}

func TestReviewSchedulerSweepIsolatesFailures(t *testing.T) {
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	good := overdueDoc(10, asOf)
	bad := overdueDoc(20, asOf)
	docs := &fakeDocumentRepo{dueBefore: []*types.Document{good, bad, overdueDoc(30, asOf)}}
	agg := &fakeDocumentAggregate{failTrigger: map[uuid.UUID]error{
		bad.ID: domainagg.NewError(domainagg.CodePreconditionFailed, "op", "raced out of approved", nil),
	}}
	svc := NewReviewSchedulerService(nil, testLogger(t), docs, agg, nil)

	actor := uuid.New()
	result, err := svc.RunOverdueSweep(context.Background(), actor, asOf, 0)
	if err != nil {
		t.Fatalf("RunOverdueSweep: %v", err)
	}
	if len(result.Triggered) != 2 {
		t.Fatalf("triggered: want=2 got=%d", len(result.Triggered))
	}
	if len(result.Failed) != 1 || result.Failed[0] != bad.ID {
		t.Fatalf("failed: want=[%s] got=%v", bad.ID, result.Failed)
	}
	if agg.triggerCalls != 3 {
		t.Fatalf("trigger calls: want=3 got=%d", agg.triggerCalls)
	}
	if agg.lastActor != actor {
		t.Fatalf("actor: want=%s got=%s", actor, agg.lastActor)
	}
}

func TestReviewSchedulerSweepRequiresActor(t *testing.T) {
	svc := NewReviewSchedulerService(nil, testLogger(t), &fakeDocumentRepo{}, &fakeDocumentAggregate{}, nil)
	if _, err := svc.RunOverdueSweep(context.Background(), uuid.Nil, time.Time{}, 0); err == nil {
		t.Fatalf("expected error for missing actor")
	}
}

func TestReviewSchedulerListUpcomingWindow(t *testing.T) {
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	docs := &fakeDocumentRepo{}
	svc := NewReviewSchedulerService(nil, testLogger(t), docs, &fakeDocumentAggregate{}, nil)

	if _, err := svc.ListUpcoming(context.Background(), asOf, 0, 0); err != nil {
		t.Fatalf("ListUpcoming: %v", err)
	}
	wantTo := asOf.AddDate(0, 0, 30)
	if !docs.dueWithinFrom.Equal(asOf) || !docs.dueWithinTo.Equal(wantTo) {
		t.Fatalf("window: want=[%s, %s] got=[%s, %s]", asOf, wantTo, docs.dueWithinFrom, docs.dueWithinTo)
	}
}

type fakeDocumentRepo struct {
	dueBefore      []*types.Document
	dueBeforeLimit int
	dueWithin      []*types.Document
	dueWithinFrom  time.Time
	dueWithinTo    time.Time
	byStatus       map[types.DocumentStatus]int64
	listed         []*types.Document
}

func (f *fakeDocumentRepo) Create(_ dbctx.Context, rows []*types.Document) ([]*types.Document, error) {
	return rows, nil
}

func (f *fakeDocumentRepo) GetByIDs(_ dbctx.Context, _ []uuid.UUID) ([]*types.Document, error) {
	return nil, nil
}

func (f *fakeDocumentRepo) GetByID(_ dbctx.Context, _ uuid.UUID) (*types.Document, error) {
	return nil, nil
}

func (f *fakeDocumentRepo) LockByID(_ dbctx.Context, _ uuid.UUID) (*types.Document, error) {
	return nil, nil
}

func (f *fakeDocumentRepo) UpdateFields(_ dbctx.Context, _ uuid.UUID, _ map[string]interface{}) error {
	return nil
}

func (f *fakeDocumentRepo) List(_ dbctx.Context, _ documents.DocumentFilter) ([]*types.Document, error) {
	return f.listed, nil
}

func (f *fakeDocumentRepo) ListDueBefore(_ dbctx.Context, _ time.Time, limit int) ([]*types.Document, error) {
	f.dueBeforeLimit = limit
	return f.dueBefore, nil
}

func (f *fakeDocumentRepo) ListDueWithin(_ dbctx.Context, from, to time.Time, _ int) ([]*types.Document, error) {
	f.dueWithinFrom = from
	f.dueWithinTo = to
	return f.dueWithin, nil
}

func (f *fakeDocumentRepo) CountByStatus(_ dbctx.Context) (map[types.DocumentStatus]int64, error) {
	return f.byStatus, nil
}

type fakeDocumentAggregate struct {
	triggerCalls int
	lastActor    uuid.UUID
	failTrigger  map[uuid.UUID]error
}

func (f *fakeDocumentAggregate) Contract() domainagg.Contract {
	return domainagg.DocumentAggregateContract
}

func (f *fakeDocumentAggregate) CreateDocument(_ context.Context, _ domainagg.CreateDocumentInput) (domainagg.DocumentState, error) {
	return domainagg.DocumentState{}, nil
}

func (f *fakeDocumentAggregate) CreateVersion(_ context.Context, _ domainagg.CreateVersionInput) (domainagg.CreateVersionResult, error) {
	return domainagg.CreateVersionResult{}, nil
}

func (f *fakeDocumentAggregate) SubmitForReview(_ context.Context, _ domainagg.SubmitRoundInput) (domainagg.DocumentState, error) {
	return domainagg.DocumentState{}, nil
}

func (f *fakeDocumentAggregate) SubmitForApproval(_ context.Context, _ domainagg.SubmitRoundInput) (domainagg.DocumentState, error) {
	return domainagg.DocumentState{}, nil
}

func (f *fakeDocumentAggregate) Approve(_ context.Context, _ domainagg.ApproveDocumentInput) (domainagg.DocumentState, error) {
	return domainagg.DocumentState{}, nil
}

func (f *fakeDocumentAggregate) Reject(_ context.Context, _ domainagg.RejectDocumentInput) (domainagg.DocumentState, error) {
	return domainagg.DocumentState{}, nil
}

func (f *fakeDocumentAggregate) TriggerReview(_ context.Context, in domainagg.ActorInput) (domainagg.DocumentState, error) {
	f.triggerCalls++
	f.lastActor = in.ActorID
	if err, ok := f.failTrigger[in.DocumentID]; ok {
		return domainagg.DocumentState{}, err
	}
	return domainagg.DocumentState{DocumentID: in.DocumentID, Status: types.DocumentStatusUnderReview}, nil
}

func (f *fakeDocumentAggregate) Archive(_ context.Context, _ domainagg.ActorInput) (domainagg.DocumentState, error) {
	return domainagg.DocumentState{}, nil
}

func (f *fakeDocumentAggregate) ReturnToDraft(_ context.Context, _ domainagg.ReturnToDraftInput) (domainagg.DocumentState, error) {
	return domainagg.DocumentState{}, nil
}
