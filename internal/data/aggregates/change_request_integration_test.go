package aggregates

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/veridian-labs/doccontrol-backend/internal/data/repos"
	repotest "github.com/veridian-labs/doccontrol-backend/internal/data/repos/testutil"
	types "github.com/veridian-labs/doccontrol-backend/internal/domain"
	domainagg "github.com/veridian-labs/doccontrol-backend/internal/domain/aggregates"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"gorm.io/gorm"
)

func newChangeRequestAggregateForTest(tb testing.TB, tx *gorm.DB) (domainagg.ChangeRequestAggregate, repos.Set) {
	tb.Helper()
	set := repos.NewSet(tx, repotest.Logger(tb))
	agg := NewChangeRequestAggregate(ChangeRequestAggregateDeps{
		Base: BaseDeps{
			DB:       tx,
			Runner:   NewGormTxRunner(tx),
			CASGuard: NewCASGuard(tx),
		},
		ChangeRequests: set.ChangeRequests,
		Documents:      set.Documents,
		Versions:       set.DocumentVersions,
		Approvals:      set.Approvals,
		AuditLog:       set.AuditLog,
	})
	return agg, set
}

func changeApprovalFor(tb testing.TB, rows []*types.Approval, approverID uuid.UUID) *types.Approval {
	tb.Helper()
	for _, row := range rows {
		if row != nil && row.ApproverID == approverID {
			return row
		}
	}
	tb.Fatalf("no approval row for approver %s", approverID)
	return nil
}

func TestChangeRequestAggregateFullLifecycle(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newChangeRequestAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusApproved)
	version := repotest.SeedVersion(t, ctx, tx, doc, 1)
	requester := uuid.New()

	created, err := agg.Create(ctx, domainagg.CreateChangeRequestInput{
		DocumentID:  &doc.ID,
		Title:       "Tighten tolerance on step 4",
		Description: "Customer complaint 2214",
		RequestedBy: requester,
		Priority:    types.PriorityHigh,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.Status != types.ChangeRequestStatusDraft {
		t.Fatalf("created status: want=%s got=%s", types.ChangeRequestStatusDraft, created.Status)
	}

	a1 := uuid.New()
	a2 := uuid.New()
	submitted, err := agg.Submit(ctx, domainagg.SubmitChangeRequestInput{
		ChangeRequestID: created.ChangeRequestID,
		ApproverIDs:     []uuid.UUID{a1, a2},
		ActorID:         requester,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if submitted.Status != types.ChangeRequestStatusSubmitted {
		t.Fatalf("submitted status: want=%s got=%s", types.ChangeRequestStatusSubmitted, submitted.Status)
	}

	if _, err := agg.StartReview(ctx, domainagg.ChangeRequestActorInput{
		ChangeRequestID: created.ChangeRequestID,
		ActorID:         requester,
	}); err != nil {
		t.Fatalf("StartReview: %v", err)
	}

	rows, err := set.Approvals.ListByChangeRequestID(dbc, created.ChangeRequestID)
	if err != nil {
		t.Fatalf("ListByChangeRequestID: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("approver rows: want=2 got=%d", len(rows))
	}

	first, err := agg.Approve(ctx, domainagg.DecideChangeRequestInput{
		ChangeRequestID: created.ChangeRequestID,
		ApprovalID:      changeApprovalFor(t, rows, a1).ID,
		ActorID:         a1,
	})
	if err != nil {
		t.Fatalf("Approve first: %v", err)
	}
	if first.Status != types.ChangeRequestStatusUnderReview {
		t.Fatalf("status after one of two approvals: want=%s got=%s", types.ChangeRequestStatusUnderReview, first.Status)
	}

	second, err := agg.Approve(ctx, domainagg.DecideChangeRequestInput{
		ChangeRequestID: created.ChangeRequestID,
		ApprovalID:      changeApprovalFor(t, rows, a2).ID,
		ActorID:         a2,
	})
	if err != nil {
		t.Fatalf("Approve second: %v", err)
	}
	if second.Status != types.ChangeRequestStatusApproved {
		t.Fatalf("status after unanimous round: want=%s got=%s", types.ChangeRequestStatusApproved, second.Status)
	}

	done, err := agg.MarkImplemented(ctx, domainagg.MarkImplementedInput{
		ChangeRequestID:      created.ChangeRequestID,
		ActorID:              requester,
		ImplementedVersionID: &version.ID,
		Note:                 "released as revision B",
	})
	if err != nil {
		t.Fatalf("MarkImplemented: %v", err)
	}
	if done.Status != types.ChangeRequestStatusImplemented {
		t.Fatalf("final status: want=%s got=%s", types.ChangeRequestStatusImplemented, done.Status)
	}

	// Implemented is terminal; a late cancel must bounce off.
	_, err = agg.Cancel(ctx, domainagg.CancelChangeRequestInput{
		ChangeRequestID: created.ChangeRequestID,
		ActorID:         requester,
		Reason:          "too late",
	})
	if err == nil {
		t.Fatalf("expected cancel after implementation to fail")
	}
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("expected invariant code, got: %v", err)
	}

	// Audit for a linked change request lands on the document's trail.
	entries, err := set.AuditLog.ListByEntity(dbc, types.AuditEntityDocument, doc.ID, repos.AuditEntryFilter{})
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	if len(entries) != 6 {
		t.Fatalf("audit entries: want=6 got=%d", len(entries))
	}
	for _, entry := range entries {
		if entry.EntityID != doc.ID {
			t.Fatalf("entry scoped to %s, want document %s", entry.EntityID, doc.ID)
		}
	}
}

func TestChangeRequestAggregateRejectionDominates(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newChangeRequestAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	cr := repotest.SeedChangeRequest(t, ctx, tx, nil, types.ChangeRequestStatusDraft)

	a1 := uuid.New()
	a2 := uuid.New()
	if _, err := agg.Submit(ctx, domainagg.SubmitChangeRequestInput{
		ChangeRequestID: cr.ID,
		ApproverIDs:     []uuid.UUID{a1, a2},
		ActorID:         cr.RequestedBy,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := agg.StartReview(ctx, domainagg.ChangeRequestActorInput{
		ChangeRequestID: cr.ID,
		ActorID:         cr.RequestedBy,
	}); err != nil {
		t.Fatalf("StartReview: %v", err)
	}

	rows, err := set.Approvals.ListByChangeRequestID(dbc, cr.ID)
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	state, err := agg.Reject(ctx, domainagg.DecideChangeRequestInput{
		ChangeRequestID: cr.ID,
		ApprovalID:      changeApprovalFor(t, rows, a1).ID,
		ActorID:         a1,
		Notes:           "duplicate of CR-1187",
	})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if state.Status != types.ChangeRequestStatusRejected {
		t.Fatalf("status after veto: want=%s got=%s", types.ChangeRequestStatusRejected, state.Status)
	}
}

func TestChangeRequestAggregateDecisionRequiresOpenReview(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newChangeRequestAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	cr := repotest.SeedChangeRequest(t, ctx, tx, nil, types.ChangeRequestStatusDraft)

	a1 := uuid.New()
	if _, err := agg.Submit(ctx, domainagg.SubmitChangeRequestInput{
		ChangeRequestID: cr.ID,
		ApproverIDs:     []uuid.UUID{a1},
		ActorID:         cr.RequestedBy,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	rows, err := set.Approvals.ListByChangeRequestID(dbc, cr.ID)
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}

	// Still submitted, review not started.
	_, err = agg.Approve(ctx, domainagg.DecideChangeRequestInput{
		ChangeRequestID: cr.ID,
		ApprovalID:      changeApprovalFor(t, rows, a1).ID,
		ActorID:         a1,
	})
	if err == nil {
		t.Fatalf("expected precondition failure")
	}
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("expected precondition code, got: %v", err)
	}
}

func TestChangeRequestAggregateCancelVoidsPendings(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newChangeRequestAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	cr := repotest.SeedChangeRequest(t, ctx, tx, nil, types.ChangeRequestStatusDraft)

	if _, err := agg.Submit(ctx, domainagg.SubmitChangeRequestInput{
		ChangeRequestID: cr.ID,
		ApproverIDs:     []uuid.UUID{uuid.New(), uuid.New()},
		ActorID:         cr.RequestedBy,
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state, err := agg.Cancel(ctx, domainagg.CancelChangeRequestInput{
		ChangeRequestID: cr.ID,
		ActorID:         cr.RequestedBy,
		Reason:          "superseded by process redesign",
	})
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if state.Status != types.ChangeRequestStatusCancelled {
		t.Fatalf("status: want=%s got=%s", types.ChangeRequestStatusCancelled, state.Status)
	}

	rows, err := set.Approvals.ListByChangeRequestID(dbc, cr.ID)
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	for _, row := range rows {
		if row.Status == types.ApprovalStatusPending {
			t.Fatalf("row for %s still pending after cancel", row.ApproverID)
		}
	}

	// Terminal: no further moves.
	if _, err := agg.ReturnToDraft(ctx, domainagg.ReturnChangeRequestInput{
		ChangeRequestID: cr.ID,
		ActorID:         cr.RequestedBy,
	}); err == nil {
		t.Fatalf("expected error on cancelled request")
	}
}

func TestChangeRequestAggregateImplementedVersionMustBelongToDocument(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, _ := newChangeRequestAggregateForTest(t, tx)

	ctx := context.Background()
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusApproved)
	other := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusApproved)
	strayVersion := repotest.SeedVersion(t, ctx, tx, other, 1)
	cr := repotest.SeedChangeRequest(t, ctx, tx, &doc.ID, types.ChangeRequestStatusApproved)

	_, err := agg.MarkImplemented(ctx, domainagg.MarkImplementedInput{
		ChangeRequestID:      cr.ID,
		ActorID:              cr.RequestedBy,
		ImplementedVersionID: &strayVersion.ID,
		Note:                 "wrong doc",
	})
	if err == nil {
		t.Fatalf("expected precondition failure")
	}
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("expected precondition code, got: %v", err)
	}
}

func TestChangeRequestAggregateCreateRequiresKnownDocument(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, _ := newChangeRequestAggregateForTest(t, tx)

	ctx := context.Background()
	missing := uuid.New()
	_, err := agg.Create(ctx, domainagg.CreateChangeRequestInput{
		DocumentID:  &missing,
		Title:       "Orphan",
		Description: "links nowhere",
		RequestedBy: uuid.New(),
	})
	if err == nil {
		t.Fatalf("expected not found")
	}
	if !domainagg.IsCode(err, domainagg.CodeNotFound) {
		t.Fatalf("expected not_found code, got: %v", err)
	}
}
