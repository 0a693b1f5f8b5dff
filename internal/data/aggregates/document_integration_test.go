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

func newDocumentAggregateForTest(tb testing.TB, tx *gorm.DB) (domainagg.DocumentAggregate, repos.Set) {
	tb.Helper()
	set := repos.NewSet(tx, repotest.Logger(tb))
	agg := NewDocumentAggregate(DocumentAggregateDeps{
		Base: BaseDeps{
			DB:       tx,
			Runner:   NewGormTxRunner(tx),
			CASGuard: NewCASGuard(tx),
		},
		Documents: set.Documents,
		Versions:  set.DocumentVersions,
		Approvals: set.Approvals,
		AuditLog:  set.AuditLog,
	})
	return agg, set
}

func approvalFor(tb testing.TB, rows []*types.Approval, approverID uuid.UUID, role types.ApprovalRole) *types.Approval {
	tb.Helper()
	for _, row := range rows {
		if row != nil && row.ApproverID == approverID && row.Role == role {
			return row
		}
	}
	tb.Fatalf("no %s approval row for approver %s", role, approverID)
	return nil
}

func TestDocumentAggregateFullLifecycle(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	owner := uuid.New()
	freq := 30

	created, err := agg.CreateDocument(ctx, domainagg.CreateDocumentInput{
		Title:               "Calibration Procedure",
		OwnerID:             owner,
		ReviewFrequencyDays: &freq,
	})
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if created.Status != types.DocumentStatusDraft {
		t.Fatalf("created status: want=%s got=%s", types.DocumentStatusDraft, created.Status)
	}

	version, err := agg.CreateVersion(ctx, domainagg.CreateVersionInput{
		DocumentID:  created.DocumentID,
		ContentHash: "sha256:0001",
		SizeBytes:   2048,
		UploadedBy:  owner,
	})
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if version.Version == nil || version.Version.VersionNumber != 1 {
		t.Fatalf("first version number: want=1 got=%+v", version.Version)
	}

	r1 := uuid.New()
	r2 := uuid.New()
	submitted, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  created.DocumentID,
		ApproverIDs: []uuid.UUID{r1, r2},
		ActorID:     owner,
	})
	if err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}
	if submitted.Status != types.DocumentStatusPendingReview {
		t.Fatalf("submitted status: want=%s got=%s", types.DocumentStatusPendingReview, submitted.Status)
	}

	rows, err := set.Approvals.ListByDocumentVersionID(dbc, version.Version.ID)
	if err != nil {
		t.Fatalf("ListByDocumentVersionID: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("reviewer rows: want=2 got=%d", len(rows))
	}

	first, err := agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: created.DocumentID,
		ApprovalID: approvalFor(t, rows, r1, types.RoleReviewer).ID,
		ActorID:    r1,
	})
	if err != nil {
		t.Fatalf("Approve first reviewer: %v", err)
	}
	if first.Status != types.DocumentStatusPendingReview {
		t.Fatalf("status after one of two reviews: want=%s got=%s", types.DocumentStatusPendingReview, first.Status)
	}
	if first.Outcome != types.OutcomePending {
		t.Fatalf("outcome after one of two reviews: want=%s got=%s", types.OutcomePending, first.Outcome)
	}

	second, err := agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: created.DocumentID,
		ApprovalID: approvalFor(t, rows, r2, types.RoleReviewer).ID,
		ActorID:    r2,
	})
	if err != nil {
		t.Fatalf("Approve second reviewer: %v", err)
	}
	if second.Status != types.DocumentStatusPendingApproval {
		t.Fatalf("status after full review: want=%s got=%s", types.DocumentStatusPendingApproval, second.Status)
	}

	a1 := uuid.New()
	if _, err := agg.SubmitForApproval(ctx, domainagg.SubmitRoundInput{
		DocumentID:  created.DocumentID,
		ApproverIDs: []uuid.UUID{a1},
		ActorID:     owner,
	}); err != nil {
		t.Fatalf("SubmitForApproval: %v", err)
	}

	rows, err = set.Approvals.ListByDocumentVersionID(dbc, version.Version.ID)
	if err != nil {
		t.Fatalf("re-list approvals: %v", err)
	}
	final, err := agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: created.DocumentID,
		ApprovalID: approvalFor(t, rows, a1, types.RoleApprover).ID,
		ActorID:    a1,
	})
	if err != nil {
		t.Fatalf("Approve approver: %v", err)
	}
	if final.Status != types.DocumentStatusApproved {
		t.Fatalf("final status: want=%s got=%s", types.DocumentStatusApproved, final.Status)
	}
	if final.EffectiveDate == nil || final.NextReviewDate == nil {
		t.Fatalf("approved document must carry effective and next review dates: %+v", final)
	}
	wantNext := types.NextReviewDate(*final.EffectiveDate, freq)
	if !final.NextReviewDate.Equal(wantNext) {
		t.Fatalf("next review date: want=%s got=%s", wantNext, final.NextReviewDate)
	}

	entries, err := set.AuditLog.ListByEntity(dbc, types.AuditEntityDocument, created.DocumentID, repos.AuditEntryFilter{})
	if err != nil {
		t.Fatalf("ListByEntity: %v", err)
	}
	// create, version, submit review, 2 reviews, submit approval, final approve
	if len(entries) != 7 {
		t.Fatalf("audit entries: want=7 got=%d", len(entries))
	}
}

func TestDocumentAggregateRejectionDominates(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusDraft)
	repotest.SeedVersion(t, ctx, tx, doc, 1)

	r1 := uuid.New()
	r2 := uuid.New()
	r3 := uuid.New()
	if _, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{r1, r2, r3},
		ActorID:     doc.OwnerID,
	}); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	rows, err := set.Approvals.ListByDocumentVersionID(dbc, *doc.CurrentVersionID)
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	if _, err := agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: approvalFor(t, rows, r1, types.RoleReviewer).ID,
		ActorID:    r1,
	}); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	state, err := agg.Reject(ctx, domainagg.RejectDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: approvalFor(t, rows, r2, types.RoleReviewer).ID,
		ActorID:    r2,
		Notes:      "section 3 contradicts the work instruction",
	})
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if state.Status != types.DocumentStatusDraft {
		t.Fatalf("status after veto: want=%s got=%s", types.DocumentStatusDraft, state.Status)
	}
	if state.Outcome != types.OutcomeRejected {
		t.Fatalf("outcome after veto: want=%s got=%s", types.OutcomeRejected, state.Outcome)
	}
}

func TestDocumentAggregateResubmitReusesRows(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusDraft)
	repotest.SeedVersion(t, ctx, tx, doc, 1)

	kept := uuid.New()
	dropped := uuid.New()
	if _, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{kept, dropped},
		ActorID:     doc.OwnerID,
	}); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	rows, err := set.Approvals.ListByDocumentVersionID(dbc, *doc.CurrentVersionID)
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	if _, err := agg.Reject(ctx, domainagg.RejectDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: approvalFor(t, rows, dropped, types.RoleReviewer).ID,
		ActorID:    dropped,
		Notes:      "not ready",
	}); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	// Resubmit without the vetoing reviewer; the stale veto must not follow
	// the document into the new round.
	added := uuid.New()
	if _, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{kept, added},
		ActorID:     doc.OwnerID,
	}); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	rows, err = set.Approvals.ListByDocumentVersionID(dbc, *doc.CurrentVersionID)
	if err != nil {
		t.Fatalf("re-list approvals: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("round rows after resubmit: want=2 got=%d", len(rows))
	}
	for _, row := range rows {
		if row.Status != types.ApprovalStatusPending {
			t.Fatalf("row for %s: want=%s got=%s", row.ApproverID, types.ApprovalStatusPending, row.Status)
		}
	}

	state, err := agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: approvalFor(t, rows, kept, types.RoleReviewer).ID,
		ActorID:    kept,
	})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if state.Outcome != types.OutcomePending {
		t.Fatalf("outcome with one review in: want=%s got=%s", types.OutcomePending, state.Outcome)
	}
}

func TestDocumentAggregateDecidedApprovalCannotBeRedecided(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusDraft)
	repotest.SeedVersion(t, ctx, tx, doc, 1)

	r1 := uuid.New()
	r2 := uuid.New()
	if _, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{r1, r2},
		ActorID:     doc.OwnerID,
	}); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	rows, err := set.Approvals.ListByDocumentVersionID(dbc, *doc.CurrentVersionID)
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	target := approvalFor(t, rows, r1, types.RoleReviewer)
	if _, err := agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: target.ID,
		ActorID:    r1,
	}); err != nil {
		t.Fatalf("Approve: %v", err)
	}

	_, err = agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: target.ID,
		ActorID:    r1,
	})
	if err == nil {
		t.Fatalf("expected precondition failure")
	}
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("expected precondition code, got: %v", err)
	}
}

func TestDocumentAggregateSubmitWithoutVersion(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, _ := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusDraft)

	_, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{uuid.New()},
		ActorID:     doc.OwnerID,
	})
	if err == nil {
		t.Fatalf("expected precondition failure")
	}
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("expected precondition code, got: %v", err)
	}
}

func TestDocumentAggregateIllegalTransition(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, _ := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	doc := repotest.SeedApprovedDocument(t, ctx, tx, 0)

	_, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{uuid.New()},
		ActorID:     doc.OwnerID,
	})
	if err == nil {
		t.Fatalf("expected invariant violation")
	}
	if !domainagg.IsCode(err, domainagg.CodeInvariantViolation) {
		t.Fatalf("expected invariant violation code, got: %v", err)
	}
}

func TestDocumentAggregateTriggerReviewRequiresApproved(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, _ := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusDraft)

	_, err := agg.TriggerReview(ctx, domainagg.ActorInput{
		DocumentID: doc.ID,
		ActorID:    uuid.New(),
	})
	if err == nil {
		t.Fatalf("expected precondition failure")
	}
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("expected precondition code, got: %v", err)
	}
}

func TestDocumentAggregateTriggerReviewAndReapprove(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	doc := repotest.SeedApprovedDocument(t, ctx, tx, 3)

	state, err := agg.TriggerReview(ctx, domainagg.ActorInput{
		DocumentID: doc.ID,
		ActorID:    uuid.New(),
	})
	if err != nil {
		t.Fatalf("TriggerReview: %v", err)
	}
	if state.Status != types.DocumentStatusUnderReview {
		t.Fatalf("status: want=%s got=%s", types.DocumentStatusUnderReview, state.Status)
	}

	// Periodic re-review runs as a reviewer round on the current version.
	r1 := uuid.New()
	if _, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{r1},
		ActorID:     doc.OwnerID,
	}); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	rows, err := set.Approvals.ListByDocumentVersionID(dbc, *doc.CurrentVersionID)
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	final, err := agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID:  doc.ID,
		ApprovalID:  approvalFor(t, rows, r1, types.RoleReviewer).ID,
		ActorID:     r1,
		AutoApprove: true,
	})
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if final.Status != types.DocumentStatusApproved {
		t.Fatalf("status after re-review: want=%s got=%s", types.DocumentStatusApproved, final.Status)
	}
	if final.NextReviewDate == nil || !final.NextReviewDate.After(*final.EffectiveDate) {
		t.Fatalf("next review date must be rescheduled, got: %+v", final)
	}
}

func TestDocumentAggregateReturnToDraftCancelsPendings(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusDraft)
	repotest.SeedVersion(t, ctx, tx, doc, 1)

	if _, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{uuid.New(), uuid.New()},
		ActorID:     doc.OwnerID,
	}); err != nil {
		t.Fatalf("SubmitForReview: %v", err)
	}

	state, err := agg.ReturnToDraft(ctx, domainagg.ReturnToDraftInput{
		DocumentID: doc.ID,
		ActorID:    doc.OwnerID,
		Reason:     "wrong template",
	})
	if err != nil {
		t.Fatalf("ReturnToDraft: %v", err)
	}
	if state.Status != types.DocumentStatusDraft {
		t.Fatalf("status: want=%s got=%s", types.DocumentStatusDraft, state.Status)
	}

	rows, err := set.Approvals.ListByDocumentVersionID(dbc, *doc.CurrentVersionID)
	if err != nil {
		t.Fatalf("list approvals: %v", err)
	}
	for _, row := range rows {
		if row.Status != types.ApprovalStatusRejected {
			t.Fatalf("row for %s: want=%s got=%s", row.ApproverID, types.ApprovalStatusRejected, row.Status)
		}
	}
}

func TestDocumentAggregateArchiveIsTerminal(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, _ := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	doc := repotest.SeedApprovedDocument(t, ctx, tx, 0)

	state, err := agg.Archive(ctx, domainagg.ActorInput{DocumentID: doc.ID, ActorID: uuid.New()})
	if err != nil {
		t.Fatalf("Archive: %v", err)
	}
	if state.Status != types.DocumentStatusArchived {
		t.Fatalf("status: want=%s got=%s", types.DocumentStatusArchived, state.Status)
	}

	_, err = agg.TriggerReview(ctx, domainagg.ActorInput{DocumentID: doc.ID, ActorID: uuid.New()})
	if err == nil {
		t.Fatalf("expected error on archived document")
	}
}

func TestDocumentAggregateApprovalsScopedToCurrentVersion(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, set := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusDraft)
	v1 := repotest.SeedVersion(t, ctx, tx, doc, 1)

	vetoer := uuid.New()
	bystander := uuid.New()
	if _, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{vetoer, bystander},
		ActorID:     doc.OwnerID,
	}); err != nil {
		t.Fatalf("SubmitForReview v1: %v", err)
	}

	v1Rows, err := set.Approvals.ListByDocumentVersionID(dbc, v1.ID)
	if err != nil {
		t.Fatalf("list v1 approvals: %v", err)
	}
	if _, err := agg.Reject(ctx, domainagg.RejectDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: approvalFor(t, v1Rows, vetoer, types.RoleReviewer).ID,
		ActorID:    vetoer,
		Notes:      "revise",
	}); err != nil {
		t.Fatalf("Reject v1: %v", err)
	}

	v2, err := agg.CreateVersion(ctx, domainagg.CreateVersionInput{
		DocumentID:  doc.ID,
		ContentHash: "sha256:0002",
		SizeBytes:   128,
		UploadedBy:  doc.OwnerID,
	})
	if err != nil {
		t.Fatalf("CreateVersion: %v", err)
	}
	if _, err := agg.SubmitForReview(ctx, domainagg.SubmitRoundInput{
		DocumentID:  doc.ID,
		ApproverIDs: []uuid.UUID{bystander},
		ActorID:     doc.OwnerID,
	}); err != nil {
		t.Fatalf("SubmitForReview v2: %v", err)
	}

	v2Rows, err := set.Approvals.ListByDocumentVersionID(dbc, v2.Version.ID)
	if err != nil {
		t.Fatalf("list v2 approvals: %v", err)
	}
	if len(v2Rows) != 1 {
		t.Fatalf("v2 reviewer rows: want=1 got=%d", len(v2Rows))
	}

	// The v1 veto is decision history; it must not reach into the v2 round.
	state, err := agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: approvalFor(t, v2Rows, bystander, types.RoleReviewer).ID,
		ActorID:    bystander,
	})
	if err != nil {
		t.Fatalf("Approve v2 reviewer: %v", err)
	}
	if state.Status != types.DocumentStatusPendingApproval {
		t.Fatalf("status after v2 review: want=%s got=%s", types.DocumentStatusPendingApproval, state.Status)
	}
	if state.Outcome != types.OutcomeApproved {
		t.Fatalf("outcome after v2 review: want=%s got=%s", types.OutcomeApproved, state.Outcome)
	}

	// A v1 approval id is stale once the document points at v2, even while
	// the row itself is still pending.
	_, err = agg.Approve(ctx, domainagg.ApproveDocumentInput{
		DocumentID: doc.ID,
		ApprovalID: approvalFor(t, v1Rows, bystander, types.RoleReviewer).ID,
		ActorID:    bystander,
	})
	if err == nil {
		t.Fatalf("expected precondition failure for stale-version approval")
	}
	if !domainagg.IsCode(err, domainagg.CodePreconditionFailed) {
		t.Fatalf("expected precondition code, got: %v", err)
	}

	// v1 rows are untouched by the v2 round.
	v1Rows, err = set.Approvals.ListByDocumentVersionID(dbc, v1.ID)
	if err != nil {
		t.Fatalf("relist v1 approvals: %v", err)
	}
	if len(v1Rows) != 2 {
		t.Fatalf("v1 rows after v2 round: want=2 got=%d", len(v1Rows))
	}
}

func TestDocumentAggregateVersionNumbersIncrease(t *testing.T) {
	db := repotest.DB(t)
	tx := repotest.Tx(t, db)
	agg, _ := newDocumentAggregateForTest(t, tx)

	ctx := context.Background()
	doc := repotest.SeedDocument(t, ctx, tx, types.DocumentStatusDraft)

	for want := 1; want <= 3; want++ {
		out, err := agg.CreateVersion(ctx, domainagg.CreateVersionInput{
			DocumentID:  doc.ID,
			ContentHash: "sha256:rev",
			SizeBytes:   64,
			UploadedBy:  doc.OwnerID,
		})
		if err != nil {
			t.Fatalf("CreateVersion %d: %v", want, err)
		}
		if out.Version.VersionNumber != want {
			t.Fatalf("version number: want=%d got=%d", want, out.Version.VersionNumber)
		}
	}
}
