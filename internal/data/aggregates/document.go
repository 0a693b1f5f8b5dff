package aggregates

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/veridian-labs/doccontrol-backend/internal/data/repos"
	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	domainagg "github.com/veridian-labs/doccontrol-backend/internal/domain/aggregates"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
)

type DocumentAggregateDeps struct {
	Base BaseDeps

	Documents repos.DocumentRepo
	Versions  repos.DocumentVersionRepo
	Approvals repos.ApprovalRepo
	AuditLog  repos.AuditLogRepo
}

type documentAggregate struct {
	deps DocumentAggregateDeps
	now  func() time.Time
}

func NewDocumentAggregate(deps DocumentAggregateDeps) domainagg.DocumentAggregate {
	deps.Base = deps.Base.withDefaults()
	return &documentAggregate{deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

func (a *documentAggregate) Contract() domainagg.Contract {
	return domainagg.DocumentAggregateContract
}

// Transition table for the document state machine. Reject and ReturnToDraft
// carry their own source lists (a veto voids the round from any round state).
var documentTransitions = map[domain.DocumentStatus][]domain.DocumentStatus{
	domain.DocumentStatusDraft:           {domain.DocumentStatusPendingReview},
	domain.DocumentStatusPendingReview:   {domain.DocumentStatusDraft, domain.DocumentStatusPendingApproval, domain.DocumentStatusApproved},
	domain.DocumentStatusPendingApproval: {domain.DocumentStatusDraft, domain.DocumentStatusApproved},
	domain.DocumentStatusApproved:        {domain.DocumentStatusUnderReview, domain.DocumentStatusArchived},
	domain.DocumentStatusUnderReview:     {domain.DocumentStatusPendingReview, domain.DocumentStatusApproved},
	domain.DocumentStatusArchived:        {},
}

func isAllowedDocumentTransition(from, to domain.DocumentStatus) bool {
	for _, target := range documentTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

// documentRoundStatuses are the states in which an approval round is open.
var documentRoundStatuses = []domain.DocumentStatus{
	domain.DocumentStatusPendingReview,
	domain.DocumentStatusPendingApproval,
	domain.DocumentStatusUnderReview,
}

func inDocumentRound(s domain.DocumentStatus) bool {
	for _, rs := range documentRoundStatuses {
		if rs == s {
			return true
		}
	}
	return false
}

// roundRole maps an open round state to the role whose rows form the round.
// Reviewer and approver rounds share the version; aggregating over the stage
// role keeps decided rows from the other round as history without letting
// them dominate the current verdict.
func roundRole(s domain.DocumentStatus) domain.ApprovalRole {
	if s == domain.DocumentStatusPendingApproval {
		return domain.RoleApprover
	}
	return domain.RoleReviewer
}

func (a *documentAggregate) CreateDocument(ctx context.Context, in domainagg.CreateDocumentInput) (domainagg.DocumentState, error) {
	const op = "DocControl.Document.Create"
	var out domainagg.DocumentState

	if in.Title == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing title", nil)
	}
	if in.OwnerID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing owner_id", nil)
	}
	if in.ReviewFrequencyDays != nil && *in.ReviewFrequencyDays <= 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "review_frequency_days must be positive", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		now := a.now()
		doc := &domain.Document{
			ID:                  uuid.New(),
			Title:               in.Title,
			Status:              domain.DocumentStatusDraft,
			OwnerID:             in.OwnerID,
			ReviewFrequencyDays: in.ReviewFrequencyDays,
			CreatedAt:           now,
			UpdatedAt:           now,
		}
		if _, err := a.deps.Documents.Create(dbc, []*domain.Document{doc}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, doc.ID, in.OwnerID, domain.ActionCreateDocument, map[string]any{
			"title": in.Title,
		}, now); err != nil {
			return err
		}
		out = documentState(doc, domain.OutcomePending)
		return nil
	})
	return out, err
}

func (a *documentAggregate) CreateVersion(ctx context.Context, in domainagg.CreateVersionInput) (domainagg.CreateVersionResult, error) {
	const op = "DocControl.Document.CreateVersion"
	var out domainagg.CreateVersionResult

	if in.DocumentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_id", nil)
	}
	if in.UploadedBy == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing uploaded_by", nil)
	}
	if in.ContentHash == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing content_hash", nil)
	}
	if in.SizeBytes < 0 {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "size_bytes must be >= 0", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		doc, err := a.lockDocument(dbc, op, in.DocumentID)
		if err != nil {
			return err
		}
		if doc.Status != domain.DocumentStatusDraft {
			return PreconditionError(fmt.Sprintf("cannot add a version while document is %q", doc.Status))
		}

		maxNum, err := a.deps.Versions.GetMaxVersionNumber(dbc, doc.ID)
		if err != nil {
			return err
		}
		now := a.now()
		version := &domain.DocumentVersion{
			ID:            uuid.New(),
			DocumentID:    doc.ID,
			VersionNumber: maxNum + 1,
			ContentHash:   in.ContentHash,
			SizeBytes:     in.SizeBytes,
			UploadedBy:    in.UploadedBy,
			CreatedAt:     now,
		}
		if _, err := a.deps.Versions.Create(dbc, []*domain.DocumentVersion{version}); err != nil {
			return err
		}
		if err := a.deps.Documents.UpdateFields(dbc, doc.ID, map[string]interface{}{
			"current_version_id": version.ID,
			"updated_at":         now,
		}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, doc.ID, in.UploadedBy, domain.ActionCreateVersion, map[string]any{
			"version_number": version.VersionNumber,
			"content_hash":   in.ContentHash,
			"size_bytes":     in.SizeBytes,
		}, now); err != nil {
			return err
		}

		doc.CurrentVersionID = &version.ID
		doc.UpdatedAt = now
		out = domainagg.CreateVersionResult{
			Document: documentState(doc, domain.OutcomePending),
			Version:  version,
		}
		return nil
	})
	return out, err
}

func (a *documentAggregate) SubmitForReview(ctx context.Context, in domainagg.SubmitRoundInput) (domainagg.DocumentState, error) {
	const op = "DocControl.Document.SubmitForReview"
	return a.submitRound(ctx, op, in, domain.RoleReviewer, domain.DocumentStatusPendingReview, domain.ActionSubmitForReview)
}

func (a *documentAggregate) SubmitForApproval(ctx context.Context, in domainagg.SubmitRoundInput) (domainagg.DocumentState, error) {
	const op = "DocControl.Document.SubmitForApproval"
	return a.submitRound(ctx, op, in, domain.RoleApprover, domain.DocumentStatusPendingApproval, domain.ActionSubmitForApproval)
}

func (a *documentAggregate) submitRound(
	ctx context.Context,
	op string,
	in domainagg.SubmitRoundInput,
	role domain.ApprovalRole,
	target domain.DocumentStatus,
	action domain.AuditAction,
) (domainagg.DocumentState, error) {
	var out domainagg.DocumentState

	if in.DocumentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}
	if err := validateApproverIDs(op, in.ApproverIDs); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		doc, err := a.lockDocument(dbc, op, in.DocumentID)
		if err != nil {
			return err
		}
		// A reflexive submit reopens the round with a new decider set; the
		// approver round in particular opens after the reviewer round has
		// already landed the document in pending_approval.
		if doc.Status != target && !isAllowedDocumentTransition(doc.Status, target) {
			return InvariantError(fmt.Sprintf("invalid document transition %s -> %s", doc.Status, target))
		}
		if doc.CurrentVersionID == nil || *doc.CurrentVersionID == uuid.Nil {
			return PreconditionError("document has no current version")
		}

		now := a.now()
		if err := a.openRound(dbc, doc, role, in.ApproverIDs, now); err != nil {
			return err
		}
		if err := a.setStatus(dbc, doc, target, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, doc.ID, in.ActorID, action, map[string]any{
			"approver_ids": uuidStrings(in.ApproverIDs),
			"role":         string(role),
			"version_id":   doc.CurrentVersionID.String(),
			"new_status":   string(target),
		}, now); err != nil {
			return err
		}

		doc.Status = target
		doc.UpdatedAt = now
		out = documentState(doc, domain.OutcomePending)
		return nil
	})
	return out, err
}

// openRound keeps exactly one approval row per (version, approver, role)
// triple: rows for re-listed approvers reset to pending, same-role rows for
// dropped approvers are removed so a stale veto cannot dominate the new
// round. Rows of the other role stay untouched as decision history.
func (a *documentAggregate) openRound(dbc dbctx.Context, doc *domain.Document, role domain.ApprovalRole, approverIDs []uuid.UUID, now time.Time) error {
	existing, err := a.deps.Approvals.ListByDocumentVersionID(dbc, *doc.CurrentVersionID)
	if err != nil {
		return err
	}

	wanted := make(map[uuid.UUID]bool, len(approverIDs))
	for _, id := range approverIDs {
		wanted[id] = true
	}

	reused := make(map[uuid.UUID]bool, len(approverIDs))
	var superseded []uuid.UUID
	for _, row := range existing {
		if row.Role != role {
			continue
		}
		if wanted[row.ApproverID] {
			reused[row.ApproverID] = true
			if err := a.deps.Approvals.UpdateFields(dbc, row.ID, map[string]interface{}{
				"status":     domain.ApprovalStatusPending,
				"notes":      "",
				"decided_at": nil,
				"updated_at": now,
			}); err != nil {
				return err
			}
			continue
		}
		superseded = append(superseded, row.ID)
	}
	if err := a.deps.Approvals.DeleteByIDs(dbc, superseded); err != nil {
		return err
	}

	var fresh []*domain.Approval
	for _, approverID := range approverIDs {
		if reused[approverID] {
			continue
		}
		fresh = append(fresh, &domain.Approval{
			ID:                uuid.New(),
			SubjectType:       domain.SubjectDocumentVersion,
			DocumentID:        &doc.ID,
			DocumentVersionID: doc.CurrentVersionID,
			ApproverID:        approverID,
			Role:              role,
			Status:            domain.ApprovalStatusPending,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}
	_, err = a.deps.Approvals.Create(dbc, fresh)
	return err
}

func (a *documentAggregate) Approve(ctx context.Context, in domainagg.ApproveDocumentInput) (domainagg.DocumentState, error) {
	const op = "DocControl.Document.Approve"
	var out domainagg.DocumentState

	if in.DocumentID == uuid.Nil || in.ApprovalID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_id or approval_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		doc, err := a.lockDocument(dbc, op, in.DocumentID)
		if err != nil {
			return err
		}
		if !inDocumentRound(doc.Status) {
			return PreconditionError(fmt.Sprintf("document is %q, no approval round is open", doc.Status))
		}
		approval, err := a.roundApproval(dbc, op, doc, in.ApprovalID)
		if err != nil {
			return err
		}

		now := a.now()
		if err := a.deps.Approvals.UpdateFields(dbc, approval.ID, map[string]interface{}{
			"status":     domain.ApprovalStatusApproved,
			"notes":      in.Notes,
			"decided_at": now,
			"updated_at": now,
		}); err != nil {
			return err
		}

		// Read-then-decide: re-load the whole round inside the transaction
		// rather than keeping running counters.
		outcome, err := a.roundOutcome(dbc, doc)
		if err != nil {
			return err
		}

		previous := doc.Status
		target := previous
		updates := map[string]interface{}{"updated_at": now}
		switch outcome {
		case domain.OutcomeRejected:
			target = domain.DocumentStatusDraft
		case domain.OutcomeApproved:
			switch previous {
			case domain.DocumentStatusPendingReview:
				if in.AutoApprove {
					target = domain.DocumentStatusApproved
				} else {
					target = domain.DocumentStatusPendingApproval
				}
			case domain.DocumentStatusPendingApproval, domain.DocumentStatusUnderReview:
				target = domain.DocumentStatusApproved
			}
		}

		if target == domain.DocumentStatusApproved {
			frequency := domain.DefaultReviewFrequencyDays
			if doc.ReviewFrequencyDays != nil {
				frequency = *doc.ReviewFrequencyDays
			}
			next := domain.NextReviewDate(now, frequency)
			updates["effective_date"] = now
			updates["next_review_date"] = next
			doc.EffectiveDate = &now
			doc.NextReviewDate = &next
		}

		if target != previous {
			if err := a.setStatus(dbc, doc, target, updates); err != nil {
				return err
			}
			doc.Status = target
		}
		doc.UpdatedAt = now

		if err := a.appendAudit(dbc, doc.ID, in.ActorID, domain.ActionApprove, map[string]any{
			"approval_id":     approval.ID.String(),
			"outcome":         string(outcome),
			"previous_status": string(previous),
			"new_status":      string(doc.Status),
		}, now); err != nil {
			return err
		}

		out = documentState(doc, outcome)
		return nil
	})
	return out, err
}

func (a *documentAggregate) Reject(ctx context.Context, in domainagg.RejectDocumentInput) (domainagg.DocumentState, error) {
	const op = "DocControl.Document.Reject"
	var out domainagg.DocumentState

	if in.DocumentID == uuid.Nil || in.ApprovalID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_id or approval_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}
	if in.Notes == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "rejection notes are required", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		doc, err := a.lockDocument(dbc, op, in.DocumentID)
		if err != nil {
			return err
		}
		if !inDocumentRound(doc.Status) {
			return PreconditionError(fmt.Sprintf("document is %q, no approval round is open", doc.Status))
		}
		approval, err := a.roundApproval(dbc, op, doc, in.ApprovalID)
		if err != nil {
			return err
		}

		decision := domain.ApprovalStatusRejected
		action := domain.ActionReject
		if in.RequestChanges {
			decision = domain.ApprovalStatusChangesRequested
			action = domain.ActionRequestChanges
		}

		now := a.now()
		if err := a.deps.Approvals.UpdateFields(dbc, approval.ID, map[string]interface{}{
			"status":     decision,
			"notes":      in.Notes,
			"decided_at": now,
			"updated_at": now,
		}); err != nil {
			return err
		}

		// A single veto voids the whole round; remaining pendings are not
		// consulted.
		previous := doc.Status
		if err := a.setStatus(dbc, doc, domain.DocumentStatusDraft, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		doc.Status = domain.DocumentStatusDraft
		doc.UpdatedAt = now

		if err := a.appendAudit(dbc, doc.ID, in.ActorID, action, map[string]any{
			"approval_id":     approval.ID.String(),
			"notes":           in.Notes,
			"previous_status": string(previous),
			"new_status":      string(domain.DocumentStatusDraft),
		}, now); err != nil {
			return err
		}

		out = documentState(doc, domain.OutcomeRejected)
		return nil
	})
	return out, err
}

func (a *documentAggregate) TriggerReview(ctx context.Context, in domainagg.ActorInput) (domainagg.DocumentState, error) {
	const op = "DocControl.Document.TriggerReview"
	var out domainagg.DocumentState

	if in.DocumentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		doc, err := a.lockDocument(dbc, op, in.DocumentID)
		if err != nil {
			return err
		}
		// Status is re-checked under lock so the overdue batch loses cleanly
		// to a concurrent transition out of approved.
		if doc.Status != domain.DocumentStatusApproved {
			return PreconditionError(fmt.Sprintf("cannot trigger review while document is %q", doc.Status))
		}

		now := a.now()
		if err := a.setStatus(dbc, doc, domain.DocumentStatusUnderReview, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}

		details := map[string]any{"new_status": string(domain.DocumentStatusUnderReview)}
		if doc.NextReviewDate != nil {
			details["previous_next_review_date"] = doc.NextReviewDate.Format(time.RFC3339)
		}
		if err := a.appendAudit(dbc, doc.ID, in.ActorID, domain.ActionTriggerReview, details, now); err != nil {
			return err
		}

		doc.Status = domain.DocumentStatusUnderReview
		doc.UpdatedAt = now
		out = documentState(doc, domain.OutcomePending)
		return nil
	})
	return out, err
}

func (a *documentAggregate) Archive(ctx context.Context, in domainagg.ActorInput) (domainagg.DocumentState, error) {
	const op = "DocControl.Document.Archive"
	var out domainagg.DocumentState

	if in.DocumentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		doc, err := a.lockDocument(dbc, op, in.DocumentID)
		if err != nil {
			return err
		}
		if doc.Status != domain.DocumentStatusApproved && doc.Status != domain.DocumentStatusUnderReview {
			return InvariantError(fmt.Sprintf("invalid document transition %s -> %s", doc.Status, domain.DocumentStatusArchived))
		}

		now := a.now()
		if err := a.setStatus(dbc, doc, domain.DocumentStatusArchived, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, doc.ID, in.ActorID, domain.ActionArchive, map[string]any{
			"previous_status": string(doc.Status),
		}, now); err != nil {
			return err
		}

		doc.Status = domain.DocumentStatusArchived
		doc.UpdatedAt = now
		out = documentState(doc, domain.OutcomePending)
		return nil
	})
	return out, err
}

func (a *documentAggregate) ReturnToDraft(ctx context.Context, in domainagg.ReturnToDraftInput) (domainagg.DocumentState, error) {
	const op = "DocControl.Document.ReturnToDraft"
	var out domainagg.DocumentState

	if in.DocumentID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing document_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		doc, err := a.lockDocument(dbc, op, in.DocumentID)
		if err != nil {
			return err
		}
		if !inDocumentRound(doc.Status) {
			return InvariantError(fmt.Sprintf("invalid document transition %s -> %s", doc.Status, domain.DocumentStatusDraft))
		}

		now := a.now()
		notes := "cancelled: returned to draft"
		if in.Reason != "" {
			notes = "cancelled: " + in.Reason
		}
		var cancelled int64
		if doc.CurrentVersionID != nil {
			cancelled, err = a.deps.Approvals.UpdatePendingByVersion(dbc, *doc.CurrentVersionID, map[string]interface{}{
				"status":     domain.ApprovalStatusRejected,
				"notes":      notes,
				"decided_at": now,
				"updated_at": now,
			})
			if err != nil {
				return err
			}
		}

		previous := doc.Status
		if err := a.setStatus(dbc, doc, domain.DocumentStatusDraft, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, doc.ID, in.ActorID, domain.ActionReturnToDraft, map[string]any{
			"reason":              in.Reason,
			"cancelled_approvals": cancelled,
			"previous_status":     string(previous),
		}, now); err != nil {
			return err
		}

		doc.Status = domain.DocumentStatusDraft
		doc.UpdatedAt = now
		out = documentState(doc, domain.OutcomePending)
		return nil
	})
	return out, err
}

func (a *documentAggregate) lockDocument(dbc dbctx.Context, op string, id uuid.UUID) (*domain.Document, error) {
	doc, err := a.deps.Documents.LockByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if doc == nil || doc.ID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("document not found: %s", id), nil)
	}
	return doc, nil
}

// roundApproval loads the named approval and verifies it belongs to the open
// round: current version, stage role, still pending.
func (a *documentAggregate) roundApproval(dbc dbctx.Context, op string, doc *domain.Document, approvalID uuid.UUID) (*domain.Approval, error) {
	approval, err := a.deps.Approvals.GetByID(dbc, approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("approval not found: %s", approvalID), nil)
	}
	if approval.DocumentVersionID == nil || doc.CurrentVersionID == nil || *approval.DocumentVersionID != *doc.CurrentVersionID {
		return nil, PreconditionError("approval is not scoped to the document's current version")
	}
	if approval.Role != roundRole(doc.Status) {
		return nil, PreconditionError(fmt.Sprintf("approval role %q does not match the open %q round", approval.Role, doc.Status))
	}
	if approval.Decided() {
		return nil, PreconditionError(fmt.Sprintf("approval already decided (%s)", approval.Status))
	}
	return approval, nil
}

func (a *documentAggregate) roundOutcome(dbc dbctx.Context, doc *domain.Document) (domain.Outcome, error) {
	rows, err := a.deps.Approvals.ListByDocumentVersionID(dbc, *doc.CurrentVersionID)
	if err != nil {
		return domain.OutcomePending, err
	}
	role := roundRole(doc.Status)
	round := rows[:0:0]
	for _, row := range rows {
		if row.Role == role {
			round = append(round, row)
		}
	}
	return domain.AggregateApprovals(round), nil
}

// setStatus flips the status column with a CAS guard on the value read under
// lock; a lost race surfaces as a conflict instead of a silent overwrite.
func (a *documentAggregate) setStatus(dbc dbctx.Context, doc *domain.Document, target domain.DocumentStatus, updates map[string]interface{}) error {
	updates["status"] = target
	ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, domain.Document{}.TableName(), doc.ID, []string{string(doc.Status)}, updates)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("document status changed concurrently (expected=%s)", doc.Status))
}

func (a *documentAggregate) appendAudit(dbc dbctx.Context, documentID, actorID uuid.UUID, action domain.AuditAction, details map[string]any, now time.Time) error {
	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = a.deps.AuditLog.Append(dbc, &domain.AuditLogEntry{
		ID:         uuid.New(),
		EntityType: domain.AuditEntityDocument,
		EntityID:   documentID,
		ActorID:    actorID,
		Action:     action,
		Details:    datatypes.JSON(payload),
		CreatedAt:  now,
	})
	return err
}

func documentState(doc *domain.Document, outcome domain.Outcome) domainagg.DocumentState {
	return domainagg.DocumentState{
		DocumentID:     doc.ID,
		Status:         doc.Status,
		Outcome:        outcome,
		EffectiveDate:  doc.EffectiveDate,
		NextReviewDate: doc.NextReviewDate,
		UpdatedAt:      doc.UpdatedAt,
	}
}

func validateApproverIDs(op string, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return domainagg.NewError(domainagg.CodeValidation, op, "approver list must not be empty", nil)
	}
	seen := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			return domainagg.NewError(domainagg.CodeValidation, op, "approver list contains a nil id", nil)
		}
		if seen[id] {
			return domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("duplicate approver id: %s", id), nil)
		}
		seen[id] = true
	}
	return nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
