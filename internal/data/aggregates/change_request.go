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

type ChangeRequestAggregateDeps struct {
	Base BaseDeps

	ChangeRequests repos.ChangeRequestRepo
	Documents      repos.DocumentRepo
	Versions       repos.DocumentVersionRepo
	Approvals      repos.ApprovalRepo
	AuditLog       repos.AuditLogRepo
}

type changeRequestAggregate struct {
	deps ChangeRequestAggregateDeps
	now  func() time.Time
}

func NewChangeRequestAggregate(deps ChangeRequestAggregateDeps) domainagg.ChangeRequestAggregate {
	deps.Base = deps.Base.withDefaults()
	return &changeRequestAggregate{deps: deps, now: func() time.Time { return time.Now().UTC() }}
}

func (a *changeRequestAggregate) Contract() domainagg.Contract {
	return domainagg.ChangeRequestAggregateContract
}

var changeRequestTransitions = map[domain.ChangeRequestStatus][]domain.ChangeRequestStatus{
	domain.ChangeRequestStatusDraft:       {domain.ChangeRequestStatusSubmitted, domain.ChangeRequestStatusCancelled},
	domain.ChangeRequestStatusSubmitted:   {domain.ChangeRequestStatusUnderReview, domain.ChangeRequestStatusCancelled},
	domain.ChangeRequestStatusUnderReview: {domain.ChangeRequestStatusApproved, domain.ChangeRequestStatusRejected, domain.ChangeRequestStatusDraft},
	domain.ChangeRequestStatusApproved:    {domain.ChangeRequestStatusImplemented},
	domain.ChangeRequestStatusRejected:    {domain.ChangeRequestStatusDraft, domain.ChangeRequestStatusCancelled},
	domain.ChangeRequestStatusImplemented: {},
	domain.ChangeRequestStatusCancelled:   {},
}

func isAllowedChangeRequestTransition(from, to domain.ChangeRequestStatus) bool {
	for _, target := range changeRequestTransitions[from] {
		if target == to {
			return true
		}
	}
	return false
}

func (a *changeRequestAggregate) Create(ctx context.Context, in domainagg.CreateChangeRequestInput) (domainagg.ChangeRequestState, error) {
	const op = "DocControl.ChangeRequest.Create"
	var out domainagg.ChangeRequestState

	if in.Title == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing title", nil)
	}
	if in.RequestedBy == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing requested_by", nil)
	}
	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityMedium
	}
	if !domain.KnownChangeRequestPriority(priority) {
		return out, domainagg.NewError(domainagg.CodeValidation, op, fmt.Sprintf("unknown priority: %s", in.Priority), nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		if in.DocumentID != nil {
			doc, err := a.deps.Documents.GetByID(dbc, *in.DocumentID)
			if err != nil {
				return err
			}
			if doc == nil {
				return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("document not found: %s", *in.DocumentID), nil)
			}
		}

		now := a.now()
		cr := &domain.ChangeRequest{
			ID:          uuid.New(),
			DocumentID:  in.DocumentID,
			Title:       in.Title,
			Description: in.Description,
			RequestedBy: in.RequestedBy,
			Priority:    priority,
			Status:      domain.ChangeRequestStatusDraft,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if _, err := a.deps.ChangeRequests.Create(dbc, []*domain.ChangeRequest{cr}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, cr, in.RequestedBy, domain.ActionCreateChangeRequest, map[string]any{
			"title":    in.Title,
			"priority": string(priority),
		}, now); err != nil {
			return err
		}
		out = changeRequestState(cr, domain.OutcomePending)
		return nil
	})
	return out, err
}

func (a *changeRequestAggregate) Submit(ctx context.Context, in domainagg.SubmitChangeRequestInput) (domainagg.ChangeRequestState, error) {
	const op = "DocControl.ChangeRequest.Submit"
	var out domainagg.ChangeRequestState

	if in.ChangeRequestID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing change_request_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}
	if err := validateApproverIDs(op, in.ApproverIDs); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		cr, err := a.lockChangeRequest(dbc, op, in.ChangeRequestID)
		if err != nil {
			return err
		}
		if !isAllowedChangeRequestTransition(cr.Status, domain.ChangeRequestStatusSubmitted) {
			return InvariantError(fmt.Sprintf("invalid change request transition %s -> %s", cr.Status, domain.ChangeRequestStatusSubmitted))
		}

		now := a.now()
		if err := a.openRound(dbc, cr, in.ApproverIDs, now); err != nil {
			return err
		}
		if err := a.setStatus(dbc, cr, domain.ChangeRequestStatusSubmitted, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, cr, in.ActorID, domain.ActionSubmitChangeRequest, map[string]any{
			"approver_ids": uuidStrings(in.ApproverIDs),
			"new_status":   string(domain.ChangeRequestStatusSubmitted),
		}, now); err != nil {
			return err
		}

		cr.Status = domain.ChangeRequestStatusSubmitted
		cr.UpdatedAt = now
		out = changeRequestState(cr, domain.OutcomePending)
		return nil
	})
	return out, err
}

// openRound mirrors the document round bookkeeping: one row per approver,
// re-listed approvers reset to pending, dropped approvers removed.
func (a *changeRequestAggregate) openRound(dbc dbctx.Context, cr *domain.ChangeRequest, approverIDs []uuid.UUID, now time.Time) error {
	existing, err := a.deps.Approvals.ListByChangeRequestID(dbc, cr.ID)
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
			ID:              uuid.New(),
			SubjectType:     domain.SubjectChangeRequest,
			DocumentID:      cr.DocumentID,
			ChangeRequestID: &cr.ID,
			ApproverID:      approverID,
			Role:            domain.RoleApprover,
			Status:          domain.ApprovalStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		})
	}
	_, err = a.deps.Approvals.Create(dbc, fresh)
	return err
}

func (a *changeRequestAggregate) StartReview(ctx context.Context, in domainagg.ChangeRequestActorInput) (domainagg.ChangeRequestState, error) {
	const op = "DocControl.ChangeRequest.StartReview"
	return a.simpleTransition(ctx, op, in, domain.ChangeRequestStatusUnderReview, domain.ActionStartChangeReview, nil)
}

func (a *changeRequestAggregate) Approve(ctx context.Context, in domainagg.DecideChangeRequestInput) (domainagg.ChangeRequestState, error) {
	const op = "DocControl.ChangeRequest.Approve"
	var out domainagg.ChangeRequestState

	if err := validateDecisionInput(op, in); err != nil {
		return out, err
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		cr, err := a.lockChangeRequest(dbc, op, in.ChangeRequestID)
		if err != nil {
			return err
		}
		if cr.Status != domain.ChangeRequestStatusUnderReview {
			return PreconditionError(fmt.Sprintf("change request is %q, review is not open", cr.Status))
		}
		approval, err := a.roundApproval(dbc, op, cr, in.ApprovalID)
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

		rows, err := a.deps.Approvals.ListByChangeRequestID(dbc, cr.ID)
		if err != nil {
			return err
		}
		outcome := domain.AggregateApprovals(rows)

		previous := cr.Status
		switch outcome {
		case domain.OutcomeApproved:
			if err := a.setStatus(dbc, cr, domain.ChangeRequestStatusApproved, map[string]interface{}{"updated_at": now}); err != nil {
				return err
			}
			cr.Status = domain.ChangeRequestStatusApproved
		case domain.OutcomeRejected:
			if err := a.setStatus(dbc, cr, domain.ChangeRequestStatusRejected, map[string]interface{}{"updated_at": now}); err != nil {
				return err
			}
			cr.Status = domain.ChangeRequestStatusRejected
		}
		cr.UpdatedAt = now

		if err := a.appendAudit(dbc, cr, in.ActorID, domain.ActionApproveChangeRequest, map[string]any{
			"approval_id":     approval.ID.String(),
			"outcome":         string(outcome),
			"previous_status": string(previous),
			"new_status":      string(cr.Status),
		}, now); err != nil {
			return err
		}

		out = changeRequestState(cr, outcome)
		return nil
	})
	return out, err
}

func (a *changeRequestAggregate) Reject(ctx context.Context, in domainagg.DecideChangeRequestInput) (domainagg.ChangeRequestState, error) {
	const op = "DocControl.ChangeRequest.Reject"
	var out domainagg.ChangeRequestState

	if err := validateDecisionInput(op, in); err != nil {
		return out, err
	}
	if in.Notes == "" {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "rejection notes are required", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		cr, err := a.lockChangeRequest(dbc, op, in.ChangeRequestID)
		if err != nil {
			return err
		}
		if cr.Status != domain.ChangeRequestStatusUnderReview {
			return PreconditionError(fmt.Sprintf("change request is %q, review is not open", cr.Status))
		}
		approval, err := a.roundApproval(dbc, op, cr, in.ApprovalID)
		if err != nil {
			return err
		}

		now := a.now()
		if err := a.deps.Approvals.UpdateFields(dbc, approval.ID, map[string]interface{}{
			"status":     domain.ApprovalStatusRejected,
			"notes":      in.Notes,
			"decided_at": now,
			"updated_at": now,
		}); err != nil {
			return err
		}

		previous := cr.Status
		if err := a.setStatus(dbc, cr, domain.ChangeRequestStatusRejected, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		cr.Status = domain.ChangeRequestStatusRejected
		cr.UpdatedAt = now

		if err := a.appendAudit(dbc, cr, in.ActorID, domain.ActionRejectChangeRequest, map[string]any{
			"approval_id":     approval.ID.String(),
			"notes":           in.Notes,
			"previous_status": string(previous),
			"new_status":      string(domain.ChangeRequestStatusRejected),
		}, now); err != nil {
			return err
		}

		out = changeRequestState(cr, domain.OutcomeRejected)
		return nil
	})
	return out, err
}

func (a *changeRequestAggregate) Cancel(ctx context.Context, in domainagg.CancelChangeRequestInput) (domainagg.ChangeRequestState, error) {
	const op = "DocControl.ChangeRequest.Cancel"
	var out domainagg.ChangeRequestState

	if in.ChangeRequestID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing change_request_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		cr, err := a.lockChangeRequest(dbc, op, in.ChangeRequestID)
		if err != nil {
			return err
		}
		if !isAllowedChangeRequestTransition(cr.Status, domain.ChangeRequestStatusCancelled) {
			return InvariantError(fmt.Sprintf("invalid change request transition %s -> %s", cr.Status, domain.ChangeRequestStatusCancelled))
		}

		now := a.now()
		notes := "cancelled: request withdrawn"
		if in.Reason != "" {
			notes = "cancelled: " + in.Reason
		}
		cancelled, err := a.deps.Approvals.UpdatePendingByChangeRequest(dbc, cr.ID, map[string]interface{}{
			"status":     domain.ApprovalStatusRejected,
			"notes":      notes,
			"decided_at": now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}

		previous := cr.Status
		if err := a.setStatus(dbc, cr, domain.ChangeRequestStatusCancelled, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, cr, in.ActorID, domain.ActionCancelChangeRequest, map[string]any{
			"reason":              in.Reason,
			"cancelled_approvals": cancelled,
			"previous_status":     string(previous),
		}, now); err != nil {
			return err
		}

		cr.Status = domain.ChangeRequestStatusCancelled
		cr.UpdatedAt = now
		out = changeRequestState(cr, domain.OutcomePending)
		return nil
	})
	return out, err
}

func (a *changeRequestAggregate) MarkImplemented(ctx context.Context, in domainagg.MarkImplementedInput) (domainagg.ChangeRequestState, error) {
	const op = "DocControl.ChangeRequest.MarkImplemented"
	var out domainagg.ChangeRequestState

	if in.ChangeRequestID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing change_request_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		cr, err := a.lockChangeRequest(dbc, op, in.ChangeRequestID)
		if err != nil {
			return err
		}
		if !isAllowedChangeRequestTransition(cr.Status, domain.ChangeRequestStatusImplemented) {
			return InvariantError(fmt.Sprintf("invalid change request transition %s -> %s", cr.Status, domain.ChangeRequestStatusImplemented))
		}

		if in.ImplementedVersionID != nil {
			version, err := a.deps.Versions.GetByID(dbc, *in.ImplementedVersionID)
			if err != nil {
				return err
			}
			if version == nil {
				return domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("document version not found: %s", *in.ImplementedVersionID), nil)
			}
			if cr.DocumentID != nil && version.DocumentID != *cr.DocumentID {
				return PreconditionError("implemented version does not belong to the linked document")
			}
		}

		now := a.now()
		previous := cr.Status
		updates := map[string]interface{}{
			"implementation_note": in.Note,
			"updated_at":          now,
		}
		if in.ImplementedVersionID != nil {
			updates["implemented_version_id"] = *in.ImplementedVersionID
		}
		if err := a.setStatus(dbc, cr, domain.ChangeRequestStatusImplemented, updates); err != nil {
			return err
		}

		details := map[string]any{
			"note":            in.Note,
			"previous_status": string(previous),
		}
		if in.ImplementedVersionID != nil {
			details["implemented_version_id"] = in.ImplementedVersionID.String()
		}
		if err := a.appendAudit(dbc, cr, in.ActorID, domain.ActionMarkImplemented, details, now); err != nil {
			return err
		}

		cr.Status = domain.ChangeRequestStatusImplemented
		cr.ImplementedVersionID = in.ImplementedVersionID
		cr.ImplementationNote = in.Note
		cr.UpdatedAt = now
		out = changeRequestState(cr, domain.OutcomeApproved)
		return nil
	})
	return out, err
}

func (a *changeRequestAggregate) ReturnToDraft(ctx context.Context, in domainagg.ReturnChangeRequestInput) (domainagg.ChangeRequestState, error) {
	const op = "DocControl.ChangeRequest.ReturnToDraft"
	var out domainagg.ChangeRequestState

	if in.ChangeRequestID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing change_request_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		cr, err := a.lockChangeRequest(dbc, op, in.ChangeRequestID)
		if err != nil {
			return err
		}
		if !isAllowedChangeRequestTransition(cr.Status, domain.ChangeRequestStatusDraft) {
			return InvariantError(fmt.Sprintf("invalid change request transition %s -> %s", cr.Status, domain.ChangeRequestStatusDraft))
		}

		now := a.now()
		notes := "cancelled: returned to draft"
		if in.Reason != "" {
			notes = "cancelled: " + in.Reason
		}
		cancelled, err := a.deps.Approvals.UpdatePendingByChangeRequest(dbc, cr.ID, map[string]interface{}{
			"status":     domain.ApprovalStatusRejected,
			"notes":      notes,
			"decided_at": now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}

		previous := cr.Status
		if err := a.setStatus(dbc, cr, domain.ChangeRequestStatusDraft, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		if err := a.appendAudit(dbc, cr, in.ActorID, domain.ActionReturnChangeToDraft, map[string]any{
			"reason":              in.Reason,
			"cancelled_approvals": cancelled,
			"previous_status":     string(previous),
		}, now); err != nil {
			return err
		}

		cr.Status = domain.ChangeRequestStatusDraft
		cr.UpdatedAt = now
		out = changeRequestState(cr, domain.OutcomePending)
		return nil
	})
	return out, err
}

func (a *changeRequestAggregate) simpleTransition(
	ctx context.Context,
	op string,
	in domainagg.ChangeRequestActorInput,
	target domain.ChangeRequestStatus,
	action domain.AuditAction,
	details map[string]any,
) (domainagg.ChangeRequestState, error) {
	var out domainagg.ChangeRequestState

	if in.ChangeRequestID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing change_request_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return out, domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}

	err := executeWrite(ctx, a.deps.Base, op, func(dbc dbctx.Context) error {
		cr, err := a.lockChangeRequest(dbc, op, in.ChangeRequestID)
		if err != nil {
			return err
		}
		if !isAllowedChangeRequestTransition(cr.Status, target) {
			return InvariantError(fmt.Sprintf("invalid change request transition %s -> %s", cr.Status, target))
		}

		now := a.now()
		previous := cr.Status
		if err := a.setStatus(dbc, cr, target, map[string]interface{}{"updated_at": now}); err != nil {
			return err
		}
		if details == nil {
			details = map[string]any{}
		}
		details["previous_status"] = string(previous)
		details["new_status"] = string(target)
		if err := a.appendAudit(dbc, cr, in.ActorID, action, details, now); err != nil {
			return err
		}

		cr.Status = target
		cr.UpdatedAt = now
		out = changeRequestState(cr, domain.OutcomePending)
		return nil
	})
	return out, err
}

func (a *changeRequestAggregate) lockChangeRequest(dbc dbctx.Context, op string, id uuid.UUID) (*domain.ChangeRequest, error) {
	cr, err := a.deps.ChangeRequests.LockByID(dbc, id)
	if err != nil {
		return nil, err
	}
	if cr == nil || cr.ID == uuid.Nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("change request not found: %s", id), nil)
	}
	return cr, nil
}

func (a *changeRequestAggregate) roundApproval(dbc dbctx.Context, op string, cr *domain.ChangeRequest, approvalID uuid.UUID) (*domain.Approval, error) {
	approval, err := a.deps.Approvals.GetByID(dbc, approvalID)
	if err != nil {
		return nil, err
	}
	if approval == nil {
		return nil, domainagg.NewError(domainagg.CodeNotFound, op, fmt.Sprintf("approval not found: %s", approvalID), nil)
	}
	if approval.ChangeRequestID == nil || *approval.ChangeRequestID != cr.ID {
		return nil, PreconditionError("approval is not scoped to this change request")
	}
	if approval.Decided() {
		return nil, PreconditionError(fmt.Sprintf("approval already decided (%s)", approval.Status))
	}
	return approval, nil
}

func (a *changeRequestAggregate) setStatus(dbc dbctx.Context, cr *domain.ChangeRequest, target domain.ChangeRequestStatus, updates map[string]interface{}) error {
	updates["status"] = target
	ok, err := a.deps.Base.CASGuard.UpdateByStatus(dbc, domain.ChangeRequest{}.TableName(), cr.ID, []string{string(cr.Status)}, updates)
	if err != nil {
		return err
	}
	return RequireCASSuccess(ok, fmt.Sprintf("change request status changed concurrently (expected=%s)", cr.Status))
}

// appendAudit scopes the entry to the linked document when present so a
// document's trail includes the change requests raised against it.
func (a *changeRequestAggregate) appendAudit(dbc dbctx.Context, cr *domain.ChangeRequest, actorID uuid.UUID, action domain.AuditAction, details map[string]any, now time.Time) error {
	if details == nil {
		details = map[string]any{}
	}
	details["change_request_id"] = cr.ID.String()

	entityType := domain.AuditEntityChangeRequest
	entityID := cr.ID
	if cr.DocumentID != nil {
		entityType = domain.AuditEntityDocument
		entityID = *cr.DocumentID
	}

	payload, err := json.Marshal(details)
	if err != nil {
		return err
	}
	_, err = a.deps.AuditLog.Append(dbc, &domain.AuditLogEntry{
		ID:         uuid.New(),
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		Action:     action,
		Details:    datatypes.JSON(payload),
		CreatedAt:  now,
	})
	return err
}

func changeRequestState(cr *domain.ChangeRequest, outcome domain.Outcome) domainagg.ChangeRequestState {
	return domainagg.ChangeRequestState{
		ChangeRequestID: cr.ID,
		DocumentID:      cr.DocumentID,
		Status:          cr.Status,
		Outcome:         outcome,
		UpdatedAt:       cr.UpdatedAt,
	}
}

func validateDecisionInput(op string, in domainagg.DecideChangeRequestInput) error {
	if in.ChangeRequestID == uuid.Nil || in.ApprovalID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing change_request_id or approval_id", nil)
	}
	if in.ActorID == uuid.Nil {
		return domainagg.NewError(domainagg.CodeValidation, op, "missing actor_id", nil)
	}
	return nil
}
