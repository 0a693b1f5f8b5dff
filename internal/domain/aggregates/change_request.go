package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veridian-labs/doccontrol-backend/internal/domain"
)

var ChangeRequestAggregateContract = Contract{
	Name:             "DocControl.ChangeRequestAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns change-request status progression and its approval round; audit scoped to the linked document when present.",
}

// ChangeRequestAggregate owns the change-request state machine. Same atomic
// write discipline and error codes as DocumentAggregate.
type ChangeRequestAggregate interface {
	Aggregate

	Create(ctx context.Context, in CreateChangeRequestInput) (ChangeRequestState, error)

	// Submit opens the approval round and moves draft -> submitted.
	Submit(ctx context.Context, in SubmitChangeRequestInput) (ChangeRequestState, error)

	// StartReview moves submitted -> under_review.
	StartReview(ctx context.Context, in ChangeRequestActorInput) (ChangeRequestState, error)

	// Approve records one approver's decision; a unanimous round lands the
	// request in approved.
	Approve(ctx context.Context, in DecideChangeRequestInput) (ChangeRequestState, error)

	// Reject records a rejection; the whole request becomes rejected.
	Reject(ctx context.Context, in DecideChangeRequestInput) (ChangeRequestState, error)

	// Cancel terminates the request and voids any pending approvals.
	Cancel(ctx context.Context, in CancelChangeRequestInput) (ChangeRequestState, error)

	// MarkImplemented closes out an approved request, optionally recording
	// the document version that realized it.
	MarkImplemented(ctx context.Context, in MarkImplementedInput) (ChangeRequestState, error)

	// ReturnToDraft cancels pending approvals and resets to draft.
	ReturnToDraft(ctx context.Context, in ReturnChangeRequestInput) (ChangeRequestState, error)
}

type CreateChangeRequestInput struct {
	DocumentID  *uuid.UUID
	Title       string
	Description string
	RequestedBy uuid.UUID
	Priority    domain.ChangeRequestPriority
}

type SubmitChangeRequestInput struct {
	ChangeRequestID uuid.UUID
	ApproverIDs     []uuid.UUID
	ActorID         uuid.UUID
}

type ChangeRequestActorInput struct {
	ChangeRequestID uuid.UUID
	ActorID         uuid.UUID
}

type DecideChangeRequestInput struct {
	ChangeRequestID uuid.UUID
	ApprovalID      uuid.UUID
	ActorID         uuid.UUID
	Notes           string
}

type CancelChangeRequestInput struct {
	ChangeRequestID uuid.UUID
	ActorID         uuid.UUID
	Reason          string
}

type MarkImplementedInput struct {
	ChangeRequestID      uuid.UUID
	ActorID              uuid.UUID
	ImplementedVersionID *uuid.UUID
	Note                 string
}

type ReturnChangeRequestInput struct {
	ChangeRequestID uuid.UUID
	ActorID         uuid.UUID
	Reason          string
}

type ChangeRequestState struct {
	ChangeRequestID uuid.UUID
	DocumentID      *uuid.UUID
	Status          domain.ChangeRequestStatus
	Outcome         domain.Outcome
	UpdatedAt       time.Time
}
