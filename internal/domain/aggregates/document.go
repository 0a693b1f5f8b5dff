package aggregates

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/veridian-labs/doccontrol-backend/internal/domain"
)

var DocumentAggregateContract = Contract{
	Name:             "DocControl.DocumentAggregate",
	WriteTxOwnership: WriteTxOwnedByAggregate,
	ReadPolicy:       ReadPolicyInvariantScoped,
	Notes:            "Owns document status progression, per-version approval rounds, and the audit writes they imply.",
}

// DocumentAggregate owns the controlled-document state machine.
//
// Every write method runs as one atomic transaction: row lock, transition
// validation, status + approval mutations, scheduler fields, audit append.
// Failures return *aggregates.Error with codes: CodeValidation, CodeNotFound,
// CodeInvariantViolation (illegal transition), CodePreconditionFailed,
// CodeConflict (lost concurrent write), CodeRetryable, CodeInternal.
type DocumentAggregate interface {
	Aggregate

	CreateDocument(ctx context.Context, in CreateDocumentInput) (DocumentState, error)

	// CreateVersion appends the next immutable version while the document is
	// in draft and points current_version_id at it.
	CreateVersion(ctx context.Context, in CreateVersionInput) (CreateVersionResult, error)

	// SubmitForReview opens a reviewer round against the current version.
	SubmitForReview(ctx context.Context, in SubmitRoundInput) (DocumentState, error)

	// SubmitForApproval opens an approver round against the current version.
	SubmitForApproval(ctx context.Context, in SubmitRoundInput) (DocumentState, error)

	// Approve records one approver's decision and re-aggregates the round.
	Approve(ctx context.Context, in ApproveDocumentInput) (DocumentState, error)

	// Reject voids the whole round and returns the document to draft.
	Reject(ctx context.Context, in RejectDocumentInput) (DocumentState, error)

	// TriggerReview moves an approved document into its periodic re-review.
	TriggerReview(ctx context.Context, in ActorInput) (DocumentState, error)

	// Archive terminates the lifecycle.
	Archive(ctx context.Context, in ActorInput) (DocumentState, error)

	// ReturnToDraft cancels the open round and resets status to draft.
	ReturnToDraft(ctx context.Context, in ReturnToDraftInput) (DocumentState, error)
}

type CreateDocumentInput struct {
	Title               string
	OwnerID             uuid.UUID
	ReviewFrequencyDays *int
}

type CreateVersionInput struct {
	DocumentID  uuid.UUID
	ContentHash string
	SizeBytes   int64
	UploadedBy  uuid.UUID
}

type CreateVersionResult struct {
	Document DocumentState
	Version  *domain.DocumentVersion
}

type SubmitRoundInput struct {
	DocumentID  uuid.UUID
	ApproverIDs []uuid.UUID
	ActorID     uuid.UUID
}

type ApproveDocumentInput struct {
	DocumentID  uuid.UUID
	ApprovalID  uuid.UUID
	ActorID     uuid.UUID
	Notes       string
	AutoApprove bool
}

type RejectDocumentInput struct {
	DocumentID     uuid.UUID
	ApprovalID     uuid.UUID
	ActorID        uuid.UUID
	Notes          string
	RequestChanges bool
}

type ActorInput struct {
	DocumentID uuid.UUID
	ActorID    uuid.UUID
}

type ReturnToDraftInput struct {
	DocumentID uuid.UUID
	ActorID    uuid.UUID
	Reason     string
}

// DocumentState is the post-operation entity summary returned to callers.
type DocumentState struct {
	DocumentID     uuid.UUID
	Status         domain.DocumentStatus
	Outcome        domain.Outcome
	EffectiveDate  *time.Time
	NextReviewDate *time.Time
	UpdatedAt      time.Time
}
