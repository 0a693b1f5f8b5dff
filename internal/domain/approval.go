package domain

import (
	"time"

	"github.com/google/uuid"
)

// ApprovalRole distinguishes the two document decision rounds. Change-request
// approvers are undifferentiated and always carry RoleApprover.
type ApprovalRole string

const (
	RoleReviewer ApprovalRole = "reviewer"
	RoleApprover ApprovalRole = "approver"
)

type ApprovalStatus string

const (
	ApprovalStatusPending          ApprovalStatus = "pending"
	ApprovalStatusApproved         ApprovalStatus = "approved"
	ApprovalStatusRejected         ApprovalStatus = "rejected"
	ApprovalStatusChangesRequested ApprovalStatus = "changes_requested"
)

// ApprovalSubject names what an approval row is attached to.
type ApprovalSubject string

const (
	SubjectDocumentVersion ApprovalSubject = "document_version"
	SubjectChangeRequest   ApprovalSubject = "change_request"
)

// Approval is one decider's decision record within an approval round.
// Exactly one row exists per (subject, approver, role) triple; reopening a
// round resets the row instead of stacking a second one.
type Approval struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	SubjectType       ApprovalSubject `gorm:"column:subject_type;not null;index" json:"subject_type"`
	DocumentID        *uuid.UUID      `gorm:"type:uuid;index" json:"document_id,omitempty"`
	DocumentVersionID *uuid.UUID      `gorm:"type:uuid;index;uniqueIndex:uq_approval_version_approver" json:"document_version_id,omitempty"`
	ChangeRequestID   *uuid.UUID      `gorm:"type:uuid;index;uniqueIndex:uq_approval_request_approver" json:"change_request_id,omitempty"`
	ApproverID        uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:uq_approval_version_approver;uniqueIndex:uq_approval_request_approver" json:"approver_id"`
	Role              ApprovalRole    `gorm:"column:role;not null;uniqueIndex:uq_approval_version_approver;uniqueIndex:uq_approval_request_approver" json:"role"`
	Status            ApprovalStatus  `gorm:"column:status;not null;default:'pending'" json:"status"`
	Notes             string          `gorm:"column:notes" json:"notes,omitempty"`
	DecidedAt         *time.Time      `gorm:"column:decided_at" json:"decided_at,omitempty"`
	CreatedAt         time.Time       `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"not null;default:now()" json:"updated_at"`
}

func (Approval) TableName() string { return "approval" }

// Decided reports whether the row carries a final decision.
func (a *Approval) Decided() bool {
	return a != nil && a.Status != ApprovalStatusPending
}

// Outcome is the aggregate verdict over one approval round.
type Outcome string

const (
	OutcomePending  Outcome = "pending"
	OutcomeApproved Outcome = "approved"
	OutcomeRejected Outcome = "rejected"
)

// AggregateApprovals folds one entity-version's approval rows into an
// aggregate outcome. A single rejection or changes-request is final no matter
// how many rows remain pending; approval requires a non-empty, unanimously
// approved set.
func AggregateApprovals(rows []*Approval) Outcome {
	if len(rows) == 0 {
		return OutcomePending
	}
	allApproved := true
	for _, row := range rows {
		if row == nil {
			continue
		}
		switch row.Status {
		case ApprovalStatusRejected, ApprovalStatusChangesRequested:
			return OutcomeRejected
		case ApprovalStatusApproved:
		default:
			allApproved = false
		}
	}
	if allApproved {
		return OutcomeApproved
	}
	return OutcomePending
}
