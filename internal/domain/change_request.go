package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChangeRequestStatus string

const (
	ChangeRequestStatusDraft       ChangeRequestStatus = "draft"
	ChangeRequestStatusSubmitted   ChangeRequestStatus = "submitted"
	ChangeRequestStatusUnderReview ChangeRequestStatus = "under_review"
	ChangeRequestStatusApproved    ChangeRequestStatus = "approved"
	ChangeRequestStatusRejected    ChangeRequestStatus = "rejected"
	ChangeRequestStatusImplemented ChangeRequestStatus = "implemented"
	ChangeRequestStatusCancelled   ChangeRequestStatus = "cancelled"
)

func KnownChangeRequestStatus(s ChangeRequestStatus) bool {
	switch s {
	case ChangeRequestStatusDraft, ChangeRequestStatusSubmitted, ChangeRequestStatusUnderReview,
		ChangeRequestStatusApproved, ChangeRequestStatusRejected, ChangeRequestStatusImplemented,
		ChangeRequestStatusCancelled:
		return true
	}
	return false
}

type ChangeRequestPriority string

const (
	PriorityLow      ChangeRequestPriority = "low"
	PriorityMedium   ChangeRequestPriority = "medium"
	PriorityHigh     ChangeRequestPriority = "high"
	PriorityCritical ChangeRequestPriority = "critical"
)

func KnownChangeRequestPriority(p ChangeRequestPriority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// ChangeRequest runs its own state machine, optionally cross-referencing the
// document it proposes to change.
type ChangeRequest struct {
	ID                   uuid.UUID             `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID           *uuid.UUID            `gorm:"type:uuid;index" json:"document_id,omitempty"`
	Document             *Document             `gorm:"constraint:OnDelete:SET NULL;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	Title                string                `gorm:"column:title;not null" json:"title"`
	Description          string                `gorm:"column:description" json:"description"`
	RequestedBy          uuid.UUID             `gorm:"type:uuid;not null;index" json:"requested_by"`
	Priority             ChangeRequestPriority `gorm:"column:priority;not null;default:'medium'" json:"priority"`
	Status               ChangeRequestStatus   `gorm:"column:status;not null;default:'draft';index" json:"status"`
	ImplementedVersionID *uuid.UUID            `gorm:"type:uuid" json:"implemented_version_id,omitempty"`
	ImplementationNote   string                `gorm:"column:implementation_note" json:"implementation_note,omitempty"`
	CreatedAt            time.Time             `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt            time.Time             `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt            gorm.DeletedAt        `gorm:"index" json:"deleted_at,omitempty"`
}

func (ChangeRequest) TableName() string { return "change_request" }
