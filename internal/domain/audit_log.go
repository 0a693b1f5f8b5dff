package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// AuditEntityType scopes a ledger entry to the kind of entity it describes.
type AuditEntityType string

const (
	AuditEntityDocument      AuditEntityType = "document"
	AuditEntityChangeRequest AuditEntityType = "change_request"
)

// AuditAction is the closed set of ledger verbs. Every state-changing
// operation writes exactly one entry per logical action.
type AuditAction string

const (
	ActionCreateDocument    AuditAction = "create_document"
	ActionCreateVersion     AuditAction = "create_version"
	ActionSubmitForReview   AuditAction = "submit_for_review"
	ActionSubmitForApproval AuditAction = "submit_for_approval"
	ActionApprove           AuditAction = "approve"
	ActionReject            AuditAction = "reject"
	ActionRequestChanges    AuditAction = "request_changes"
	ActionTriggerReview     AuditAction = "trigger_review"
	ActionArchive           AuditAction = "archive"
	ActionReturnToDraft     AuditAction = "return_to_draft"

	ActionCreateChangeRequest  AuditAction = "create_change_request"
	ActionSubmitChangeRequest  AuditAction = "submit_change_request"
	ActionStartChangeReview    AuditAction = "start_change_review"
	ActionApproveChangeRequest AuditAction = "approve_change_request"
	ActionRejectChangeRequest  AuditAction = "reject_change_request"
	ActionCancelChangeRequest  AuditAction = "cancel_change_request"
	ActionMarkImplemented      AuditAction = "mark_implemented"
	ActionReturnChangeToDraft  AuditAction = "return_change_to_draft"
)

func KnownAuditAction(a AuditAction) bool {
	switch a {
	case ActionCreateDocument, ActionCreateVersion, ActionSubmitForReview, ActionSubmitForApproval,
		ActionApprove, ActionReject, ActionRequestChanges, ActionTriggerReview, ActionArchive,
		ActionReturnToDraft, ActionCreateChangeRequest, ActionSubmitChangeRequest,
		ActionStartChangeReview, ActionApproveChangeRequest, ActionRejectChangeRequest,
		ActionCancelChangeRequest, ActionMarkImplemented, ActionReturnChangeToDraft:
		return true
	}
	return false
}

// AuditLogEntry is append-only. There is no update or delete path anywhere in
// the codebase; rows are written inside the same transaction as the mutation
// they describe.
type AuditLogEntry struct {
	ID         uuid.UUID       `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	EntityType AuditEntityType `gorm:"column:entity_type;not null;index:idx_audit_entity" json:"entity_type"`
	EntityID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_audit_entity" json:"entity_id"`
	ActorID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"actor_id"`
	Action     AuditAction     `gorm:"column:action;not null;index" json:"action"`
	Details    datatypes.JSON  `gorm:"type:jsonb;column:details" json:"details,omitempty"`
	CreatedAt  time.Time       `gorm:"not null;default:now();index" json:"created_at"`
}

func (AuditLogEntry) TableName() string { return "audit_log_entry" }
