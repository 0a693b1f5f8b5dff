package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentStatus is the controlled-document lifecycle state column.
type DocumentStatus string

const (
	DocumentStatusDraft           DocumentStatus = "draft"
	DocumentStatusPendingReview   DocumentStatus = "pending_review"
	DocumentStatusPendingApproval DocumentStatus = "pending_approval"
	DocumentStatusApproved        DocumentStatus = "approved"
	DocumentStatusUnderReview     DocumentStatus = "under_review"
	DocumentStatusArchived        DocumentStatus = "archived"
)

// KnownDocumentStatus reports whether s is one of the lifecycle states.
func KnownDocumentStatus(s DocumentStatus) bool {
	switch s {
	case DocumentStatusDraft, DocumentStatusPendingReview, DocumentStatusPendingApproval,
		DocumentStatusApproved, DocumentStatusUnderReview, DocumentStatusArchived:
		return true
	}
	return false
}

type Document struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Title               string         `gorm:"column:title;not null" json:"title"`
	Status              DocumentStatus `gorm:"column:status;not null;default:'draft';index" json:"status"`
	OwnerID             uuid.UUID      `gorm:"type:uuid;not null;index" json:"owner_id"`
	CurrentVersionID    *uuid.UUID     `gorm:"type:uuid" json:"current_version_id,omitempty"`
	EffectiveDate       *time.Time     `gorm:"column:effective_date" json:"effective_date,omitempty"`
	ReviewFrequencyDays *int           `gorm:"column:review_frequency_days" json:"review_frequency_days,omitempty"`
	NextReviewDate      *time.Time     `gorm:"column:next_review_date;index" json:"next_review_date,omitempty"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Document) TableName() string { return "document" }

// DocumentVersion is one immutable uploaded revision. Version numbers are
// 1-based and strictly increasing per document; approvals are scoped to
// exactly one version and never carry across versions.
type DocumentVersion struct {
	ID            uuid.UUID `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	DocumentID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:uq_document_version_number" json:"document_id"`
	Document      *Document `gorm:"constraint:OnDelete:CASCADE;foreignKey:DocumentID;references:ID" json:"document,omitempty"`
	VersionNumber int       `gorm:"column:version_number;not null;uniqueIndex:uq_document_version_number" json:"version_number"`
	ContentHash   string    `gorm:"column:content_hash;not null" json:"content_hash"`
	SizeBytes     int64     `gorm:"column:size_bytes" json:"size_bytes"`
	UploadedBy    uuid.UUID `gorm:"type:uuid;not null" json:"uploaded_by"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
}

func (DocumentVersion) TableName() string { return "document_version" }
