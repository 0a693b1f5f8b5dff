package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/veridian-labs/doccontrol-backend/internal/domain"
)

func SeedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, status domain.DocumentStatus) *domain.Document {
	tb.Helper()
	d := &domain.Document{
		ID:      uuid.New(),
		Title:   "Quality Manual",
		Status:  status,
		OwnerID: uuid.New(),
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed document: %v", err)
	}
	return d
}

func SeedVersion(tb testing.TB, ctx context.Context, tx *gorm.DB, doc *domain.Document, number int) *domain.DocumentVersion {
	tb.Helper()
	v := &domain.DocumentVersion{
		ID:            uuid.New(),
		DocumentID:    doc.ID,
		VersionNumber: number,
		ContentHash:   "sha256:deadbeef",
		SizeBytes:     1024,
		UploadedBy:    doc.OwnerID,
	}
	if err := tx.WithContext(ctx).Create(v).Error; err != nil {
		tb.Fatalf("seed version: %v", err)
	}
	if err := tx.WithContext(ctx).Model(&domain.Document{}).
		Where("id = ?", doc.ID).
		Update("current_version_id", v.ID).Error; err != nil {
		tb.Fatalf("point document at version: %v", err)
	}
	doc.CurrentVersionID = &v.ID
	return v
}

func SeedApproval(tb testing.TB, ctx context.Context, tx *gorm.DB, doc *domain.Document, versionID uuid.UUID, role domain.ApprovalRole, status domain.ApprovalStatus) *domain.Approval {
	tb.Helper()
	a := &domain.Approval{
		ID:                uuid.New(),
		SubjectType:       domain.SubjectDocumentVersion,
		DocumentID:        &doc.ID,
		DocumentVersionID: &versionID,
		ApproverID:        uuid.New(),
		Role:              role,
		Status:            status,
	}
	if status != domain.ApprovalStatusPending {
		now := time.Now().UTC()
		a.DecidedAt = &now
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed approval: %v", err)
	}
	return a
}

func SeedChangeRequestApproval(tb testing.TB, ctx context.Context, tx *gorm.DB, cr *domain.ChangeRequest, status domain.ApprovalStatus) *domain.Approval {
	tb.Helper()
	a := &domain.Approval{
		ID:              uuid.New(),
		SubjectType:     domain.SubjectChangeRequest,
		DocumentID:      cr.DocumentID,
		ChangeRequestID: &cr.ID,
		ApproverID:      uuid.New(),
		Role:            domain.RoleApprover,
		Status:          status,
	}
	if status != domain.ApprovalStatusPending {
		now := time.Now().UTC()
		a.DecidedAt = &now
	}
	if err := tx.WithContext(ctx).Create(a).Error; err != nil {
		tb.Fatalf("seed change request approval: %v", err)
	}
	return a
}

func SeedChangeRequest(tb testing.TB, ctx context.Context, tx *gorm.DB, documentID *uuid.UUID, status domain.ChangeRequestStatus) *domain.ChangeRequest {
	tb.Helper()
	cr := &domain.ChangeRequest{
		ID:          uuid.New(),
		DocumentID:  documentID,
		Title:       "Update acceptance criteria",
		Description: "Section 4 is out of date",
		RequestedBy: uuid.New(),
		Priority:    domain.PriorityMedium,
		Status:      status,
	}
	if err := tx.WithContext(ctx).Create(cr).Error; err != nil {
		tb.Fatalf("seed change request: %v", err)
	}
	return cr
}

// SeedApprovedDocument creates an approved document whose next review date is
// daysOverdue in the past (or the future when negative).
func SeedApprovedDocument(tb testing.TB, ctx context.Context, tx *gorm.DB, daysOverdue int) *domain.Document {
	tb.Helper()
	now := time.Now().UTC()
	effective := now.AddDate(0, 0, -domain.DefaultReviewFrequencyDays-daysOverdue)
	next := now.AddDate(0, 0, -daysOverdue)
	freq := domain.DefaultReviewFrequencyDays
	d := &domain.Document{
		ID:                  uuid.New(),
		Title:               "SOP",
		Status:              domain.DocumentStatusApproved,
		OwnerID:             uuid.New(),
		EffectiveDate:       &effective,
		ReviewFrequencyDays: &freq,
		NextReviewDate:      &next,
	}
	if err := tx.WithContext(ctx).Create(d).Error; err != nil {
		tb.Fatalf("seed approved document: %v", err)
	}
	SeedVersion(tb, ctx, tx, d, 1)
	return d
}
