package repos

import (
	"gorm.io/gorm"

	"github.com/veridian-labs/doccontrol-backend/internal/data/repos/approvals"
	"github.com/veridian-labs/doccontrol-backend/internal/data/repos/audit"
	"github.com/veridian-labs/doccontrol-backend/internal/data/repos/changes"
	"github.com/veridian-labs/doccontrol-backend/internal/data/repos/documents"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
)

type DocumentRepo = documents.DocumentRepo
type DocumentVersionRepo = documents.DocumentVersionRepo
type DocumentFilter = documents.DocumentFilter

type ApprovalRepo = approvals.ApprovalRepo

type ChangeRequestRepo = changes.ChangeRequestRepo
type ChangeRequestFilter = changes.ChangeRequestFilter

type AuditLogRepo = audit.AuditLogRepo
type AuditEntryFilter = audit.EntryFilter
type AuditEntryStats = audit.EntryStats

// Set bundles every table repo; cmd/main builds one and hands pieces to the
// aggregates and services.
type Set struct {
	Documents        DocumentRepo
	DocumentVersions DocumentVersionRepo
	Approvals        ApprovalRepo
	ChangeRequests   ChangeRequestRepo
	AuditLog         AuditLogRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Documents:        documents.NewDocumentRepo(db, baseLog),
		DocumentVersions: documents.NewDocumentVersionRepo(db, baseLog),
		Approvals:        approvals.NewApprovalRepo(db, baseLog),
		ChangeRequests:   changes.NewChangeRequestRepo(db, baseLog),
		AuditLog:         audit.NewAuditLogRepo(db, baseLog),
	}
}
