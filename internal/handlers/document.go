package handlers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridian-labs/doccontrol-backend/internal/data/repos"
	documentsrepo "github.com/veridian-labs/doccontrol-backend/internal/data/repos/documents"
	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/domain/aggregates"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
	"github.com/veridian-labs/doccontrol-backend/internal/requestdata"
)

type DocumentHandler struct {
	log       *logger.Logger
	docsAgg   aggregates.DocumentAggregate
	docs      repos.DocumentRepo
	versions  repos.DocumentVersionRepo
	approvals repos.ApprovalRepo
}

func NewDocumentHandler(
	log *logger.Logger,
	docsAgg aggregates.DocumentAggregate,
	docs repos.DocumentRepo,
	versions repos.DocumentVersionRepo,
	approvals repos.ApprovalRepo,
) *DocumentHandler {
	return &DocumentHandler{
		log:       log.With("handler", "DocumentHandler"),
		docsAgg:   docsAgg,
		docs:      docs,
		versions:  versions,
		approvals: approvals,
	}
}

func (h *DocumentHandler) Create(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	var body struct {
		Title               string `json:"title"`
		ReviewFrequencyDays *int   `json:"review_frequency_days"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	state, err := h.docsAgg.CreateDocument(c.Request.Context(), aggregates.CreateDocumentInput{
		Title:               body.Title,
		OwnerID:             actorID,
		ReviewFrequencyDays: body.ReviewFrequencyDays,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondCreated(c, gin.H{"document": state})
}

func (h *DocumentHandler) List(c *gin.Context) {
	filter := documentsrepo.DocumentFilter{
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	for _, raw := range c.QueryArray("status") {
		status := domain.DocumentStatus(strings.TrimSpace(raw))
		if !domain.KnownDocumentStatus(status) {
			RespondError(c, http.StatusBadRequest, "bad_request", errUnknownStatus(raw))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if raw := strings.TrimSpace(c.Query("owner_id")); raw != "" {
		ownerID, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		filter.OwnerID = &ownerID
	}

	rows, err := h.docs.List(dbctx.Context{Ctx: c.Request.Context()}, filter)
	if err != nil {
		h.log.Error("List documents failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"documents": rows})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.docs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, docID)
	if err != nil {
		h.log.Error("Get document failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if doc == nil {
		RespondError(c, http.StatusNotFound, "not_found", errDocumentNotFound(docID))
		return
	}
	versions, err := h.versions.ListByDocumentID(dbctx.Context{Ctx: c.Request.Context()}, docID)
	if err != nil {
		h.log.Error("List versions failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"document": doc, "versions": versions})
}

func (h *DocumentHandler) CreateVersion(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		ContentHash string `json:"content_hash"`
		SizeBytes   int64  `json:"size_bytes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	result, err := h.docsAgg.CreateVersion(c.Request.Context(), aggregates.CreateVersionInput{
		DocumentID:  docID,
		ContentHash: body.ContentHash,
		SizeBytes:   body.SizeBytes,
		UploadedBy:  actorID,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondCreated(c, gin.H{"document": result.Document, "version": result.Version})
}

func (h *DocumentHandler) ListVersions(c *gin.Context) {
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	versions, err := h.versions.ListByDocumentID(dbctx.Context{Ctx: c.Request.Context()}, docID)
	if err != nil {
		h.log.Error("List versions failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"versions": versions})
}

func (h *DocumentHandler) SubmitForReview(c *gin.Context) {
	h.submitRound(c, h.docsAgg.SubmitForReview)
}

func (h *DocumentHandler) SubmitForApproval(c *gin.Context) {
	h.submitRound(c, h.docsAgg.SubmitForApproval)
}

func (h *DocumentHandler) submitRound(c *gin.Context, op func(ctx context.Context, in aggregates.SubmitRoundInput) (aggregates.DocumentState, error)) {
	actorID := requestdata.ActorID(c.Request.Context())
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		ApproverIDs []uuid.UUID `json:"approver_ids"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	state, err := op(c.Request.Context(), aggregates.SubmitRoundInput{
		DocumentID:  docID,
		ApproverIDs: body.ApproverIDs,
		ActorID:     actorID,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": state})
}

func (h *DocumentHandler) ListApprovals(c *gin.Context) {
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	doc, err := h.docs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, docID)
	if err != nil {
		h.log.Error("Get document failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if doc == nil {
		RespondError(c, http.StatusNotFound, "not_found", errDocumentNotFound(docID))
		return
	}
	if doc.CurrentVersionID == nil {
		RespondOK(c, gin.H{"approvals": []any{}})
		return
	}
	rows, err := h.approvals.ListByDocumentVersionID(dbctx.Context{Ctx: c.Request.Context()}, *doc.CurrentVersionID)
	if err != nil {
		h.log.Error("List approvals failed", "error", err, "document_id", docID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"approvals": rows})
}

func (h *DocumentHandler) Approve(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	approvalID, ok := parseIDParam(c, "approvalId")
	if !ok {
		return
	}
	var body struct {
		Notes       string `json:"notes"`
		AutoApprove bool   `json:"auto_approve"`
	}
	if err := bindOptionalJSON(c, &body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	state, err := h.docsAgg.Approve(c.Request.Context(), aggregates.ApproveDocumentInput{
		DocumentID:  docID,
		ApprovalID:  approvalID,
		ActorID:     actorID,
		Notes:       body.Notes,
		AutoApprove: body.AutoApprove,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": state})
}

func (h *DocumentHandler) Reject(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	approvalID, ok := parseIDParam(c, "approvalId")
	if !ok {
		return
	}
	var body struct {
		Notes          string `json:"notes"`
		RequestChanges bool   `json:"request_changes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	state, err := h.docsAgg.Reject(c.Request.Context(), aggregates.RejectDocumentInput{
		DocumentID:     docID,
		ApprovalID:     approvalID,
		ActorID:        actorID,
		Notes:          body.Notes,
		RequestChanges: body.RequestChanges,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": state})
}

func (h *DocumentHandler) TriggerReview(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	state, err := h.docsAgg.TriggerReview(c.Request.Context(), aggregates.ActorInput{
		DocumentID: docID,
		ActorID:    actorID,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": state})
}

func (h *DocumentHandler) Archive(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	state, err := h.docsAgg.Archive(c.Request.Context(), aggregates.ActorInput{
		DocumentID: docID,
		ActorID:    actorID,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": state})
}

func (h *DocumentHandler) ReturnToDraft(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	docID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if err := bindOptionalJSON(c, &body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	state, err := h.docsAgg.ReturnToDraft(c.Request.Context(), aggregates.ReturnToDraftInput{
		DocumentID: docID,
		ActorID:    actorID,
		Reason:     body.Reason,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"document": state})
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return uuid.Nil, false
	}
	return id, true
}

func parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

// bindOptionalJSON tolerates an empty request body for endpoints whose fields
// are all optional.
func bindOptionalJSON(c *gin.Context, out any) error {
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return nil
	}
	if err := c.ShouldBindJSON(out); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func errUnknownStatus(raw string) error {
	return fmt.Errorf("unknown status: %s", raw)
}

func errDocumentNotFound(id uuid.UUID) error {
	return fmt.Errorf("document not found: %s", id)
}
