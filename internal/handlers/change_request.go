package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/veridian-labs/doccontrol-backend/internal/data/repos"
	changesrepo "github.com/veridian-labs/doccontrol-backend/internal/data/repos/changes"
	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/domain/aggregates"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/dbctx"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
	"github.com/veridian-labs/doccontrol-backend/internal/requestdata"
)

type ChangeRequestHandler struct {
	log       *logger.Logger
	crAgg     aggregates.ChangeRequestAggregate
	changes   repos.ChangeRequestRepo
	approvals repos.ApprovalRepo
}

func NewChangeRequestHandler(
	log *logger.Logger,
	crAgg aggregates.ChangeRequestAggregate,
	changes repos.ChangeRequestRepo,
	approvals repos.ApprovalRepo,
) *ChangeRequestHandler {
	return &ChangeRequestHandler{
		log:       log.With("handler", "ChangeRequestHandler"),
		crAgg:     crAgg,
		changes:   changes,
		approvals: approvals,
	}
}

func (h *ChangeRequestHandler) Create(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	var body struct {
		DocumentID  *uuid.UUID `json:"document_id"`
		Title       string     `json:"title"`
		Description string     `json:"description"`
		Priority    string     `json:"priority"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	state, err := h.crAgg.Create(c.Request.Context(), aggregates.CreateChangeRequestInput{
		DocumentID:  body.DocumentID,
		Title:       body.Title,
		Description: body.Description,
		RequestedBy: actorID,
		Priority:    domain.ChangeRequestPriority(body.Priority),
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondCreated(c, gin.H{"change_request": state})
}

func (h *ChangeRequestHandler) List(c *gin.Context) {
	filter := changesrepo.ChangeRequestFilter{
		Limit:  parseIntQuery(c, "limit", 50),
		Offset: parseIntQuery(c, "offset", 0),
	}
	for _, raw := range c.QueryArray("status") {
		status := domain.ChangeRequestStatus(strings.TrimSpace(raw))
		if !domain.KnownChangeRequestStatus(status) {
			RespondError(c, http.StatusBadRequest, "bad_request", errUnknownStatus(raw))
			return
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	if raw := strings.TrimSpace(c.Query("priority")); raw != "" {
		priority := domain.ChangeRequestPriority(raw)
		if !domain.KnownChangeRequestPriority(priority) {
			RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("unknown priority: %s", raw))
			return
		}
		filter.Priority = &priority
	}
	if raw := strings.TrimSpace(c.Query("document_id")); raw != "" {
		docID, err := uuid.Parse(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		filter.DocumentID = &docID
	}

	rows, err := h.changes.List(dbctx.Context{Ctx: c.Request.Context()}, filter)
	if err != nil {
		h.log.Error("List change requests failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"change_requests": rows})
}

func (h *ChangeRequestHandler) Get(c *gin.Context) {
	crID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	cr, err := h.changes.GetByID(dbctx.Context{Ctx: c.Request.Context()}, crID)
	if err != nil {
		h.log.Error("Get change request failed", "error", err, "change_request_id", crID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	if cr == nil {
		RespondError(c, http.StatusNotFound, "not_found", fmt.Errorf("change request not found: %s", crID))
		return
	}
	RespondOK(c, gin.H{"change_request": cr})
}

func (h *ChangeRequestHandler) ListApprovals(c *gin.Context) {
	crID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	rows, err := h.approvals.ListByChangeRequestID(dbctx.Context{Ctx: c.Request.Context()}, crID)
	if err != nil {
		h.log.Error("List approvals failed", "error", err, "change_request_id", crID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"approvals": rows})
}

func (h *ChangeRequestHandler) Submit(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	crID, ok := parseIDParam(c, "id")
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
	state, err := h.crAgg.Submit(c.Request.Context(), aggregates.SubmitChangeRequestInput{
		ChangeRequestID: crID,
		ApproverIDs:     body.ApproverIDs,
		ActorID:         actorID,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"change_request": state})
}

func (h *ChangeRequestHandler) StartReview(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	crID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	state, err := h.crAgg.StartReview(c.Request.Context(), aggregates.ChangeRequestActorInput{
		ChangeRequestID: crID,
		ActorID:         actorID,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"change_request": state})
}

func (h *ChangeRequestHandler) Approve(c *gin.Context) {
	h.decide(c, h.crAgg.Approve, false)
}

func (h *ChangeRequestHandler) Reject(c *gin.Context) {
	h.decide(c, h.crAgg.Reject, true)
}

func (h *ChangeRequestHandler) decide(c *gin.Context, op func(ctx context.Context, in aggregates.DecideChangeRequestInput) (aggregates.ChangeRequestState, error), notesRequired bool) {
	actorID := requestdata.ActorID(c.Request.Context())
	crID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	approvalID, ok := parseIDParam(c, "approvalId")
	if !ok {
		return
	}
	var body struct {
		Notes string `json:"notes"`
	}
	var err error
	if notesRequired {
		err = c.ShouldBindJSON(&body)
	} else {
		err = bindOptionalJSON(c, &body)
	}
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	state, err := op(c.Request.Context(), aggregates.DecideChangeRequestInput{
		ChangeRequestID: crID,
		ApprovalID:      approvalID,
		ActorID:         actorID,
		Notes:           body.Notes,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"change_request": state})
}

func (h *ChangeRequestHandler) Cancel(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	crID, ok := parseIDParam(c, "id")
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
	state, err := h.crAgg.Cancel(c.Request.Context(), aggregates.CancelChangeRequestInput{
		ChangeRequestID: crID,
		ActorID:         actorID,
		Reason:          body.Reason,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"change_request": state})
}

func (h *ChangeRequestHandler) MarkImplemented(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	crID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	var body struct {
		ImplementedVersionID *uuid.UUID `json:"implemented_version_id"`
		Note                 string     `json:"note"`
	}
	if err := bindOptionalJSON(c, &body); err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return
	}
	state, err := h.crAgg.MarkImplemented(c.Request.Context(), aggregates.MarkImplementedInput{
		ChangeRequestID:      crID,
		ActorID:              actorID,
		ImplementedVersionID: body.ImplementedVersionID,
		Note:                 body.Note,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"change_request": state})
}

func (h *ChangeRequestHandler) ReturnToDraft(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	crID, ok := parseIDParam(c, "id")
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
	state, err := h.crAgg.ReturnToDraft(c.Request.Context(), aggregates.ReturnChangeRequestInput{
		ChangeRequestID: crID,
		ActorID:         actorID,
		Reason:          body.Reason,
	})
	if err != nil {
		RespondAggregateError(c, err)
		return
	}
	RespondOK(c, gin.H{"change_request": state})
}
