package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	auditrepo "github.com/veridian-labs/doccontrol-backend/internal/data/repos/audit"
	"github.com/veridian-labs/doccontrol-backend/internal/domain"
	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
	"github.com/veridian-labs/doccontrol-backend/internal/services"
)

type AuditHandler struct {
	log   *logger.Logger
	audit services.AuditQueryService
}

func NewAuditHandler(log *logger.Logger, audit services.AuditQueryService) *AuditHandler {
	return &AuditHandler{
		log:   log.With("handler", "AuditHandler"),
		audit: audit,
	}
}

func parseEntityType(c *gin.Context) (domain.AuditEntityType, bool) {
	raw := strings.TrimSpace(c.Param("entityType"))
	et := domain.AuditEntityType(raw)
	if et != domain.AuditEntityDocument && et != domain.AuditEntityChangeRequest {
		RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("unknown entity type: %s", raw))
		return "", false
	}
	return et, true
}

func (h *AuditHandler) GetTrail(c *gin.Context) {
	entityType, ok := parseEntityType(c)
	if !ok {
		return
	}
	entityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	filter := auditrepo.EntryFilter{
		Limit:  parseIntQuery(c, "limit", 100),
		Offset: parseIntQuery(c, "offset", 0),
	}
	for _, raw := range c.QueryArray("action") {
		action := domain.AuditAction(strings.TrimSpace(raw))
		if !domain.KnownAuditAction(action) {
			RespondError(c, http.StatusBadRequest, "bad_request", fmt.Errorf("unknown action: %s", raw))
			return
		}
		filter.Actions = append(filter.Actions, action)
	}
	if raw := strings.TrimSpace(c.Query("from")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		filter.From = &t
	}
	if raw := strings.TrimSpace(c.Query("to")); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "bad_request", err)
			return
		}
		filter.To = &t
	}

	entries, err := h.audit.GetTrail(c.Request.Context(), entityType, entityID, filter)
	if err != nil {
		h.log.Error("GetTrail failed", "error", err, "entity_type", entityType, "entity_id", entityID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"entries": entries})
}

func (h *AuditHandler) GetStats(c *gin.Context) {
	entityType, ok := parseEntityType(c)
	if !ok {
		return
	}
	entityID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	stats, err := h.audit.GetStats(c.Request.Context(), entityType, entityID)
	if err != nil {
		h.log.Error("GetStats failed", "error", err, "entity_type", entityType, "entity_id", entityID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"stats": stats})
}

func (h *AuditHandler) GetRecent(c *gin.Context) {
	entries, err := h.audit.GetRecent(c.Request.Context(), parseIntQuery(c, "limit", 100))
	if err != nil {
		h.log.Error("GetRecent failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"entries": entries})
}

func (h *AuditHandler) GetByActor(c *gin.Context) {
	actorID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	entries, err := h.audit.GetByActor(c.Request.Context(), actorID, parseIntQuery(c, "limit", 100), parseIntQuery(c, "offset", 0))
	if err != nil {
		h.log.Error("GetByActor failed", "error", err, "actor_id", actorID)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"entries": entries})
}
