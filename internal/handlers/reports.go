package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
	"github.com/veridian-labs/doccontrol-backend/internal/services"
)

type ReportsHandler struct {
	log       *logger.Logger
	reporting services.ReportingService
}

func NewReportsHandler(log *logger.Logger, reporting services.ReportingService) *ReportsHandler {
	return &ReportsHandler{
		log:       log.With("handler", "ReportsHandler"),
		reporting: reporting,
	}
}

func (h *ReportsHandler) DocumentSummary(c *gin.Context) {
	counts, err := h.reporting.DocumentStatusSummary(c.Request.Context())
	if err != nil {
		h.log.Error("DocumentSummary failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"documents_by_status": counts})
}

func (h *ReportsHandler) ChangeRequestSummary(c *gin.Context) {
	byStatus, byPriority, err := h.reporting.ChangeRequestSummary(c.Request.Context())
	if err != nil {
		h.log.Error("ChangeRequestSummary failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{
		"change_requests_by_status":   byStatus,
		"change_requests_by_priority": byPriority,
	})
}

func (h *ReportsHandler) ComplianceSnapshot(c *gin.Context) {
	report, err := h.reporting.ComplianceSnapshot(c.Request.Context(), time.Now().UTC())
	if err != nil {
		h.log.Error("ComplianceSnapshot failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"report": report})
}
