package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veridian-labs/doccontrol-backend/internal/pkg/logger"
	"github.com/veridian-labs/doccontrol-backend/internal/requestdata"
	"github.com/veridian-labs/doccontrol-backend/internal/services"
)

type ReviewHandler struct {
	log       *logger.Logger
	scheduler services.ReviewSchedulerService
}

func NewReviewHandler(log *logger.Logger, scheduler services.ReviewSchedulerService) *ReviewHandler {
	return &ReviewHandler{
		log:       log.With("handler", "ReviewHandler"),
		scheduler: scheduler,
	}
}

func parseAsOf(c *gin.Context) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query("as_of"))
	if raw == "" {
		return time.Now().UTC(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "bad_request", err)
		return time.Time{}, false
	}
	return t, true
}

func (h *ReviewHandler) ListOverdue(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	overdue, err := h.scheduler.ListOverdue(c.Request.Context(), asOf, parseIntQuery(c, "limit", 0))
	if err != nil {
		h.log.Error("ListOverdue failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"overdue": overdue, "as_of": asOf})
}

func (h *ReviewHandler) ListUpcoming(c *gin.Context) {
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	upcoming, err := h.scheduler.ListUpcoming(c.Request.Context(), asOf, parseIntQuery(c, "window_days", 30), parseIntQuery(c, "limit", 0))
	if err != nil {
		h.log.Error("ListUpcoming failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"upcoming": upcoming, "as_of": asOf})
}

func (h *ReviewHandler) RunOverdueSweep(c *gin.Context) {
	actorID := requestdata.ActorID(c.Request.Context())
	asOf, ok := parseAsOf(c)
	if !ok {
		return
	}
	result, err := h.scheduler.RunOverdueSweep(c.Request.Context(), actorID, asOf, parseIntQuery(c, "limit", 0))
	if err != nil {
		h.log.Error("RunOverdueSweep failed", "error", err)
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}
	RespondOK(c, gin.H{"result": result, "as_of": asOf})
}
