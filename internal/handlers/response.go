package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veridian-labs/doccontrol-backend/internal/domain/aggregates"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondError(c *gin.Context, status int, code string, err error) {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	c.JSON(status, ErrorEnvelope{
		Error: APIError{
			Message: msg,
			Code:    code,
		},
	})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondAggregateError maps a lifecycle engine error onto the HTTP surface.
// Conflicts and invariant violations both land on 409; stale preconditions
// get 412 so clients can distinguish "re-read and retry" from "illegal move".
func RespondAggregateError(c *gin.Context, err error) {
	code := aggregates.CodeOf(err)
	status := http.StatusInternalServerError
	switch code {
	case aggregates.CodeValidation:
		status = http.StatusBadRequest
	case aggregates.CodeNotFound:
		status = http.StatusNotFound
	case aggregates.CodePreconditionFailed:
		status = http.StatusPreconditionFailed
	case aggregates.CodeConflict, aggregates.CodeInvariantViolation:
		status = http.StatusConflict
	case aggregates.CodeRetryable:
		status = http.StatusServiceUnavailable
	}
	RespondError(c, status, string(code), err)
}
