package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/passvault/internal/common"
	"github.com/gin-gonic/gin"
)

// Response is the envelope every JSON endpoint answers with.
type Response struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func success(c *gin.Context, code int, message string, data any) {
	c.JSON(code, Response{Status: "success", Message: message, Data: data})
}

func fail(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, Response{Status: "error", Message: message})
}

// statusFor classifies err by its taxonomy root. The message is safe to show
// to the caller; internal errors get a generic one.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrDuplicateName),
		errors.Is(err, common.ErrDuplicateUsername),
		errors.Is(err, common.ErrQuotaExceeded):
		return http.StatusConflict, publicMessage(err, common.ErrValidation)
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest, publicMessage(err, common.ErrValidation)
	case errors.Is(err, common.ErrNotOwner):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, common.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid username or password"
	case errors.Is(err, common.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound, "not found"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// publicMessage drops the root prefix, so "validation error: name is
// required" reads "name is required".
func publicMessage(err error, root error) string {
	msg := err.Error()
	if i := strings.Index(msg, root.Error()+": "); i >= 0 {
		return msg[i+len(root.Error())+2:]
	}
	return msg
}

func (h *Handler) writeError(c *gin.Context, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		h.log.Error(c.Request.Context(), "request failed", "route", c.FullPath(), "error", err)
	}
	fail(c, code, msg)
}
