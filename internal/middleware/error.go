package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/medisync/clinic-api/pkg/errors"
)

// ErrorResponse is the JSON error envelope returned to clients.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	TraceID string `json:"trace_id,omitempty"`

	RetryAfter          *time.Time        `json:"retry_after,omitempty"`
	RequiredPermissions []string          `json:"required_permissions,omitempty"`
	ActualPermissions   []string          `json:"actual_permissions,omitempty"`
	Fields              map[string]string `json:"fields,omitempty"`
}

// ErrorHandler converts errors attached to the gin context into the
// shared envelope. Rate-limit errors also carry a Retry-After header.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		traceID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("trace_id", traceID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Str("client_ip", c.ClientIP()).
				Msg("Request error")
		}

		lastErr := c.Errors.Last()
		status := http.StatusInternalServerError
		resp := ErrorResponse{Message: lastErr.Error(), TraceID: traceID}

		var appErr *apperrors.AppError
		if errors.As(lastErr.Err, &appErr) {
			status = appErr.StatusCode()
			resp.Message = appErr.Message
			resp.Fields = appErr.Fields
			resp.RequiredPermissions = appErr.RequiredPermissions
			resp.ActualPermissions = appErr.ActualPermissions
			if !appErr.RetryAfter.IsZero() {
				resp.RetryAfter = &appErr.RetryAfter
				seconds := int(time.Until(appErr.RetryAfter).Seconds())
				if seconds < 0 {
					seconds = 0
				}
				c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			}
		} else if status == http.StatusInternalServerError {
			// Internal detail stays in the logs.
			resp.Message = "internal server error"
		}

		resp.Code = status
		c.JSON(status, resp)
	}
}
