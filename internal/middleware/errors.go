package middleware

import (
	"github.com/gin-gonic/gin"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/logging"
)

// Errors turns the last error a handler attached with c.Error into the
// response. It writes only if the handler has not, and logs server-side
// failures with their cause.
func Errors(log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil {
			return
		}
		err := last.Err
		status := apperr.Status(err)

		if status >= 500 {
			log.Error(c.Request.Context(), "request failed",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"status", status,
				"error", err,
			)
		}
		if c.Writer.Written() {
			return
		}
		c.JSON(status, gin.H{"error": apperr.Message(err)})
	}
}
