package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/session"
)

const (
	userIDKey    = "userID"
	sessionIDKey = "sessionID"
	staleKey     = "staleSession"
)

// Session resolves the session cookie, if any, and stores the user id on the
// context. Requests without a valid session continue anonymously; a cookie
// pointing at a missing session is marked stale so handlers can clear it.
func Session(sessions *session.Manager, log logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := session.CookieValue(c)
		if id == "" {
			c.Next()
			return
		}

		s, err := sessions.Resolve(c.Request.Context(), id)
		switch {
		case err == nil:
			c.Set(userIDKey, s.UserID)
			c.Set(sessionIDKey, s.ID)
		case errors.Is(err, apperr.ErrNotFound):
			c.Set(staleKey, true)
		default:
			log.Warn(c.Request.Context(), "session lookup failed", "error", err)
		}
		c.Next()
	}
}

// RequireUser aborts with 401 unless Session found a user.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := UserID(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's id.
func UserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(userIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

// SessionID returns the id of the resolved session.
func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}

// StaleSession reports whether the request carried a cookie for a session
// that no longer exists.
func StaleSession(c *gin.Context) bool {
	return c.GetBool(staleKey)
}
