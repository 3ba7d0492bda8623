package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/logging"
	"vanguard-platform/internal/session"
)

func newRouter(t *testing.T) (*gin.Engine, *session.Manager) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sessions := session.NewManager(session.NewMemoryStore(), time.Hour, false)
	log := logging.Discard()

	r := gin.New()
	r.Use(RequestLogger(log), Recovery(log), Session(sessions, log))
	r.GET("/api/whoami", func(c *gin.Context) {
		id, ok := UserID(c)
		c.JSON(http.StatusOK, gin.H{"id": id, "ok": ok, "stale": StaleSession(c)})
	})
	r.GET("/api/private", RequireUser(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	r.GET("/api/panic", func(c *gin.Context) {
		panic("boom")
	})
	return r, sessions
}

func TestSession_ResolvesCookie(t *testing.T) {
	r, sessions := newRouter(t)
	s, err := sessions.Establish(context.Background(), 11)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: s.ID})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":11,"ok":true,"stale":false}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))
}

func TestSession_StaleCookie(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/whoami", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: "gone"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.JSONEq(t, `{"id":0,"ok":false,"stale":true}`, w.Body.String())
}

func TestRequireUser(t *testing.T) {
	r, sessions := newRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/private", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	s, err := sessions.Establish(context.Background(), 1)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/api/private", nil)
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: s.ID})
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRecovery(t *testing.T) {
	r, _ := newRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/panic", nil)
	req.Header.Set(RequestIDHeader, "rid-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, w.Body.String())
	assert.Equal(t, "rid-1", w.Header().Get(RequestIDHeader))
}

func TestErrors_RespondsOnce(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Errors(logging.Discard()))
	r.GET("/missing", func(c *gin.Context) {
		c.Error(apperr.New(apperr.ErrNotFound, "Report not found"))
	})
	r.GET("/boom", func(c *gin.Context) {
		c.Error(errors.New("db exploded"))
	})
	r.GET("/written", func(c *gin.Context) {
		c.JSON(http.StatusTeapot, gin.H{"ok": true})
		c.Error(errors.New("late"))
	})

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/missing", http.StatusNotFound, `{"error":"Report not found"}`},
		{"/boom", http.StatusInternalServerError, `{"error":"internal server error"}`},
		{"/written", http.StatusTeapot, `{"ok":true}`},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
		assert.Equal(t, tt.status, w.Code, tt.path)
		assert.JSONEq(t, tt.body, w.Body.String(), tt.path)
	}
}
