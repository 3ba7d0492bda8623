package session

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
)

// CookieName is the cookie carrying the session id.
const CookieName = "cv_session"

// DefaultTTL is used when the configured TTL is not positive.
const DefaultTTL = 7 * 24 * time.Hour

// Manager issues, resolves and destroys sessions.
type Manager struct {
	store   Store
	ttl     time.Duration
	secure  bool
	backoff time.Duration
	now     func() time.Time
	newID   func() string
}

type Option func(*Manager)

// WithBackoff sets the base delay before the single retry of a failed save.
func WithBackoff(d time.Duration) Option {
	return func(m *Manager) { m.backoff = d }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func NewManager(store Store, ttl time.Duration, secure bool, opts ...Option) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	m := &Manager{
		store:   store,
		ttl:     ttl,
		secure:  secure,
		backoff: 100 * time.Millisecond,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Establish durably binds a fresh session id to userID. The write is
// confirmed by reading it back; one retry is attempted after a backoff. If
// both attempts fail the returned error is apperr.ErrSessionPersist.
func (m *Manager) Establish(ctx context.Context, userID int64) (*models.Session, error) {
	now := m.now()
	s := &models.Session{
		ID:        m.newID(),
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}

	b := retry.WithMaxRetries(1, retry.NewExponential(m.backoff))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := m.store.Save(ctx, s); err != nil {
			return retry.RetryableError(err)
		}
		got, err := m.store.Get(ctx, s.ID)
		if err != nil {
			return retry.RetryableError(err)
		}
		if got.UserID != userID {
			return retry.RetryableError(errors.New("session read-back mismatch"))
		}
		return nil
	})
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrSessionPersist, err, "session could not be persisted")
	}
	return s, nil
}

// Resolve returns the live session for id.
func (m *Manager) Resolve(ctx context.Context, id string) (*models.Session, error) {
	if id == "" {
		return nil, apperr.ErrNotFound
	}
	return m.store.Get(ctx, id)
}

func (m *Manager) Destroy(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return m.store.Delete(ctx, id)
}

// SetCookie writes the session cookie onto the response.
func (m *Manager) SetCookie(c *gin.Context, s *models.Session) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, s.ID, int(m.ttl.Seconds()), "/", "", m.secure, true)
}

// ClearCookie expires the session cookie.
func (m *Manager) ClearCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, "", -1, "/", "", m.secure, true)
}

// CookieValue returns the session id sent by the client, if any.
func CookieValue(c *gin.Context) string {
	v, err := c.Cookie(CookieName)
	if err != nil {
		return ""
	}
	return v
}
