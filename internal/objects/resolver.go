package objects

import (
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"vanguard-platform/internal/apperr"
	"vanguard-platform/internal/models"
)

// Download modes.
const (
	ModePresign = "presign"
	ModeProxy   = "proxy"
)

// FileRoute is the proxy download path prefix.
const FileRoute = "/api/files/"

// Resolver turns a report's file pointer into a download handle.
type Resolver struct {
	store  Store
	mode   string
	ttl    time.Duration
	tokens *DownloadTokens
}

// NewResolver returns a resolver. store may be nil when no object storage is
// configured; only direct URLs resolve then.
func NewResolver(store Store, mode string, ttl time.Duration, tokens *DownloadTokens) *Resolver {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Resolver{store: store, mode: mode, ttl: ttl, tokens: tokens}
}

// Key returns the object key for fileURL. direct is true when fileURL is
// already a browser-usable URL or path and needs no storage lookup.
func Key(fileURL string) (key string, direct bool) {
	switch {
	case IsObjectURL(fileURL):
		return FileNameFromURL(fileURL), false
	case strings.HasPrefix(fileURL, "http://"), strings.HasPrefix(fileURL, "https://"), strings.HasPrefix(fileURL, "/"):
		return "", true
	default:
		return fileURL, false
	}
}

// Handle returns the download handle for rep.
func (r *Resolver) Handle(ctx context.Context, rep *models.AnalyticalReport) (string, error) {
	if rep.FileURL == "" {
		return "", apperr.New(apperr.ErrNotFound, "report file unavailable")
	}
	key, direct := Key(rep.FileURL)
	if direct {
		return rep.FileURL, nil
	}
	if key == "" {
		return "", apperr.New(apperr.ErrNotFound, "report file unavailable")
	}
	if r.store == nil {
		return "", apperr.New(apperr.ErrUpstream, "object storage not configured")
	}

	if r.mode == ModeProxy {
		tok, err := r.tokens.Issue(rep.ID)
		if err != nil {
			return "", fmt.Errorf("issue download token: %w", err)
		}
		return fmt.Sprintf("%s%d?token=%s", FileRoute, rep.ID, url.QueryEscape(tok)), nil
	}
	return r.store.PresignGet(ctx, key, r.ttl)
}

// Fetch returns the PDF bytes and a file name for the proxy route. token
// must have been issued for rep.
func (r *Resolver) Fetch(ctx context.Context, rep *models.AnalyticalReport, token string) ([]byte, string, error) {
	if r.tokens == nil {
		return nil, "", apperr.New(apperr.ErrForbidden, "file proxy disabled")
	}
	id, err := r.tokens.Verify(token)
	if err != nil {
		return nil, "", err
	}
	if id != rep.ID {
		return nil, "", apperr.New(apperr.ErrForbidden, "invalid download token")
	}

	key, direct := Key(rep.FileURL)
	if direct || key == "" {
		return nil, "", apperr.New(apperr.ErrNotFound, "report file unavailable")
	}
	if r.store == nil {
		return nil, "", apperr.New(apperr.ErrUpstream, "object storage not configured")
	}
	b, err := r.store.Download(ctx, key)
	if err != nil {
		return nil, "", err
	}
	return b, path.Base(key), nil
}
