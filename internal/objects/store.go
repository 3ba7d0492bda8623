// Package objects stores report PDFs in object storage and turns a report's
// file pointer into something the browser can download.
package objects

import (
	"context"
	"time"
)

// Store is an object-storage bucket.
type Store interface {
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, body []byte, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
}
