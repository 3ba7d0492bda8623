package objects

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	storage "github.com/supabase-community/storage-go"

	"vanguard-platform/internal/apperr"
)

// SupabaseStore keeps objects in a Supabase Storage bucket. The client calls
// are held as funcs so tests can replace them.
type SupabaseStore struct {
	bucket    string
	signedURL func(bucket, path string, expiresIn int) (string, error)
	download  func(bucket, path string) ([]byte, error)
	upload    func(bucket, path string, body io.Reader, contentType string) error
}

// NewSupabaseStore talks to the storage API under projectURL.
func NewSupabaseStore(projectURL, serviceKey, bucket string) (*SupabaseStore, error) {
	if projectURL == "" || bucket == "" {
		return nil, apperr.New(apperr.ErrValidation, "supabase url and bucket are required")
	}
	client := storage.NewClient(strings.TrimRight(projectURL, "/")+"/storage/v1", serviceKey, nil)

	return &SupabaseStore{
		bucket: bucket,
		signedURL: func(bucket, path string, expiresIn int) (string, error) {
			resp, err := client.CreateSignedUrl(bucket, path, expiresIn)
			if err != nil {
				return "", err
			}
			return resp.SignedURL, nil
		},
		download: func(bucket, path string) ([]byte, error) {
			return client.DownloadFile(bucket, path)
		},
		upload: func(bucket, path string, body io.Reader, contentType string) error {
			upsert := true
			_, err := client.UploadFile(bucket, path, body, storage.FileOptions{
				ContentType: &contentType,
				Upsert:      &upsert,
			})
			return err
		},
	}, nil
}

func (s *SupabaseStore) PresignGet(_ context.Context, key string, ttl time.Duration) (string, error) {
	u, err := s.signedURL(s.bucket, key, int(ttl.Seconds()))
	if err != nil {
		return "", apperr.Wrap(apperr.ErrUpstream, err, "presign failed")
	}
	return u, nil
}

func (s *SupabaseStore) Download(_ context.Context, key string) ([]byte, error) {
	b, err := s.download(s.bucket, key)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrUpstream, err, "object download failed")
	}
	return b, nil
}

func (s *SupabaseStore) Upload(_ context.Context, key string, body []byte, contentType string) error {
	if err := s.upload(s.bucket, key, bytes.NewReader(body), contentType); err != nil {
		return apperr.Wrap(apperr.ErrUpstream, err, "object upload failed")
	}
	return nil
}

// Exists signs a short-lived URL for key. Only a "not found" answer from the
// storage API means the object is missing; any other failure is surfaced.
func (s *SupabaseStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := s.signedURL(s.bucket, key, 60)
	switch {
	case err == nil:
		return true, nil
	case isStorageNotFound(err):
		return false, nil
	default:
		return false, apperr.Wrap(apperr.ErrUpstream, err, "object lookup failed")
	}
}

// isStorageNotFound reports whether err is the storage API refusing an
// unknown path. The API sends its status as a string field the client does
// not decode, so the message is checked as well.
func isStorageNotFound(err error) bool {
	var se *storage.StorageError
	if !errors.As(err, &se) {
		return false
	}
	return se.Status == http.StatusNotFound || strings.Contains(strings.ToLower(se.Message), "not found")
}
