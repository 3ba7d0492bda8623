package objects

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	storage "github.com/supabase-community/storage-go"

	"vanguard-platform/internal/apperr"
)

func TestSupabaseStore(t *testing.T) {
	stored := map[string][]byte{}
	s := &SupabaseStore{
		bucket: "ReportPDFs",
		signedURL: func(bucket, path string, expiresIn int) (string, error) {
			if _, ok := stored[path]; !ok {
				return "", &storage.StorageError{Message: "Object not found"}
			}
			return "https://proj.supabase.co/storage/v1/object/sign/" + bucket + "/" + path, nil
		},
		download: func(_, path string) ([]byte, error) {
			b, ok := stored[path]
			if !ok {
				return nil, errors.New("Object not found")
			}
			return b, nil
		},
		upload: func(_, path string, body io.Reader, contentType string) error {
			assert.Equal(t, "application/pdf", contentType)
			b, err := io.ReadAll(body)
			stored[path] = b
			return err
		},
	}
	ctx := context.Background()

	ok, err := s.Exists(ctx, "a.pdf")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Upload(ctx, "a.pdf", []byte("%PDF"), "application/pdf"))

	ok, err = s.Exists(ctx, "a.pdf")
	require.NoError(t, err)
	assert.True(t, ok)

	u, err := s.PresignGet(ctx, "a.pdf", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://proj.supabase.co/storage/v1/object/sign/ReportPDFs/a.pdf", u)

	b, err := s.Download(ctx, "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF"), b)

	_, err = s.Download(ctx, "b.pdf")
	assert.ErrorIs(t, err, apperr.ErrUpstream)
}

func TestSupabaseStore_ExistsSurfacesFailures(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantErr bool
	}{
		{"not found message", &storage.StorageError{Message: "Object not found"}, false},
		{"not found status", &storage.StorageError{Status: 404, Message: "missing"}, false},
		{"server error", &storage.StorageError{Status: 500, Message: "internal error"}, true},
		{"bad key", &storage.StorageError{Status: 403, Message: "signature verification failed"}, true},
		{"transport", errors.New("dial tcp: connection refused"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &SupabaseStore{
				bucket: "ReportPDFs",
				signedURL: func(string, string, int) (string, error) {
					return "", tt.err
				},
			}

			ok, err := s.Exists(context.Background(), "a.pdf")

			assert.False(t, ok)
			if tt.wantErr {
				assert.ErrorIs(t, err, apperr.ErrUpstream)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewSupabaseStore_Validation(t *testing.T) {
	_, err := NewSupabaseStore("", "key", "ReportPDFs")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	s, err := NewSupabaseStore("https://proj.supabase.co/", "key", "ReportPDFs")
	require.NoError(t, err)
	assert.Equal(t, "ReportPDFs", s.bucket)
}
