package discord

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vanguard-platform/internal/apperr"
)

func TestStateSigner_RoundTrip(t *testing.T) {
	s := NewStateSigner("secret")

	tok, nonce, err := s.Issue("https://cb")
	require.NoError(t, err)

	uri, err := s.Verify(tok, nonce)
	require.NoError(t, err)
	assert.Equal(t, "https://cb", uri)
}

func TestStateSigner_Rejects(t *testing.T) {
	s := NewStateSigner("secret")
	tok, nonce, err := s.Issue("https://cb")
	require.NoError(t, err)

	_, err = s.Verify(tok, "other")
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = NewStateSigner("different").Verify(tok, nonce)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	late := NewStateSigner("secret")
	late.now = func() time.Time { return time.Now().Add(StateTTL + time.Minute) }
	_, err = late.Verify(tok, nonce)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}
