// Package apperr is the error taxonomy shared by repositories, services and
// HTTP handlers. Each error carries a kind that maps to exactly one status code.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrValidation     = errors.New("validation error")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrConflict       = errors.New("already exists")
	ErrUpstream       = errors.New("upstream service error")
	ErrSignature      = errors.New("signature verification failed")
	ErrSessionPersist = errors.New("session could not be persisted")
)

// Error pairs a kind with a client-safe message and an optional cause that is
// only ever logged.
type Error struct {
	Kind    error
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Kind, e.Cause}
	}
	return []error{e.Kind}
}

// New returns an error of the given kind.
func New(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

// Wrap returns an error of the given kind that keeps cause for logging.
func Wrap(kind error, cause error, message string) error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// Status maps err to an HTTP status code. Unknown errors are 500.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation), errors.Is(err, ErrSignature):
		return http.StatusBadRequest
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, ErrSessionPersist):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the text that is safe to show a client.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrUnauthorized, ErrForbidden, ErrConflict, ErrUpstream, ErrSignature, ErrSessionPersist} {
		if errors.Is(err, kind) {
			return kind.Error()
		}
	}
	return "internal server error"
}
