package common

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Callers should use errors.Is to match these values.
var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInvalidInput = errors.New("invalid input")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorUploadFailed = errors.New("upload failed")
	ErrorUnavailable  = errors.New("service unavailable")
	ErrorInternal     = errors.New("internal error")

	// Transport-level errors.
	ErrorRateLimited = errors.New("too many requests")

	// ErrInvalidToken is returned for any token that fails verification.
	// The cause is deliberately not exposed.
	ErrInvalidToken = errors.New("invalid token")
)

// Error pairs an error kind with a message that is safe to show to clients.
type Error struct {
	Kind    error
	Message string
}

// NewError returns an *Error of the given kind.
func NewError(kind error, message string) error {
	return &Error{Kind: kind, Message: message}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// Message extracts the client-facing message carried by err. If err carries
// no *Error, fallback is returned.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}

// Classify maps an infrastructure error to an error kind. Known kinds pass
// through unchanged, deadlines become ErrorUnavailable and anything else
// becomes ErrorInternal. The cause stays in the chain for logging.
func Classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrorNotFound),
		errors.Is(err, ErrorConflict),
		errors.Is(err, ErrorInvalidInput),
		errors.Is(err, ErrorUnauthorized),
		errors.Is(err, ErrorUploadFailed),
		errors.Is(err, ErrorUnavailable),
		errors.Is(err, ErrorInternal):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrorUnavailable, err)
	default:
		return fmt.Errorf("%w: %w", ErrorInternal, err)
	}
}
