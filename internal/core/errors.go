package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/netchat-server/internal/store"
)

// Error codes sent to clients in error frames.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeRoomNotFound   = "room_not_found"
	ErrCodeAuthorNotFound = "author_not_found"
	ErrCodeUserNotFound   = "user_not_found"
	ErrCodeTimeout        = "timeout"
	ErrCodeForbidden      = "forbidden"
	ErrCodeRateLimited    = "rate_limited"
	ErrCodeInternal       = "internal"
)

var (
	// ErrMalformedCommand matches every *MalformedCommandError.
	ErrMalformedCommand = errors.New("malformed command")
	// ErrStoreTimeout is returned when a store call exceeds its deadline.
	ErrStoreTimeout = errors.New("store timeout")
	// ErrTransport marks a failed write to a single connection.
	ErrTransport = errors.New("transport error")
	// ErrUserMismatch is returned when a frame claims a user_id other than the authenticated one.
	ErrUserMismatch = errors.New("user_id does not match connection identity")
	// ErrRateLimited is returned when a connection sends frames faster than allowed.
	ErrRateLimited = errors.New("rate limited")
)

// MalformedCommandError describes an inbound frame that cannot be turned into a command.
type MalformedCommandError struct {
	Command string
	Field   string
	Reason  string
}

func (e *MalformedCommandError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("malformed %s command: %s", e.Command, e.Reason)
	}
	return fmt.Sprintf("malformed %s command: %s %s", e.Command, e.Field, e.Reason)
}

func (e *MalformedCommandError) Unwrap() error {
	return ErrMalformedCommand
}

// Malformed builds a MalformedCommandError for a missing or invalid field.
func Malformed(command, field, reason string) *MalformedCommandError {
	return &MalformedCommandError{Command: command, Field: field, Reason: reason}
}

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

// ToCoreError maps err onto the wire error taxonomy.
func ToCoreError(err error) *CoreError {
	if err == nil {
		return nil
	}
	var coreErr *CoreError
	if errors.As(err, &coreErr) {
		return coreErr
	}
	return &CoreError{Code: ErrorCode(err), Message: err.Error()}
}

// ErrorCode returns the wire code for err.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrMalformedCommand):
		return ErrCodeBadRequest
	case errors.Is(err, store.ErrNetNotFound):
		return ErrCodeRoomNotFound
	case errors.Is(err, store.ErrAuthorNotFound):
		return ErrCodeAuthorNotFound
	case errors.Is(err, store.ErrUserNotFound):
		return ErrCodeUserNotFound
	case errors.Is(err, ErrStoreTimeout), errors.Is(err, context.DeadlineExceeded):
		return ErrCodeTimeout
	case errors.Is(err, ErrUserMismatch):
		return ErrCodeForbidden
	case errors.Is(err, ErrRateLimited):
		return ErrCodeRateLimited
	default:
		return ErrCodeInternal
	}
}
