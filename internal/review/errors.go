package review

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/curate/internal/storage"
)

var (
	// ErrUnauthorized is returned when a call carries no reviewer identity.
	ErrUnauthorized = errors.New("reviewer identity required")

	// ErrInvalidState is returned when an operation does not apply to the
	// pair's current state, e.g. classifying an article that was not liked.
	ErrInvalidState = errors.New("invalid review state")

	// ErrUnknownArticle is returned when the referenced article does not exist.
	ErrUnknownArticle = errors.New("unknown article")
)

// ValidationError reports malformed input. Unknown lists tag ids missing
// from the catalog.
type ValidationError struct {
	Field   string
	Reason  string
	Unknown []string
}

func (e *ValidationError) Error() string {
	if len(e.Unknown) > 0 {
		return fmt.Sprintf("%s: unknown ids %s", e.Field, strings.Join(e.Unknown, ", "))
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// RetryableError wraps a transient store failure. Any transaction that
// produced it has been rolled back, so the caller may retry the whole call.
type RetryableError struct {
	Op  string
	Err error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether err is a transient store failure.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

// storeError classifies err for op. Domain errors and context cancellation
// pass through; anything else from the store is treated as transient.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var v *ValidationError
	switch {
	case errors.Is(err, ErrInvalidState),
		errors.Is(err, ErrUnknownArticle),
		errors.Is(err, ErrUnauthorized),
		errors.As(err, &v),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, err)
	}
	return &RetryableError{Op: op, Err: err}
}
