package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransient marks network and timeout failures that are worth retrying.
	ErrTransient = errors.New("transient failure")
	// ErrRejected marks semantic provider failures, retryable up to the stage budget.
	ErrRejected = errors.New("rejected by provider")
	// ErrMalformed marks unparseable provider responses; retrying is unlikely to help.
	ErrMalformed = errors.New("malformed response")
	// ErrConfiguration marks invalid settings detected before any item starts.
	ErrConfiguration = errors.New("configuration error")
	// ErrVerification marks advisory verification failures; always swallowed, logged only.
	ErrVerification = errors.New("verification error")
)

// Wrap builds an error message that includes stage context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Retryable reports whether the pipeline may re-attempt the failed operation.
// Cancellation and malformed responses are never retried.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled):
		return false
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrConfiguration), errors.Is(err, ErrVerification):
		return false
	case errors.Is(err, ErrTransient), errors.Is(err, ErrRejected), errors.Is(err, context.DeadlineExceeded):
		return true
	default:
		return true
	}
}

// IsCancelled reports whether the error stems from run cancellation rather
// than an operation-level deadline.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Kind returns a short machine-readable label for the error family, used in
// logs and per-item reports.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, ErrMalformed):
		return "malformed"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrVerification):
		return "verification"
	case errors.Is(err, ErrTransient), errors.Is(err, context.DeadlineExceeded):
		return "transient"
	default:
		return "unknown"
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
