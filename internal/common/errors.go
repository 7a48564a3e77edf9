// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
	"fmt"
)

// Common application errors.
var (
	// Storage errors.
	ErrNotFound       = errors.New("not found")
	ErrDuplicateEntry = errors.New("duplicate entry")

	// Programming errors. These indicate a configuration bug rather than bad input.
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidTemplate   = errors.New("invalid bank template")

	// Extraction errors. These are recoverable and degrade a decision instead of failing it.
	ErrOCRUnavailable   = errors.New("ocr service unavailable")
	ErrBankUndetected   = errors.New("bank not detected")
	ErrExtractionFailed = errors.New("extraction failed")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// UserError represents an error that should be shown to the user.
type UserError struct {
	Err         error
	UserMessage string
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.UserMessage, e.Err)
	}
	return e.UserMessage
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// NewUserError creates a new user-friendly error.
func NewUserError(userMessage string, err error) error {
	return &UserError{
		UserMessage: userMessage,
		Err:         err,
	}
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimit) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	// Programming errors never get better on retry.
	if errors.Is(err, ErrInvalidIdentifier) || errors.Is(err, ErrInvalidTemplate) || errors.Is(err, context.Canceled) {
		return false
	}

	return true
}
