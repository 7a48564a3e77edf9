// Package storage provides the data persistence layer for slipcheck.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/service"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidStatus    = errors.New("invalid status")
	ErrInvalidDecision  = errors.New("invalid decision")
	ErrInvalidReview    = errors.New("invalid review entry")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateCustomerKey ensures both halves of the pattern document key are present.
func validateCustomerKey(tenantID, customerID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return common.Permanent(fmt.Errorf("%w: empty tenant id", common.ErrInvalidIdentifier))
	}
	if strings.TrimSpace(customerID) == "" {
		return common.Permanent(fmt.Errorf("%w: empty customer id", common.ErrInvalidIdentifier))
	}
	return nil
}

func validateDecision(d *model.VerificationDecision) error {
	if d == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	if d.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidDecision)
	}
	if err := validateCustomerKey(d.TenantID, d.CustomerID); err != nil {
		return err
	}
	if d.InvoiceID == "" {
		return fmt.Errorf("%w: missing invoice id", ErrInvalidDecision)
	}
	if !d.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidStatus, d.Status)
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return fmt.Errorf("%w: confidence must be between 0 and 1", ErrInvalidDecision)
	}
	if d.CreatedAt.IsZero() {
		return fmt.Errorf("%w: missing created_at", ErrInvalidTimestamp)
	}
	return nil
}

func validateReview(e *model.ReviewQueueEntry) error {
	if e == nil {
		return fmt.Errorf("%w: review entry", ErrNilParameter)
	}
	if e.ID == "" || e.DecisionID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidReview)
	}
	if err := validateCustomerKey(e.TenantID, e.CustomerID); err != nil {
		return err
	}
	if e.InvoiceID == "" {
		return fmt.Errorf("%w: missing invoice id", ErrInvalidReview)
	}
	switch e.Priority {
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
	default:
		return fmt.Errorf("%w: priority %q", ErrInvalidReview, e.Priority)
	}
	if e.Status != model.ReviewPending {
		return fmt.Errorf("%w: new entries must be pending, got %s", ErrInvalidStatus, e.Status)
	}
	return nil
}

func validateResolution(r service.ReviewResolution) error {
	if err := validateString(r.ID, "id"); err != nil {
		return err
	}
	if err := validateString(r.ReviewedBy, "reviewedBy"); err != nil {
		return err
	}
	if r.Status != model.ReviewApproved && r.Status != model.ReviewRejected {
		return fmt.Errorf("%w: resolution must be approved or rejected, got %s", ErrInvalidStatus, r.Status)
	}
	return nil
}
