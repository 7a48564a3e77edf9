// Package service defines the interfaces for all application services.
package service

import (
	"context"
	"time"

	"github.com/Veraticus/slipcheck/internal/model"
)

// PatternStore persists per tenant+customer learning documents.
type PatternStore interface {
	// GetCustomerPatterns returns the customer's document, or common.ErrNotFound.
	GetCustomerPatterns(ctx context.Context, tenantID, customerID string) (*model.CustomerPatterns, error)
	// UpdateCustomerPatterns runs fn against the customer's document (created empty if
	// missing) and persists the result atomically. If fn returns an error nothing is written.
	UpdateCustomerPatterns(ctx context.Context, tenantID, customerID string, fn func(*model.CustomerPatterns) error) error
	// UpdateCustomerPatternsOnce applies fn only the first time eventID is seen for the
	// tenant, atomically with recording the id. It reports whether fn ran.
	UpdateCustomerPatternsOnce(ctx context.Context, tenantID, customerID, eventID string, fn func(*model.CustomerPatterns) error) (bool, error)
	// ListTenantPatterns returns every recipient pattern of a tenant.
	ListTenantPatterns(ctx context.Context, tenantID string) ([]model.RecipientPattern, error)
	// SweepPatterns deletes patterns last seen before cutoff and customers left empty.
	SweepPatterns(ctx context.Context, cutoff time.Time) (SweepResult, error)
}

// DecisionLog is the append-only audit trail of verification decisions.
type DecisionLog interface {
	AppendDecision(ctx context.Context, decision *model.VerificationDecision) error
	GetDecision(ctx context.Context, id string) (*model.VerificationDecision, error)
	ListDecisionsByInvoice(ctx context.Context, tenantID, invoiceID string) ([]model.VerificationDecision, error)
}

// ReviewQueue stores payments awaiting a human decision.
type ReviewQueue interface {
	EnqueueReview(ctx context.Context, entry *model.ReviewQueueEntry) error
	GetReview(ctx context.Context, id string) (*model.ReviewQueueEntry, error)
	ListReviews(ctx context.Context, filter model.ReviewFilter) ([]model.ReviewQueueEntry, error)
	// ResolveReview moves a pending entry to a terminal status. It reports false
	// when the entry is missing or was already resolved.
	ResolveReview(ctx context.Context, resolution ReviewResolution) (bool, error)
}

// InvoiceMarker records that an invoice has been paid and verified.
type InvoiceMarker interface {
	MarkInvoiceVerified(ctx context.Context, tenantID, invoiceID, decisionID string) error
	IsInvoiceVerified(ctx context.Context, tenantID, invoiceID string) (bool, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	PatternStore
	DecisionLog
	ReviewQueue
	InvoiceMarker

	Migrate(ctx context.Context) error
	Close() error
}

// ReviewResolution is a human verdict on a queued entry.
type ReviewResolution struct {
	ReviewedAt  time.Time
	Corrections *model.Corrections
	ID          string
	Status      model.ReviewStatus
	ReviewedBy  string
	Reason      string
}

// SweepResult reports what a retention sweep removed.
type SweepResult struct {
	PatternsRemoved  int
	CustomersRemoved int
}

// RetryOptions configures retry behavior for operations.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}
