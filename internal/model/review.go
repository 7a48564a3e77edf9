package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReviewStatus tracks a queued payment through human review.
type ReviewStatus string

// Review status constants. Approved and rejected are terminal.
const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewPriority orders the review queue; low confidence means high priority.
type ReviewPriority string

// Review priorities.
const (
	PriorityLow    ReviewPriority = "low"
	PriorityMedium ReviewPriority = "medium"
	PriorityHigh   ReviewPriority = "high"
)

// PriorityForConfidence maps a combined confidence to a queue priority.
func PriorityForConfidence(confidence float64) ReviewPriority {
	switch {
	case confidence >= 0.7:
		return PriorityLow
	case confidence >= 0.4:
		return PriorityMedium
	default:
		return PriorityHigh
	}
}

// ReviewQueueEntry is a payment held for a human decision.
type ReviewQueueEntry struct {
	CreatedAt   time.Time           `json:"created_at"`
	ReviewedAt  *time.Time          `json:"reviewed_at,omitempty"`
	Corrections *Corrections        `json:"corrections,omitempty"`
	Expected    Invoice             `json:"expected"`
	ID          string              `json:"id"`
	DecisionID  string              `json:"decision_id"`
	TenantID    string              `json:"tenant_id"`
	CustomerID  string              `json:"customer_id"`
	InvoiceID   string              `json:"invoice_id"`
	Priority    ReviewPriority      `json:"priority"`
	Status      ReviewStatus        `json:"status"`
	ReviewedBy  string              `json:"reviewed_by,omitempty"`
	Reason      string              `json:"reason,omitempty"`
	Extracted   ExtractionResult    `json:"extracted"`
	Breakdown   ConfidenceBreakdown `json:"breakdown"`
}

// Corrections are reviewer overrides applied to extracted values before learning.
type Corrections struct {
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	RecipientName string           `json:"recipient_name,omitempty"`
	AccountNumber string           `json:"account_number,omitempty"`
	Currency      string           `json:"currency,omitempty"`
}

// Apply returns a copy of r with the non-empty corrections applied.
func (c *Corrections) Apply(r ExtractionResult) ExtractionResult {
	if c == nil {
		return r
	}
	if c.RecipientName != "" {
		r.RecipientName = c.RecipientName
	}
	if c.AccountNumber != "" {
		r.AccountNumber = c.AccountNumber
	}
	if c.Amount != nil {
		amt := *c.Amount
		r.Amount = &amt
	}
	if c.Currency != "" {
		r.Currency = c.Currency
	}
	return r
}

// ReviewFilter narrows review queue listings.
type ReviewFilter struct {
	TenantID string
	Status   ReviewStatus
	Limit    int
}
