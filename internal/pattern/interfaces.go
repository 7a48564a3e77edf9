// Package pattern learns which payment recipients each customer pays and
// answers how much a new payment signature can be trusted.
package pattern

import (
	"context"
	"time"

	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/shopspring/decimal"
)

// Learner records the outcome of a verification attempt.
type Learner interface {
	// Learn applies one outcome to the customer's recipient patterns atomically.
	Learn(ctx context.Context, event LearnEvent) error
}

// Verifier scores an extracted payment signature against learned patterns.
type Verifier interface {
	// Verify looks up exact, fuzzy and amount-history evidence for a customer.
	Verify(ctx context.Context, query Query) (Result, error)
}

// LearnEvent is one approval or rejection of a (recipient, account) pair.
// A non-empty EventID makes the event idempotent: replaying it is a no-op.
type LearnEvent struct {
	SeenAt               time.Time
	Amount               *decimal.Decimal
	EventID              string
	TenantID             string
	CustomerID           string
	ExpectedCustomerName string
	RecipientName        string
	AccountNumber        string
	BankName             string
	WasApproved          bool
}

// Query is an extracted payment signature to check.
type Query struct {
	Amount        *decimal.Decimal
	TenantID      string
	CustomerID    string
	RecipientName string
	AccountNumber string
}

// Result is the learned-trust verdict for a Query.
type Result struct {
	MatchedPattern    *model.RecipientPattern
	Reason            string
	Confidence        float64
	Similarity        float64
	ShouldAutoApprove bool
}

// Reasons reported by Verify.
const (
	ReasonNewCustomer       = "new_customer_no_patterns"
	ReasonAmountHistory     = "amount_history_match"
	ReasonNewRecipient      = "customer_known_but_new_recipient_pattern"
	reasonExactMatchFormat  = "exact_match_%d_occurrences"
	reasonFuzzyMatchFormat  = "fuzzy_match_%.2f"
	newRecipientConfidence  = 0.2
	amountHistoryConfidence = 0.5
)
