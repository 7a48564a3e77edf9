package model

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Learning thresholds shared by the pattern store and the coordinator.
const (
	// MinAutoApproveCount is the number of sightings required before a pattern may auto-approve.
	MinAutoApproveCount = 3
	// AutoApproveConfidence is the confidence a pattern must reach to auto-approve.
	AutoApproveConfidence = 0.8
	// MinAutoApproveRate is the approval rate a pattern must keep to auto-approve.
	MinAutoApproveRate = 0.8
	// MaxPatternConfidence caps learned confidence.
	MaxPatternConfidence = 0.95

	frequencyBonusPerSighting = 0.02
	maxFrequencyBonus         = 0.2
)

// RecipientPattern is a learned (recipient name, account number) pair for one customer.
// Confidence and AutoApprove are derived from the counters by Recompute and are
// never persisted on their own.
type RecipientPattern struct {
	LastSeen        time.Time `json:"last_seen"`
	RecipientName   string    `json:"recipient_name"`
	AccountNumber   string    `json:"account_number"`
	BankName        string    `json:"bank_name,omitempty"`
	ID              int64     `json:"id"`
	OccurrenceCount int       `json:"occurrence_count"`
	ApprovalCount   int       `json:"approval_count"`
	RejectionCount  int       `json:"rejection_count"`
	Confidence      float64   `json:"confidence"`
	AutoApprove     bool      `json:"auto_approve"`
}

// ApprovalRate is approvals over occurrences, 0 when never seen.
func (p *RecipientPattern) ApprovalRate() float64 {
	if p.OccurrenceCount == 0 {
		return 0
	}
	return float64(p.ApprovalCount) / float64(p.OccurrenceCount)
}

// Recompute derives Confidence and AutoApprove from the counters.
func (p *RecipientPattern) Recompute() {
	bonus := math.Min(maxFrequencyBonus, float64(p.OccurrenceCount)*frequencyBonusPerSighting)
	p.Confidence = math.Min(MaxPatternConfidence, p.ApprovalRate()+bonus)
	p.AutoApprove = p.OccurrenceCount >= MinAutoApproveCount &&
		p.Confidence >= AutoApproveConfidence &&
		p.ApprovalRate() >= MinAutoApproveRate
}

// Record applies one learning event to the counters and recomputes derived state.
func (p *RecipientPattern) Record(approved bool, seenAt time.Time) {
	p.OccurrenceCount++
	if approved {
		p.ApprovalCount++
	} else {
		p.RejectionCount++
	}
	if seenAt.After(p.LastSeen) {
		p.LastSeen = seenAt
	}
	p.Recompute()
}

// AmountRecord is one previously seen payment amount for a customer.
type AmountRecord struct {
	SeenAt time.Time       `json:"seen_at"`
	Amount decimal.Decimal `json:"amount"`
}

// CustomerPatterns is the per tenant+customer learning document.
type CustomerPatterns struct {
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
	TenantID     string             `json:"tenant_id"`
	CustomerID   string             `json:"customer_id"`
	CustomerName string             `json:"customer_name,omitempty"`
	Patterns     []RecipientPattern `json:"patterns"`
	Amounts      []AmountRecord     `json:"amounts,omitempty"`
	ID           int64              `json:"id"`
}

// Find returns the pattern with the given normalized name and account, or nil.
func (c *CustomerPatterns) Find(name, account string) *RecipientPattern {
	for i := range c.Patterns {
		if c.Patterns[i].RecipientName == name && c.Patterns[i].AccountNumber == account {
			return &c.Patterns[i]
		}
	}
	return nil
}

// FindOrCreate returns the matching pattern, appending a fresh one if missing.
func (c *CustomerPatterns) FindOrCreate(name, account string) *RecipientPattern {
	if p := c.Find(name, account); p != nil {
		return p
	}
	c.Patterns = append(c.Patterns, RecipientPattern{
		RecipientName: name,
		AccountNumber: account,
	})
	return &c.Patterns[len(c.Patterns)-1]
}
