package model

import "time"

// DecisionStatus is the terminal label of one verification attempt.
type DecisionStatus string

// Decision status constants.
const (
	StatusAutoVerified         DecisionStatus = "auto_verified"
	StatusQueuedForReview      DecisionStatus = "queued_for_review"
	StatusManualReviewRequired DecisionStatus = "manual_review_required"
	StatusRejected             DecisionStatus = "rejected"
)

// Valid reports whether s is a known decision status.
func (s DecisionStatus) Valid() bool {
	switch s {
	case StatusAutoVerified, StatusQueuedForReview, StatusManualReviewRequired, StatusRejected:
		return true
	}
	return false
}

// ConfidenceBreakdown records every signal that went into a combined confidence.
type ConfidenceBreakdown struct {
	Bank     float64 `json:"bank"`
	Pattern  float64 `json:"pattern"`
	Amount   float64 `json:"amount"`
	OCR      float64 `json:"ocr"`
	Combined float64 `json:"combined"`
}

// VerificationDecision is the engine output for one attempt.
// Only QueueID is written after creation.
type VerificationDecision struct {
	CreatedAt      time.Time           `json:"created_at"`
	MatchedPattern *RecipientPattern   `json:"matched_pattern,omitempty"`
	ID             string              `json:"id"`
	Status         DecisionStatus      `json:"status"`
	Reason         string              `json:"reason"`
	QueueID        string              `json:"queue_id,omitempty"`
	TenantID       string              `json:"tenant_id"`
	CustomerID     string              `json:"customer_id"`
	InvoiceID      string              `json:"invoice_id"`
	Extraction     ExtractionResult    `json:"extraction"`
	Breakdown      ConfidenceBreakdown `json:"breakdown"`
	Confidence     float64             `json:"confidence"`
	ShouldLearn    bool                `json:"should_learn"`
}
