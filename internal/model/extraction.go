// Package model defines the core data structures for payment verification.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ExtractionSource identifies which extractor produced an ExtractionResult.
type ExtractionSource string

// Extraction sources, in the order the coordinator tries them.
const (
	SourceBankFormat   ExtractionSource = "bank_format"
	SourceOCRFields    ExtractionSource = "ocr_fields"
	SourceOCRHeuristic ExtractionSource = "ocr_heuristic"
)

// ExtractionResult is the normalized output of any text-extraction path.
// It is created once per verification attempt and never modified afterwards.
type ExtractionResult struct {
	Amount          *decimal.Decimal `json:"amount,omitempty"`
	TransactionDate *time.Time       `json:"transaction_date,omitempty"`
	RecipientName   string           `json:"recipient_name,omitempty"`
	AccountNumber   string           `json:"account_number,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	TransactionID   string           `json:"transaction_id,omitempty"`
	BankName        string           `json:"bank_name,omitempty"`
	Source          ExtractionSource `json:"source"`
	Error           string           `json:"error,omitempty"`
	Confidence      float64          `json:"confidence"`
	Success         bool             `json:"success"`
}

// FailedExtraction builds an unsuccessful result for the given source.
func FailedExtraction(source ExtractionSource, msg string) ExtractionResult {
	return ExtractionResult{
		Source:  source,
		Success: false,
		Error:   msg,
	}
}

// HasAmount reports whether an amount was extracted.
func (r ExtractionResult) HasAmount() bool {
	return r.Amount != nil
}

// ClampConfidence bounds a confidence value into [0,1].
func ClampConfidence(c float64) float64 {
	switch {
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
