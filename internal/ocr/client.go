// Package ocr talks to the remote OCR service that turns payment screenshots
// into text.
package ocr

import (
	"context"
)

// Client defines the interface for OCR providers.
type Client interface {
	Extract(ctx context.Context, image []byte) (Result, error)
}

// Result is what the OCR service read from one image.
type Result struct {
	Fields     *Fields
	Text       string
	ModelID    string
	Confidence float64
}

// Fields are structured values some OCR models return alongside raw text.
// Amount is left as printed so the caller can parse it with its own rules.
type Fields struct {
	RecipientName string `json:"recipient_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	Amount        string `json:"amount,omitempty"`
	Currency      string `json:"currency,omitempty"`
	TransactionID string `json:"transaction_id,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
}

// Empty reports whether no field was returned.
func (f *Fields) Empty() bool {
	return f == nil || (f.RecipientName == "" && f.AccountNumber == "" && f.Amount == "")
}
