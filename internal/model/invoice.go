package model

import "github.com/shopspring/decimal"

// Invoice carries the expectations a payment screenshot is checked against.
type Invoice struct {
	ExpectedAmount        *decimal.Decimal `json:"expected_amount,omitempty"`
	ExpectedCurrency      string           `json:"expected_currency,omitempty"`
	ExpectedRecipientName string           `json:"expected_recipient_name,omitempty"`
	ExpectedAccount       string           `json:"expected_account,omitempty"`
	CustomerName          string           `json:"customer_name,omitempty"`
}

// LearningStatistics summarizes the learned trust model of one tenant.
type LearningStatistics struct {
	TenantID           string  `json:"tenant_id"`
	TotalPatterns      int     `json:"total_patterns"`
	AutoApprovable     int     `json:"auto_approvable"`
	AutoApprovalRate   float64 `json:"auto_approval_rate"`
	AvgConfidence      float64 `json:"avg_confidence"`
	HighConfidenceRate float64 `json:"high_confidence_rate"`
}
