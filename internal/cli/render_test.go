package cli

import (
	"testing"

	"github.com/Veraticus/slipcheck/internal/bankformat"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	whole := decimal.NewFromInt(100000)
	cents := decimal.RequireFromString("25.5")

	tests := []struct {
		name   string
		want   string
		result model.ExtractionResult
	}{
		{name: "missing", result: model.ExtractionResult{}, want: emptyCell},
		{name: "whole riel", result: model.ExtractionResult{Amount: &whole, Currency: "KHR"}, want: "100000 KHR"},
		{name: "dollars and cents", result: model.ExtractionResult{Amount: &cents, Currency: "USD"}, want: "25.50 USD"},
		{name: "no currency", result: model.ExtractionResult{Amount: &whole}, want: "100000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatAmount(tt.result))
		})
	}
}

func TestRenderDecision(t *testing.T) {
	amount := decimal.NewFromInt(100000)
	d := &model.VerificationDecision{
		ID:         "dec-1",
		InvoiceID:  "inv-1",
		Status:     model.StatusQueuedForReview,
		Reason:     "ocr_heuristic;amount_match",
		QueueID:    "queue-1",
		Confidence: 0.621,
		Extraction: model.ExtractionResult{
			Source:        model.SourceOCRHeuristic,
			RecipientName: "TEST MERCHANT",
			Amount:        &amount,
			Currency:      "KHR",
			Success:       true,
		},
		Breakdown: model.ConfidenceBreakdown{Pattern: 1, Amount: 1, OCR: 0.4, Combined: 0.621},
	}

	out := RenderDecision(d)
	for _, want := range []string{"dec-1", "queued_for_review", "inv-1", "62.1%", "queue-1", "TEST MERCHANT", "100000 KHR", "ocr_heuristic"} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "Transaction")

	line := RenderDecisionLine(0, d)
	assert.Contains(t, line, "  1  ")
	assert.Contains(t, line, "inv-1")
}

func TestRenderQueue(t *testing.T) {
	assert.Contains(t, RenderQueue(nil), "empty")

	out := RenderQueue([]model.ReviewQueueEntry{
		{ID: "q-1", InvoiceID: "inv-1", CustomerID: "c-1", Priority: model.PriorityHigh, Breakdown: model.ConfidenceBreakdown{Combined: 0.3}},
		{ID: "q-2", InvoiceID: "inv-2", CustomerID: "c-2", Priority: model.PriorityLow},
	})
	for _, want := range []string{"Pending reviews (2)", "q-1", "q-2", "high", "30.0%", emptyCell} {
		assert.Contains(t, out, want)
	}
}

func TestRenderStats(t *testing.T) {
	out := RenderStats(model.LearningStatistics{TenantID: "tenant-1", TotalPatterns: 4, AutoApprovable: 1, AutoApprovalRate: 0.25})
	assert.Contains(t, out, "tenant-1")
	assert.Contains(t, out, "1 (25.0%)")
}

func TestRenderBanks(t *testing.T) {
	r := bankformat.MustDefault()
	out := RenderBanks(r.Templates())
	assert.Contains(t, out, "ABA Bank")
	assert.Contains(t, out, "ACLEDA")

	assert.Contains(t, RenderBankScores(nil), "No bank detected")
	assert.Contains(t, RenderBankScores([]bankformat.BankScore{{ID: "wing", Name: "Wing Bank"}}), "No bank detected")
	scores := RenderBankScores([]bankformat.BankScore{{ID: "aba", Name: "ABA Bank", Score: 3}})
	assert.Contains(t, scores, "ABA Bank")
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, SuccessIcon, StatusIcon(model.StatusAutoVerified))
	assert.Equal(t, ReviewIcon, StatusIcon(model.StatusQueuedForReview))
	assert.Equal(t, ErrorIcon, StatusIcon(model.StatusRejected))
	assert.Equal(t, WarningIcon, StatusIcon(model.StatusManualReviewRequired))
}
