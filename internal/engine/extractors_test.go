package engine

import (
	"testing"

	"github.com/Veraticus/slipcheck/internal/bankformat"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/ocr"
	"github.com/Veraticus/slipcheck/internal/testutil/fixtures"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeuristicExtractor(t *testing.T) {
	ex := heuristicExtractor{localCurrency: bankformat.DefaultLocalCurrency}

	t.Run("generic receipt", func(t *testing.T) {
		result := ex.Extract(ExtractionInput{Text: fixtures.ReceiptGeneric.Text})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, model.SourceOCRHeuristic, result.Source)
		assert.Equal(t, fixtures.TestMerchantName, result.RecipientName)
		assert.Equal(t, fixtures.TestMerchantAccount, result.AccountNumber)
		require.NotNil(t, result.Amount)
		assert.Equal(t, "100000", result.Amount.String())
		assert.Equal(t, "KHR", result.Currency)
		assert.InDelta(t, maxHeuristicConfidence, result.Confidence, 1e-9)
	})

	t.Run("labeled recipient", func(t *testing.T) {
		result := ex.Extract(ExtractionInput{Text: "Payee: Test Merchant\nTotal $25.50"})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, fixtures.TestMerchantName, result.RecipientName)
		assert.Empty(t, result.AccountNumber)
		assert.Equal(t, "USD", result.Currency)
		assert.InDelta(t, 0.7*maxHeuristicConfidence, result.Confidence, 1e-9)
	})

	t.Run("dates are not accounts", func(t *testing.T) {
		result := ex.Extract(ExtractionInput{Text: "TEST MERCHANT\n14-10-2026\n2026 10 14\n001 234 567\n100,000 KHR"})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, fixtures.TestMerchantAccount, result.AccountNumber)
	})

	tests := []struct {
		name    string
		text    string
		wantErr string
	}{
		{name: "empty text", text: "  ", wantErr: "no text"},
		{name: "labeled date only", text: "Paid to SOK DARA\nDate 14-10-2026\n25,000 KHR", wantErr: "missing recipient and account"},
		{name: "no amount", text: "TEST MERCHANT\n001234567", wantErr: "missing amount"},
		{name: "amount only", text: "paid 100,000 KHR", wantErr: "missing recipient and account"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ex.Extract(ExtractionInput{Text: tt.text})
			assert.False(t, result.Success)
			assert.Equal(t, tt.wantErr, result.Error)
		})
	}
}

func TestOCRFieldsExtractor(t *testing.T) {
	ex := ocrFieldsExtractor{localCurrency: bankformat.DefaultLocalCurrency}

	t.Run("structured fields", func(t *testing.T) {
		result := ex.Extract(ExtractionInput{OCR: &ocr.Result{
			Confidence: 0.9,
			Fields: &ocr.Fields{
				RecipientName: "test merchant",
				AccountNumber: "001 234 567",
				Amount:        "100,000 KHR",
				TransactionID: " 998877 ",
			},
		}})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, model.SourceOCRFields, result.Source)
		assert.Equal(t, fixtures.TestMerchantName, result.RecipientName)
		assert.Equal(t, fixtures.TestMerchantAccount, result.AccountNumber)
		assert.Equal(t, "998877", result.TransactionID)
		assert.Equal(t, "KHR", result.Currency)
		require.NotNil(t, result.Amount)
		assert.Equal(t, "100000", result.Amount.String())
		assert.InDelta(t, maxOCRFieldsConfidence, result.Confidence, 1e-9)
	})

	t.Run("confidence follows the model", func(t *testing.T) {
		result := ex.Extract(ExtractionInput{OCR: &ocr.Result{
			Confidence: 0.5,
			Fields:     &ocr.Fields{AccountNumber: "001234567", Amount: "25.00", Currency: "usd"},
		}})
		require.True(t, result.Success, result.Error)
		assert.Equal(t, "USD", result.Currency)
		assert.InDelta(t, 0.25, result.Confidence, 1e-9)
	})

	t.Run("no fields", func(t *testing.T) {
		result := ex.Extract(ExtractionInput{OCR: &ocr.Result{Text: "hello"}})
		assert.False(t, result.Success)
		assert.Equal(t, "no structured fields", result.Error)

		result = ex.Extract(ExtractionInput{})
		assert.False(t, result.Success)
	})

	t.Run("missing amount", func(t *testing.T) {
		result := ex.Extract(ExtractionInput{OCR: &ocr.Result{
			Confidence: 0.9,
			Fields:     &ocr.Fields{RecipientName: "TEST MERCHANT"},
		}})
		assert.False(t, result.Success)
		assert.Equal(t, "missing amount", result.Error)
	})
}

func TestExtractChain(t *testing.T) {
	chain := DefaultExtractors(bankformat.MustDefault())
	require.Len(t, chain, 3)

	t.Run("bank template wins", func(t *testing.T) {
		result := extract(chain, ExtractionInput{
			Text: fixtures.ReceiptABAExact.Text,
			OCR:  &ocr.Result{Confidence: 0.9, Fields: &ocr.Fields{RecipientName: "SOMEONE ELSE", Amount: "1 KHR"}},
		})
		require.True(t, result.Success)
		assert.Equal(t, model.SourceBankFormat, result.Source)
		assert.Equal(t, fixtures.TestMerchantName, result.RecipientName)
	})

	t.Run("falls through to the heuristic", func(t *testing.T) {
		result := extract(chain, ExtractionInput{Text: fixtures.ReceiptGeneric.Text})
		require.True(t, result.Success)
		assert.Equal(t, model.SourceOCRHeuristic, result.Source)
		assert.Empty(t, result.Error)
	})

	t.Run("every strategy fails", func(t *testing.T) {
		result := extract(chain, ExtractionInput{Text: fixtures.ReceiptUnreadable.Text})
		assert.False(t, result.Success)
		assert.Equal(t, model.SourceOCRHeuristic, result.Source)
		assert.Equal(t, "bank_format: bank not detected; ocr_fields: no structured fields; ocr_heuristic: missing amount", result.Error)
	})

	t.Run("empty chain", func(t *testing.T) {
		result := extract(nil, ExtractionInput{Text: "x"})
		assert.False(t, result.Success)
		assert.Equal(t, "no extractors", result.Error)
	})
}
