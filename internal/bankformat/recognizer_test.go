package bankformat

import (
	"testing"
	"time"

	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	abaReceipt = `ABA Bank
Transfer Successful
-100,000 KHR
Transferred to: TEST MERCHANT
To account: 001 234 567
Trx. ID: 17289345612
Date: 14/10/2026 10:15`

	acledaReceipt = `ACLEDA Bank Plc.
Transfer to other account
Beneficiary Name: K CHAN
Beneficiary Account: 0001-02-345678-9
Amount: 250.00 USD
Reference No: FT2628712345
Transaction Date: 14 Oct 2026 09:30 AM`

	wingReceipt = `Wing Bank
Transaction successful
Receiver: SOK DARA
Receiver account: 012 345 678
Amount: 25.50 USD
Transaction ID: WB2610140001
Date: 14/10/2026 10:15`

	canadiaReceipt = `Canadia Bank
Fund Transfer
To Account Name: CHAN&SONS TRADING
To Account No: 100-200-300-400
Amount: 1,500,000 KHR
Ref: CNB2610149988
Date: 14-10-2026 16:45`

	princeReceipt = `Prince Bank
Payment Receipt
Payee: LIM SREYNEANG
Payee Account: 2001 0045 6789
Total Amount: $75.00
Txn Ref: PB26101400123
Date: 14 Oct 2026 14:05`

	acledaKhmerReceipt = "អេស៊ីលីដា\n" +
		"ឈ្មោះអ្នកទទួល: K CHAN\n" +
		"លេខគណនី: ០០០១ ០២៣ ៤៥៦៧៨\n" +
		"ចំនួនទឹកប្រាក់: ១០០,០០០ ៛\n"
)

func TestDefaultTemplatesLoad(t *testing.T) {
	r := MustDefault()
	ids := make([]string, 0)
	for _, tmpl := range r.Templates() {
		ids = append(ids, tmpl.ID)
	}
	assert.Equal(t, []string{"aba", "acleda", "wing", "canadia", "prince"}, ids)
	assert.Equal(t, DefaultLocalCurrency, r.LocalCurrency())
}

func TestRecognize_EachBank(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		name          string
		text          string
		wantBank      string
		wantRecipient string
		wantAccount   string
		wantAmount    string
		wantCurrency  string
		wantTxnID     string
		wantDate      time.Time
	}{
		{
			name:          "ABA",
			text:          abaReceipt,
			wantBank:      "aba",
			wantRecipient: "TEST MERCHANT",
			wantAccount:   "001234567",
			wantAmount:    "100000",
			wantCurrency:  "KHR",
			wantTxnID:     "17289345612",
			wantDate:      time.Date(2026, 10, 14, 10, 15, 0, 0, time.UTC),
		},
		{
			name:          "ACLEDA adds initial periods",
			text:          acledaReceipt,
			wantBank:      "acleda",
			wantRecipient: "K. CHAN",
			wantAccount:   "0001023456789",
			wantAmount:    "250",
			wantCurrency:  "USD",
			wantTxnID:     "FT2628712345",
			wantDate:      time.Date(2026, 10, 14, 9, 30, 0, 0, time.UTC),
		},
		{
			name:          "Wing",
			text:          wingReceipt,
			wantBank:      "wing",
			wantRecipient: "SOK DARA",
			wantAccount:   "012345678",
			wantAmount:    "25.5",
			wantCurrency:  "USD",
			wantTxnID:     "WB2610140001",
			wantDate:      time.Date(2026, 10, 14, 10, 15, 0, 0, time.UTC),
		},
		{
			name:          "Canadia normalizes separators",
			text:          canadiaReceipt,
			wantBank:      "canadia",
			wantRecipient: "CHAN & SONS TRADING",
			wantAccount:   "100200300400",
			wantAmount:    "1500000",
			wantCurrency:  "KHR",
			wantTxnID:     "CNB2610149988",
			wantDate:      time.Date(2026, 10, 14, 16, 45, 0, 0, time.UTC),
		},
		{
			name:          "Prince",
			text:          princeReceipt,
			wantBank:      "prince",
			wantRecipient: "LIM SREYNEANG",
			wantAccount:   "200100456789",
			wantAmount:    "75",
			wantCurrency:  "USD",
			wantTxnID:     "PB26101400123",
			wantDate:      time.Date(2026, 10, 14, 14, 5, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bank, ok := r.DetectBank(tt.text)
			require.True(t, ok)
			assert.Equal(t, tt.wantBank, bank)

			tmpl, ok := r.Template(bank)
			require.True(t, ok)

			got := r.Extract(tt.text, tmpl)
			require.True(t, got.Success, "extraction failed: %s", got.Error)
			assert.Equal(t, model.SourceBankFormat, got.Source)
			assert.Equal(t, tmpl.Name, got.BankName)
			assert.Equal(t, tt.wantRecipient, got.RecipientName)
			assert.Equal(t, tt.wantAccount, got.AccountNumber)
			require.NotNil(t, got.Amount)
			assert.True(t, got.Amount.Equal(decimal.RequireFromString(tt.wantAmount)), "amount = %s", got.Amount)
			assert.Equal(t, tt.wantCurrency, got.Currency)
			assert.Equal(t, tt.wantTxnID, got.TransactionID)
			require.NotNil(t, got.TransactionDate)
			assert.True(t, got.TransactionDate.Equal(tt.wantDate), "date = %s", got.TransactionDate)

			assert.GreaterOrEqual(t, got.Confidence, tmpl.BaseConfidence*0.5)
			assert.LessOrEqual(t, got.Confidence, maxExtractionConfidence*tmpl.BaseConfidence+1e-9)
		})
	}
}

func TestExtract_ConfidenceIsWeightedSum(t *testing.T) {
	r := MustDefault()
	tmpl, _ := r.Template("aba")

	got := r.Extract(abaReceipt, tmpl)
	require.True(t, got.Success)
	// 0.5*0.95 + 0.3*0.95 + 0.2*0.95 = 0.95, capped at 0.95, times 0.95 base.
	assert.InDelta(t, 0.9025, got.Confidence, 1e-9)
}

func TestRecognize_KhmerReceipt(t *testing.T) {
	r := MustDefault()

	got := r.Recognize(acledaKhmerReceipt)
	require.True(t, got.Success, "extraction failed: %s", got.Error)
	assert.Equal(t, "ACLEDA Bank", got.BankName)
	assert.Equal(t, "K. CHAN", got.RecipientName)
	assert.Equal(t, "000102345678", got.AccountNumber)
	require.NotNil(t, got.Amount)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(100000)))
	assert.Equal(t, "KHR", got.Currency)
	// 0.5*0.9 + 0.3*0.9 + 0.2*0.85 = 0.89, times 0.95 base.
	assert.InDelta(t, 0.8455, got.Confidence, 1e-9)
}

func TestRecognize_Failures(t *testing.T) {
	r := MustDefault()

	t.Run("empty text", func(t *testing.T) {
		got := r.Recognize("   ")
		assert.False(t, got.Success)
		assert.NotEmpty(t, got.Error)
	})

	t.Run("unknown bank", func(t *testing.T) {
		got := r.Recognize("Payment to TEST MERCHANT account 001234567 amount 100 USD")
		assert.False(t, got.Success)
		assert.Equal(t, "bank not detected", got.Error)
		assert.Equal(t, model.SourceBankFormat, got.Source)
	})

	t.Run("short account is discarded", func(t *testing.T) {
		text := "ABA Bank\n-100,000 KHR\nTransferred to: TEST MERCHANT\nTo account: 1234 567\n"
		got := r.Recognize(text)
		assert.False(t, got.Success)
		assert.Empty(t, got.AccountNumber)
		assert.Contains(t, got.Error, "account")
		// The account discard scales the remaining confidence rather than zeroing it.
		assert.InDelta(t, 0.95*0.7*0.95, got.Confidence, 1e-9)
	})

	t.Run("absurd amount is discarded", func(t *testing.T) {
		text := "ABA Bank\n-200,000,000 KHR\nTransferred to: TEST MERCHANT\nTo account: 001 234 567\n"
		got := r.Recognize(text)
		require.True(t, got.Success)
		assert.Nil(t, got.Amount)
		assert.Less(t, got.Confidence, 0.9025)
	})

	t.Run("missing recipient", func(t *testing.T) {
		text := "Prince Bank\nPayee Account: 2001 0045 6789\nTotal Amount: $75.00\n"
		got := r.Recognize(text)
		assert.False(t, got.Success)
		assert.Contains(t, got.Error, "recipient")
		assert.Equal(t, "200100456789", got.AccountNumber)
	})
}

func TestDetectBank(t *testing.T) {
	r := MustDefault()

	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{name: "full name beats abbreviation", text: "ABA transfer via Canadia Bank", want: "canadia", wantOK: true},
		{name: "case insensitive", text: "prince bank receipt", want: "prince", wantOK: true},
		{name: "word boundary ignores embedded keyword", text: "Abacus Trading paid with Wing", want: "wing", wantOK: true},
		{name: "embedded keyword alone does not detect", text: "Princess Abacus", wantOK: false},
		{name: "khmer substring", text: "ធនាគារវីងផ្ទេរប្រាក់", want: "wing", wantOK: true},
		{name: "no keywords", text: "hello world", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := r.DetectBank(tt.text)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestScores_TiesKeepDeclarationOrder(t *testing.T) {
	templates := []model.BankTemplate{
		testTemplate("first", "Alpha"),
		testTemplate("second", "Omega"),
	}
	r, err := New(templates)
	require.NoError(t, err)

	scores := r.Scores("Alpha and Omega")
	require.Len(t, scores, 2)
	assert.Equal(t, 5, scores[0].Score)
	assert.Equal(t, 5, scores[1].Score)
	assert.Equal(t, "first", scores[0].ID)

	bank, ok := r.DetectBank("Omega then Alpha")
	require.True(t, ok)
	assert.Equal(t, "first", bank)
}

func TestPostValidate(t *testing.T) {
	amt := decimal.NewFromInt(-5)
	result := model.ExtractionResult{RecipientName: "12 34", AccountNumber: "001234567", Amount: &amt}

	got := PostValidate(&result, 1)
	assert.Empty(t, result.RecipientName)
	assert.Equal(t, "001234567", result.AccountNumber)
	assert.Nil(t, result.Amount)
	assert.InDelta(t, 0.5*0.8, got, 1e-9)
}

func TestWithLocalCurrency(t *testing.T) {
	r := MustDefault(WithLocalCurrency("usd"))
	tmpl, _ := r.Template("aba")

	got := r.Extract("ABA Bank\nTransferred to: TEST MERCHANT\nTo account: 001 234 567\nAmount: 100\n", tmpl)
	require.True(t, got.Success)
	assert.Equal(t, "USD", got.Currency)
}

func testTemplate(id, keyword string) model.BankTemplate {
	tmpl := model.BankTemplate{
		ID:             id,
		Name:           id,
		Keywords:       []string{keyword},
		BaseConfidence: 0.9,
		Rules: map[model.Field][]model.ExtractionRule{
			model.FieldRecipient: {{Pattern: `name: (\w+)`, Priority: 1, Confidence: 0.9}},
			model.FieldAccount:   {{Pattern: `acct: (\d+)`, Priority: 1, Confidence: 0.9}},
		},
	}
	if err := tmpl.Validate(); err != nil {
		panic(err)
	}
	return tmpl
}

func TestFieldScore(t *testing.T) {
	amt := decimal.NewFromInt(100)
	assert.InDelta(t, 1.0, FieldScore(model.ExtractionResult{RecipientName: "A B", AccountNumber: "12345678", Amount: &amt}), 1e-9)
	assert.InDelta(t, 0.7, FieldScore(model.ExtractionResult{RecipientName: "A B", Amount: &amt}), 1e-9)
	assert.Zero(t, FieldScore(model.ExtractionResult{}))
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{raw: "-100,000 KHR", want: "100000"},
		{raw: "100.000 KHR", want: "100000"},
		{raw: "1.500.000", want: "1500000"},
		{raw: "1.234,56", want: "1234.56"},
		{raw: "25,50", want: "25.5"},
		{raw: "$25.50", want: "25.5"},
		{raw: "250.00 USD", want: "250"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseAmount(tt.raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "amount = %s", got)
		})
	}
}

func TestExtract_DotGroupedAmount(t *testing.T) {
	r := MustDefault()
	text := `ABA Bank
Transfer Successful
-100.000 KHR
Transferred to: TEST MERCHANT
To account: 001 234 567`

	tmpl, ok := r.Template("aba")
	require.True(t, ok)
	got := r.Extract(text, tmpl)
	require.True(t, got.Success, got.Error)
	require.NotNil(t, got.Amount)
	assert.Equal(t, "100000", got.Amount.String())
	assert.Equal(t, "KHR", got.Currency)
}
