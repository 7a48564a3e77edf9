package pattern

import (
	"testing"
	"time"

	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "uppercases and collapses", in: "  test   merchant ", want: "TEST MERCHANT"},
		{name: "strips periods", in: "K. CHAN", want: "K CHAN"},
		{name: "drops title", in: "Mr. John Smith", want: "JOHN SMITH"},
		{name: "drops multiword title", in: "Lok Srey Dara", want: "DARA"},
		{name: "drops stacked titles", in: "Dr Mrs Sophea Kim", want: "SOPHEA KIM"},
		{name: "keeps lone title", in: "Mr", want: "MR"},
		{name: "apostrophes vanish", in: "O'Neil & Sons", want: "ONEIL SONS"},
		{name: "keeps khmer marks", in: "សុខ ដារា", want: "សុខ ដារា"},
		{name: "empty", in: "", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}

func TestNormalizeAccount(t *testing.T) {
	assert.Equal(t, "001234567", NormalizeAccount("001-234 567"))
	assert.Equal(t, "", NormalizeAccount("n/a"))
}

func TestTokenSortSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, TokenSortSimilarity("CHAN K", "K CHAN"), 1e-9)
	assert.Zero(t, TokenSortSimilarity("", "K CHAN"))

	// "CHAN K." vs "CHAN K" is a single edit over seven runes.
	assert.InDelta(t, 6.0/7, TokenSortSimilarity("K. CHAN", "K CHAN"), 1e-9)
}

func TestSimilarity_InitialPeriodStillMatches(t *testing.T) {
	sim := Similarity("K. CHAN", "001234567", "K CHAN", "001234567")
	assert.GreaterOrEqual(t, sim, FuzzyMatchThreshold)

	patterns := []model.RecipientPattern{
		{RecipientName: "SOMEONE ELSE", AccountNumber: "999888777"},
		{RecipientName: "K CHAN", AccountNumber: "001234567"},
	}
	best, score := bestMatch("K. CHAN", "001234567", patterns)
	if assert.NotNil(t, best) {
		assert.Equal(t, "K CHAN", best.RecipientName)
	}
	assert.InDelta(t, sim, score, 1e-9)
}

func TestAgreement(t *testing.T) {
	tests := []struct {
		name                      string
		extractedName, extracted  string
		expectedName, expectedAcc string
		wantMin, wantMax          float64
	}{
		{name: "identical", extractedName: "Test Merchant", extracted: "001 234 567", expectedName: "TEST MERCHANT", expectedAcc: "001234567", wantMin: 1, wantMax: 1},
		{name: "no expectations", extractedName: "TEST MERCHANT", extracted: "001234567", wantMin: 0, wantMax: 0},
		{name: "name only", extractedName: "TEST MERCHANT", expectedName: "TEST MERCHANT", wantMin: 1, wantMax: 1},
		{name: "account only", extracted: "001234567", expectedAcc: "001234567", wantMin: 1, wantMax: 1},
		{name: "different recipient", extractedName: "OTHER SHOP", extracted: "998877665", expectedName: "TEST MERCHANT", expectedAcc: "001234567", wantMin: 0, wantMax: 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Agreement(tt.extractedName, tt.extracted, tt.expectedName, tt.expectedAcc)
			assert.GreaterOrEqual(t, got, tt.wantMin-1e-9)
			assert.LessOrEqual(t, got, tt.wantMax+1e-9)
		})
	}
}

func TestAmountSeen(t *testing.T) {
	history := []model.AmountRecord{
		{Amount: decimal.NewFromInt(100000), SeenAt: time.Now()},
		{Amount: decimal.Zero, SeenAt: time.Now()},
	}
	assert.True(t, amountSeen(decimal.NewFromInt(110000), history))
	assert.True(t, amountSeen(decimal.NewFromInt(90000), history))
	assert.False(t, amountSeen(decimal.NewFromInt(111000), history))
	assert.False(t, amountSeen(decimal.NewFromInt(0), nil))
}

func TestKeyedMutex_ReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlockA := k.Lock(customerKey("t", "a"))
	unlockB := k.Lock(customerKey("t", "b"))
	assert.Len(t, k.locks, 2)

	unlockA()
	unlockB()
	assert.Empty(t, k.locks)
}
