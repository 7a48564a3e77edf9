package scoring

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestAmountReconciler_Score(t *testing.T) {
	r := NewAmountReconciler(0)
	assert.InDelta(t, DefaultTolerancePercent, r.TolerancePercent(), 1e-9)

	tests := []struct {
		extracted *decimal.Decimal
		expected  *decimal.Decimal
		name      string
		want      float64
	}{
		{name: "exact", extracted: dec("100000"), expected: dec("100000"), want: 1.0},
		{name: "exact with different scale", extracted: dec("25.50"), expected: dec("25.5"), want: 1.0},
		{name: "at boundary", extracted: dec("105000"), expected: dec("100000"), want: 0.8},
		{name: "below at boundary", extracted: dec("95000"), expected: dec("100000"), want: 0.8},
		{name: "halfway", extracted: dec("102500"), expected: dec("100000"), want: 0.9},
		{name: "six percent off", extracted: dec("106000"), expected: dec("100000"), want: 0},
		{name: "half paid", extracted: dec("50000"), expected: dec("100000"), want: 0},
		{name: "missing extracted", extracted: nil, expected: dec("100000"), want: 0},
		{name: "missing expected", extracted: dec("100000"), expected: nil, want: 0},
		{name: "zero expected", extracted: dec("1"), expected: dec("0"), want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, r.Score(tt.extracted, tt.expected), 1e-9)
			assert.Equal(t, tt.want > 0, r.Matches(tt.extracted, tt.expected))
		})
	}
}

func TestAmountReconciler_WithinToleranceAtLeastBoundary(t *testing.T) {
	r := NewAmountReconciler(5)
	expected := dec("100000")
	for _, v := range []string{"95000", "96000", "99999", "100001", "104999", "105000"} {
		assert.GreaterOrEqual(t, r.Score(dec(v), expected), 0.8, v)
	}
}

func TestCombine(t *testing.T) {
	tests := []struct {
		name string
		in   Signals
		want float64
	}{
		{name: "all zero", in: Signals{}, want: 0},
		{name: "single strong signal is not boosted", in: Signals{Bank: 1}, want: 0.4},
		{name: "two strong signals are boosted", in: Signals{Bank: 0.9, Amount: 0.9}, want: (0.36 + 0.18) * 1.15},
		{name: "threshold is exclusive", in: Signals{Bank: 0.8, Pattern: 0.7}, want: 0.32 + 0.21},
		{name: "capped", in: Signals{Bank: 1, Pattern: 1, Amount: 1, OCR: 1}, want: 0.95},
		{name: "mismatched amount", in: Signals{Bank: 0.85, Pattern: 1, Amount: 0, OCR: 0.9}, want: (0.34 + 0.3 + 0.09) * 1.15},
		{name: "out of range inputs are clamped", in: Signals{Bank: 2, Pattern: -1}, want: 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Combine(tt.in), 1e-9)
		})
	}
}

func TestCombine_BoundedAndMonotonic(t *testing.T) {
	steps := []float64{0, 0.1, 0.3, 0.5, 0.7, 0.75, 0.8, 0.85, 0.9, 1}
	for _, b := range steps {
		for _, p := range steps {
			for _, a := range steps {
				for _, o := range steps {
					s := Signals{Bank: b, Pattern: p, Amount: a, OCR: o}
					got := Combine(s)
					assert.GreaterOrEqual(t, got, 0.0)
					assert.LessOrEqual(t, got, MaxCombinedConfidence)

					for _, bump := range []Signals{
						{Bank: b + 0.05, Pattern: p, Amount: a, OCR: o},
						{Bank: b, Pattern: p + 0.05, Amount: a, OCR: o},
						{Bank: b, Pattern: p, Amount: a + 0.05, OCR: o},
						{Bank: b, Pattern: p, Amount: a, OCR: o + 0.05},
					} {
						if Combine(bump) < got-1e-12 {
							t.Fatalf("Combine decreased from %+v (%f) to %+v (%f)", s, got, bump, Combine(bump))
						}
					}
				}
			}
		}
	}
}

func TestBreakdown(t *testing.T) {
	b := Breakdown(Signals{Bank: 0.92, Pattern: 1, Amount: 1, OCR: 0.9})
	assert.InDelta(t, 0.92, b.Bank, 1e-9)
	assert.InDelta(t, 0.95, b.Combined, 1e-9)
}
