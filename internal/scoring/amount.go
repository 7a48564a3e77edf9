// Package scoring holds the stateless comparators that turn extracted
// evidence into confidence signals.
package scoring

import (
	"github.com/shopspring/decimal"
)

// DefaultTolerancePercent is the accepted relative amount deviation.
const DefaultTolerancePercent = 5.0

const (
	exactAmountScore    = 1.0
	boundaryAmountScore = 0.8
)

// AmountReconciler scores how well an extracted amount matches an expected one.
type AmountReconciler struct {
	tolerancePercent float64
}

// NewAmountReconciler creates a reconciler. A non-positive tolerance uses the default.
func NewAmountReconciler(tolerancePercent float64) AmountReconciler {
	if tolerancePercent <= 0 {
		tolerancePercent = DefaultTolerancePercent
	}
	return AmountReconciler{tolerancePercent: tolerancePercent}
}

// TolerancePercent returns the configured tolerance.
func (a AmountReconciler) TolerancePercent() float64 {
	return a.tolerancePercent
}

// Score returns 1.0 for an exact match, falling linearly to 0.8 at the
// tolerance boundary, and 0 beyond it or when either amount is missing.
func (a AmountReconciler) Score(extracted, expected *decimal.Decimal) float64 {
	if extracted == nil || expected == nil {
		return 0
	}
	if extracted.Equal(*expected) {
		return exactAmountScore
	}
	if !expected.IsPositive() {
		return 0
	}

	deviation, _ := extracted.Sub(*expected).Abs().Div(*expected).Float64()
	tolerance := a.tolerancePercent / 100
	if deviation > tolerance {
		return 0
	}
	return exactAmountScore - (exactAmountScore-boundaryAmountScore)*(deviation/tolerance)
}

// Matches reports whether the extracted amount is within tolerance.
func (a AmountReconciler) Matches(extracted, expected *decimal.Decimal) bool {
	return a.Score(extracted, expected) > 0
}
