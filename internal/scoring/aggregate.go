package scoring

import (
	"math"

	"github.com/Veraticus/slipcheck/internal/model"
)

// Signal weights.
const (
	BankWeight    = 0.4
	PatternWeight = 0.3
	AmountWeight  = 0.2
	OCRWeight     = 0.1
)

// Corroboration thresholds; a signal above its threshold counts as strong.
const (
	strongBank    = 0.8
	strongPattern = 0.7
	strongAmount  = 0.8
	strongOCR     = 0.7

	corroborationBoost = 1.15
	minStrongSignals   = 2
)

// MaxCombinedConfidence caps every combined score.
const MaxCombinedConfidence = 0.95

// Signals are the per-source confidences fed to Combine.
type Signals struct {
	Bank    float64
	Pattern float64
	Amount  float64
	OCR     float64
}

// Combine merges the signals into one confidence in [0, 0.95]. Two or more
// strong signals earn a 15% boost. The result never decreases when any single
// signal increases.
func Combine(s Signals) float64 {
	bank := model.ClampConfidence(s.Bank)
	pattern := model.ClampConfidence(s.Pattern)
	amount := model.ClampConfidence(s.Amount)
	ocr := model.ClampConfidence(s.OCR)

	combined := BankWeight*bank + PatternWeight*pattern + AmountWeight*amount + OCRWeight*ocr

	strong := 0
	for _, ok := range []bool{bank > strongBank, pattern > strongPattern, amount > strongAmount, ocr > strongOCR} {
		if ok {
			strong++
		}
	}
	if strong >= minStrongSignals {
		combined *= corroborationBoost
	}
	return math.Min(MaxCombinedConfidence, combined)
}

// Breakdown records the signals and their combination.
func Breakdown(s Signals) model.ConfidenceBreakdown {
	return model.ConfidenceBreakdown{
		Bank:     model.ClampConfidence(s.Bank),
		Pattern:  model.ClampConfidence(s.Pattern),
		Amount:   model.ClampConfidence(s.Amount),
		OCR:      model.ClampConfidence(s.OCR),
		Combined: Combine(s),
	}
}
