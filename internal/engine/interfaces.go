package engine

import (
	"context"

	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/pattern"
	"github.com/Veraticus/slipcheck/internal/service"
)

// FormatRecognizer detects a bank and extracts fields from its receipt text.
type FormatRecognizer interface {
	Recognize(text string) model.ExtractionResult
	LocalCurrency() string
}

// PatternLearner is the learning store the coordinator feeds and consults.
type PatternLearner interface {
	pattern.Learner
	pattern.Verifier
	Statistics(ctx context.Context, tenantID string) (model.LearningStatistics, error)
	Sweep(ctx context.Context, retentionDays int) (service.SweepResult, error)
}
