package pattern

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/service"
)

// DefaultRetentionDays is how long an unseen pattern survives a sweep.
const DefaultRetentionDays = 90

// ErrEmptySignature is returned when a learning event has neither a name nor an account.
var ErrEmptySignature = errors.New("recipient name and account are both empty")

// Store is the per-customer learning store.
type Store struct {
	storage service.PatternStore
	locks   *keyedMutex
	now     func() time.Time
}

var (
	_ Learner  = (*Store)(nil)
	_ Verifier = (*Store)(nil)
)

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates a learning store over the given persistence.
func NewStore(storage service.PatternStore, opts ...StoreOption) *Store {
	s := &Store{
		storage: storage,
		locks:   newKeyedMutex(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func validateKey(tenantID, customerID string) error {
	if strings.TrimSpace(tenantID) == "" || strings.TrimSpace(customerID) == "" {
		return common.Permanent(fmt.Errorf("%w: tenant and customer ids are required", common.ErrInvalidIdentifier))
	}
	return nil
}

// Learn records one verification outcome. Updates for the same customer are
// serialized, and once started an update runs to completion even if ctx is
// canceled so counters never move halfway.
func (s *Store) Learn(ctx context.Context, event LearnEvent) error {
	if err := validateKey(event.TenantID, event.CustomerID); err != nil {
		return err
	}
	name := NormalizeName(event.RecipientName)
	account := NormalizeAccount(event.AccountNumber)
	if name == "" && account == "" {
		return common.Permanent(ErrEmptySignature)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	seenAt := event.SeenAt
	if seenAt.IsZero() {
		seenAt = s.now()
	}
	seenAt = seenAt.UTC()

	unlock := s.locks.Lock(customerKey(event.TenantID, event.CustomerID))
	defer unlock()

	apply := func(doc *model.CustomerPatterns) error {
		if doc.CustomerName == "" && event.ExpectedCustomerName != "" {
			doc.CustomerName = strings.TrimSpace(event.ExpectedCustomerName)
		}
		p := doc.FindOrCreate(name, account)
		if event.BankName != "" {
			p.BankName = event.BankName
		}
		p.Record(event.WasApproved, seenAt)
		if event.Amount != nil && event.Amount.IsPositive() {
			doc.Amounts = append(doc.Amounts, model.AmountRecord{Amount: *event.Amount, SeenAt: seenAt})
		}
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	var err error
	if event.EventID == "" {
		err = s.storage.UpdateCustomerPatterns(ctx, event.TenantID, event.CustomerID, apply)
	} else {
		var applied bool
		applied, err = s.storage.UpdateCustomerPatternsOnce(ctx, event.TenantID, event.CustomerID, event.EventID, apply)
		if err == nil && !applied {
			slog.Debug("Learning event already applied",
				"tenant_id", event.TenantID,
				"customer_id", event.CustomerID,
				"event_id", event.EventID)
			return nil
		}
	}
	if err != nil {
		return fmt.Errorf("failed to learn pattern for %s/%s: %w", event.TenantID, event.CustomerID, err)
	}

	slog.Debug("Learned recipient pattern",
		"tenant_id", event.TenantID,
		"customer_id", event.CustomerID,
		"recipient", name,
		"approved", event.WasApproved)
	return nil
}

// Verify checks an extracted signature against the customer's learned patterns.
func (s *Store) Verify(ctx context.Context, query Query) (Result, error) {
	if err := validateKey(query.TenantID, query.CustomerID); err != nil {
		return Result{}, err
	}

	doc, err := s.storage.GetCustomerPatterns(ctx, query.TenantID, query.CustomerID)
	if errors.Is(err, common.ErrNotFound) {
		return Result{Reason: ReasonNewCustomer}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("failed to load patterns: %w", err)
	}
	if len(doc.Patterns) == 0 && len(doc.Amounts) == 0 {
		return Result{Reason: ReasonNewCustomer}, nil
	}

	name := NormalizeName(query.RecipientName)
	account := NormalizeAccount(query.AccountNumber)

	if p := doc.Find(name, account); p != nil && (name != "" || account != "") {
		matched := *p
		return Result{
			ShouldAutoApprove: matched.AutoApprove,
			Confidence:        matched.Confidence,
			Reason:            fmt.Sprintf(reasonExactMatchFormat, matched.OccurrenceCount),
			MatchedPattern:    &matched,
			Similarity:        1,
		}, nil
	}

	if best, similarity := bestMatch(name, account, doc.Patterns); best != nil && similarity >= FuzzyMatchThreshold {
		matched := *best
		confidence := model.ClampConfidence(matched.Confidence * similarity)
		return Result{
			ShouldAutoApprove: confidence >= model.AutoApproveConfidence && matched.AutoApprove,
			Confidence:        confidence,
			Reason:            fmt.Sprintf(reasonFuzzyMatchFormat, similarity),
			MatchedPattern:    &matched,
			Similarity:        similarity,
		}, nil
	}

	if query.Amount != nil && amountSeen(*query.Amount, doc.Amounts) {
		return Result{Confidence: amountHistoryConfidence, Reason: ReasonAmountHistory}, nil
	}
	return Result{Confidence: newRecipientConfidence, Reason: ReasonNewRecipient}, nil
}

// Sweep removes patterns unseen for retentionDays, and customers left empty.
// A non-positive retentionDays uses DefaultRetentionDays.
func (s *Store) Sweep(ctx context.Context, retentionDays int) (service.SweepResult, error) {
	if retentionDays <= 0 {
		retentionDays = DefaultRetentionDays
	}
	cutoff := s.now().UTC().AddDate(0, 0, -retentionDays)

	result, err := s.storage.SweepPatterns(ctx, cutoff)
	if err != nil {
		return result, fmt.Errorf("failed to sweep patterns: %w", err)
	}
	slog.Info("Swept stale recipient patterns",
		"retention_days", retentionDays,
		"patterns_removed", result.PatternsRemoved,
		"customers_removed", result.CustomersRemoved)
	return result, nil
}

// Statistics summarizes a tenant's learned patterns.
func (s *Store) Statistics(ctx context.Context, tenantID string) (model.LearningStatistics, error) {
	stats := model.LearningStatistics{TenantID: tenantID}
	if strings.TrimSpace(tenantID) == "" {
		return stats, common.Permanent(fmt.Errorf("%w: tenant id is required", common.ErrInvalidIdentifier))
	}

	patterns, err := s.storage.ListTenantPatterns(ctx, tenantID)
	if err != nil {
		return stats, fmt.Errorf("failed to list patterns: %w", err)
	}
	if len(patterns) == 0 {
		return stats, nil
	}

	var totalConfidence float64
	var highConfidence int
	for _, p := range patterns {
		if p.AutoApprove {
			stats.AutoApprovable++
		}
		if p.Confidence >= model.AutoApproveConfidence {
			highConfidence++
		}
		totalConfidence += p.Confidence
	}
	total := float64(len(patterns))
	stats.TotalPatterns = len(patterns)
	stats.AutoApprovalRate = float64(stats.AutoApprovable) / total
	stats.AvgConfidence = totalConfidence / total
	stats.HighConfidenceRate = float64(highConfidence) / total
	return stats, nil
}
