// Package engine coordinates payment verification: it extracts a payment from
// a screenshot, scores it against the invoice and learned history, decides an
// outcome and records it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/ocr"
	"github.com/Veraticus/slipcheck/internal/pattern"
	"github.com/Veraticus/slipcheck/internal/scoring"
	"github.com/Veraticus/slipcheck/internal/service"
	"github.com/google/uuid"
)

// Reason tokens joined into VerificationDecision.Reason.
const (
	reasonExtractionFailed  = "extraction_failed"
	reasonOCRUnavailable    = "ocr_unavailable"
	reasonAmountMatch       = "amount_match"
	reasonAmountMismatch    = "amount_mismatch"
	reasonAmountMissing     = "amount_missing"
	reasonNoExpectedAmount  = "no_expected_amount"
	reasonCurrencyMismatch  = "currency_mismatch"
	reasonRecipientMismatch = "recipient_mismatch"
	reasonPatternLookup     = "pattern_lookup_failed"
)

// Config holds configuration options for the coordinator.
type Config struct {
	Retry                  service.RetryOptions
	OCRTimeout             time.Duration
	AutoApproveThreshold   float64
	ReviewThreshold        float64
	BankSuccessThreshold   float64
	AmountTolerancePercent float64
	Workers                int
	RetentionDays          int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		AutoApproveThreshold:   0.8,
		ReviewThreshold:        0.5,
		BankSuccessThreshold:   0.85,
		AmountTolerancePercent: scoring.DefaultTolerancePercent,
		OCRTimeout:             ocr.DefaultTimeout,
		Workers:                4,
		RetentionDays:          pattern.DefaultRetentionDays,
		Retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 100 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		},
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.AutoApproveThreshold <= 0 {
		c.AutoApproveThreshold = def.AutoApproveThreshold
	}
	if c.ReviewThreshold <= 0 {
		c.ReviewThreshold = def.ReviewThreshold
	}
	if c.BankSuccessThreshold <= 0 {
		c.BankSuccessThreshold = def.BankSuccessThreshold
	}
	if c.AmountTolerancePercent <= 0 {
		c.AmountTolerancePercent = def.AmountTolerancePercent
	}
	if c.OCRTimeout <= 0 {
		c.OCRTimeout = def.OCRTimeout
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.RetentionDays <= 0 {
		c.RetentionDays = def.RetentionDays
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry = def.Retry
	}
	return c
}

// Coordinator runs one verification attempt end to end.
type Coordinator struct {
	storage    service.Storage
	ocr        ocr.Client
	learner    PatternLearner
	now        func() time.Time
	newID      func() string
	extractors []Extractor
	amounts    scoring.AmountReconciler
	config     Config
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithExtractors replaces the extraction chain.
func WithExtractors(extractors ...Extractor) Option {
	return func(c *Coordinator) { c.extractors = extractors }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// New creates a coordinator. ocrClient may be nil, in which case only
// request-supplied text is used.
func New(storage service.Storage, ocrClient ocr.Client, recognizer FormatRecognizer, learner PatternLearner, config Config, opts ...Option) *Coordinator {
	config = config.withDefaults()
	c := &Coordinator{
		storage:    storage,
		ocr:        ocrClient,
		learner:    learner,
		config:     config,
		amounts:    scoring.NewAmountReconciler(config.AmountTolerancePercent),
		extractors: DefaultExtractors(recognizer),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the effective configuration.
func (c *Coordinator) Config() Config {
	return c.config
}

// VerifyRequest is one payment screenshot to check against an invoice.
type VerifyRequest struct {
	Image      []byte
	Text       string
	Invoice    model.Invoice
	TenantID   string
	CustomerID string
	InvoiceID  string
}

func (r VerifyRequest) validate() error {
	switch {
	case strings.TrimSpace(r.TenantID) == "":
		return common.Permanent(fmt.Errorf("%w: tenant id is required", common.ErrInvalidIdentifier))
	case strings.TrimSpace(r.CustomerID) == "":
		return common.Permanent(fmt.Errorf("%w: customer id is required", common.ErrInvalidIdentifier))
	case strings.TrimSpace(r.InvoiceID) == "":
		return common.Permanent(fmt.Errorf("%w: invoice id is required", common.ErrInvalidIdentifier))
	}
	return nil
}

// evaluation is the scoring stage output before a status is chosen.
type evaluation struct {
	matched    *model.RecipientPattern
	extraction model.ExtractionResult
	reasons    []string
	signals    scoring.Signals
	combined   float64
	patternOK  bool
	amountOK   bool
	amountSeen bool
}

// VerifyPayment runs one verification attempt. Extraction problems never
// return an error; they degrade the decision. The error return is reserved
// for invalid identifiers, cancellation before a decision, and persistence
// failures that outlived their retries.
func (c *Coordinator) VerifyPayment(ctx context.Context, req VerifyRequest) (*model.VerificationDecision, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	log := slog.With(
		"tenant_id", req.TenantID,
		"customer_id", req.CustomerID,
		"invoice_id", req.InvoiceID)

	var reasons []string
	ocrResult, err := c.readImage(ctx, req.Image)
	if err != nil {
		log.Warn("OCR unavailable, continuing without it", "error", err)
		reasons = append(reasons, reasonOCRUnavailable)
	}

	text := req.Text
	if ocrResult != nil && strings.TrimSpace(ocrResult.Text) != "" {
		text = ocrResult.Text
	}
	extraction := extract(c.extractors, ExtractionInput{OCR: ocrResult, Text: text})

	var eval evaluation
	if extraction.Success {
		eval = c.evaluate(ctx, log, req, extraction, ocrResult)
		eval.reasons = append(reasons, eval.reasons...)
	} else {
		log.Info("Extraction failed", "error", extraction.Error)
		eval = evaluation{extraction: extraction, reasons: append(reasons, reasonExtractionFailed)}
		if ocrResult != nil {
			eval.signals.OCR = ocrResult.Confidence
		}
	}

	// A canceled request gets no decision; nothing has been written yet.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	breakdown := scoring.Breakdown(eval.signals)
	eval.combined = breakdown.Combined

	decision := &model.VerificationDecision{
		ID:             c.newID(),
		CreatedAt:      c.now().UTC(),
		TenantID:       req.TenantID,
		CustomerID:     req.CustomerID,
		InvoiceID:      req.InvoiceID,
		Extraction:     eval.extraction,
		MatchedPattern: eval.matched,
		Breakdown:      breakdown,
		Confidence:     breakdown.Combined,
		Reason:         strings.Join(eval.reasons, ";"),
	}
	decision.Status = c.classify(eval)
	decision.ShouldLearn = decision.Status == model.StatusAutoVerified

	if err := c.record(context.WithoutCancel(ctx), req, decision); err != nil {
		return nil, err
	}

	log.Info("Payment verified",
		"decision_id", decision.ID,
		"status", decision.Status,
		"confidence", decision.Confidence,
		"reason", decision.Reason)
	return decision, nil
}

// readImage calls the OCR service under the configured timeout.
func (c *Coordinator) readImage(ctx context.Context, image []byte) (*ocr.Result, error) {
	if len(image) == 0 {
		return nil, nil
	}
	if c.ocr == nil {
		return nil, common.ErrOCRUnavailable
	}

	ocrCtx, cancel := context.WithTimeout(ctx, c.config.OCRTimeout)
	defer cancel()

	result, err := c.ocr.Extract(ocrCtx, image)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// evaluate derives every signal for a successful extraction.
func (c *Coordinator) evaluate(ctx context.Context, log *slog.Logger, req VerifyRequest, extraction model.ExtractionResult, ocrResult *ocr.Result) evaluation {
	eval := evaluation{extraction: extraction}
	inv := req.Invoice

	if extraction.Source == model.SourceBankFormat {
		eval.signals.Bank = extraction.Confidence
		eval.reasons = append(eval.reasons, "bank_format:"+bankSlug(extraction.BankName))
	} else {
		eval.reasons = append(eval.reasons, string(extraction.Source))
	}

	switch {
	case ocrResult != nil:
		eval.signals.OCR = ocrResult.Confidence
	case extraction.Source != model.SourceBankFormat:
		eval.signals.OCR = extraction.Confidence
	}

	var learned pattern.Result
	err := common.WithRetry(ctx, func() error {
		var verr error
		learned, verr = c.learner.Verify(ctx, pattern.Query{
			TenantID:      req.TenantID,
			CustomerID:    req.CustomerID,
			RecipientName: extraction.RecipientName,
			AccountNumber: extraction.AccountNumber,
			Amount:        extraction.Amount,
		})
		return verr
	}, c.config.Retry)
	if err != nil {
		log.Error("Pattern lookup failed", "error", err)
		eval.reasons = append(eval.reasons, reasonPatternLookup)
	} else {
		eval.matched = learned.MatchedPattern
		eval.patternOK = learned.ShouldAutoApprove
		eval.reasons = append(eval.reasons, "pattern:"+learned.Reason)
	}

	agreement := pattern.Agreement(extraction.RecipientName, extraction.AccountNumber,
		inv.ExpectedRecipientName, inv.ExpectedAccount)
	if (inv.ExpectedRecipientName != "" || inv.ExpectedAccount != "") && agreement < pattern.FuzzyMatchThreshold {
		eval.reasons = append(eval.reasons, reasonRecipientMismatch)
	}
	eval.signals.Pattern = math.Max(learned.Confidence, agreement)

	eval.amountSeen = extraction.Amount != nil && inv.ExpectedAmount != nil
	switch {
	case inv.ExpectedAmount == nil:
		eval.amountOK = true
		eval.reasons = append(eval.reasons, reasonNoExpectedAmount)
	case extraction.Amount == nil:
		eval.reasons = append(eval.reasons, reasonAmountMissing)
	case currencyMismatch(extraction.Currency, inv.ExpectedCurrency):
		eval.reasons = append(eval.reasons, reasonCurrencyMismatch)
	default:
		eval.signals.Amount = c.amounts.Score(extraction.Amount, inv.ExpectedAmount)
		if eval.signals.Amount > 0 {
			eval.amountOK = true
			eval.reasons = append(eval.reasons, reasonAmountMatch)
		} else {
			eval.reasons = append(eval.reasons, reasonAmountMismatch)
		}
	}

	return eval
}

// bankSlug turns "ABA Bank" into "aba_bank".
func bankSlug(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

func currencyMismatch(extracted, expected string) bool {
	return extracted != "" && expected != "" && !strings.EqualFold(extracted, expected)
}

// classify picks the terminal status; the first matching rule wins.
func (c *Coordinator) classify(eval evaluation) model.DecisionStatus {
	if !eval.extraction.Success {
		return model.StatusManualReviewRequired
	}

	bankStrong := eval.extraction.Source == model.SourceBankFormat &&
		eval.signals.Bank >= c.config.BankSuccessThreshold
	patternTrusted := eval.patternOK && eval.amountOK

	switch {
	case eval.combined >= c.config.AutoApproveThreshold && eval.amountOK && (bankStrong || patternTrusted):
		return model.StatusAutoVerified
	case eval.amountSeen && eval.signals.Amount == 0 && eval.combined < c.config.ReviewThreshold:
		return model.StatusRejected
	case eval.combined >= c.config.ReviewThreshold:
		return model.StatusQueuedForReview
	default:
		return model.StatusManualReviewRequired
	}
}

// record persists the decision and its side effects. The queue entry is
// written first so the logged decision can carry its id.
func (c *Coordinator) record(ctx context.Context, req VerifyRequest, decision *model.VerificationDecision) error {
	if decision.Status == model.StatusQueuedForReview {
		entry := &model.ReviewQueueEntry{
			ID:         c.newID(),
			DecisionID: decision.ID,
			TenantID:   decision.TenantID,
			CustomerID: decision.CustomerID,
			InvoiceID:  decision.InvoiceID,
			Expected:   req.Invoice,
			Extracted:  decision.Extraction,
			Breakdown:  decision.Breakdown,
			Priority:   model.PriorityForConfidence(decision.Confidence),
			Status:     model.ReviewPending,
			CreatedAt:  decision.CreatedAt,
		}
		if err := common.WithRetry(ctx, func() error {
			return c.storage.EnqueueReview(ctx, entry)
		}, c.config.Retry); err != nil {
			return fmt.Errorf("failed to enqueue review: %w", err)
		}
		decision.QueueID = entry.ID
	}

	if err := common.WithRetry(ctx, func() error {
		return c.storage.AppendDecision(ctx, decision)
	}, c.config.Retry); err != nil {
		return fmt.Errorf("failed to record decision: %w", err)
	}

	if decision.Status != model.StatusAutoVerified {
		return nil
	}
	// Learning is keyed by invoice and runs before the mark, so a re-run after
	// either step fails completes the pair without counting the payment twice.
	if err := c.learn(ctx, pattern.LearnEvent{
		EventID:              autoEventID(decision.InvoiceID),
		TenantID:             decision.TenantID,
		CustomerID:           decision.CustomerID,
		ExpectedCustomerName: req.Invoice.CustomerName,
		RecipientName:        decision.Extraction.RecipientName,
		AccountNumber:        decision.Extraction.AccountNumber,
		BankName:             decision.Extraction.BankName,
		Amount:               decision.Extraction.Amount,
		SeenAt:               decision.CreatedAt,
		WasApproved:          true,
	}); err != nil {
		return err
	}
	return c.markVerified(ctx, decision.TenantID, decision.InvoiceID, decision.ID)
}

func autoEventID(invoiceID string) string { return "auto:" + invoiceID }

func reviewEventID(queueID string) string { return "review:" + queueID }

func (c *Coordinator) markVerified(ctx context.Context, tenantID, invoiceID, decisionID string) error {
	if err := common.WithRetry(ctx, func() error {
		return c.storage.MarkInvoiceVerified(ctx, tenantID, invoiceID, decisionID)
	}, c.config.Retry); err != nil {
		return fmt.Errorf("failed to mark invoice verified: %w", err)
	}
	return nil
}

// learn feeds one confirmed outcome to the learning store. An extraction with
// neither name nor account has nothing to learn from and is skipped.
func (c *Coordinator) learn(ctx context.Context, event pattern.LearnEvent) error {
	err := common.WithRetry(ctx, func() error {
		return c.learner.Learn(ctx, event)
	}, c.config.Retry)
	if errors.Is(err, pattern.ErrEmptySignature) {
		slog.Debug("Nothing to learn from empty signature",
			"tenant_id", event.TenantID,
			"customer_id", event.CustomerID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to learn from outcome: %w", err)
	}
	return nil
}
