package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/pattern"
	"github.com/Veraticus/slipcheck/internal/service"
)

// ApproveFromQueue records a reviewer's approval of a queued payment. The
// corrected values are learned as a confirmed pattern and the invoice is
// marked verified. It reports false when the entry is missing or was already
// resolved.
func (c *Coordinator) ApproveFromQueue(ctx context.Context, queueID, approvedBy string, corrections *model.Corrections) (bool, error) {
	return c.resolve(ctx, service.ReviewResolution{
		ID:          queueID,
		Status:      model.ReviewApproved,
		ReviewedBy:  approvedBy,
		Corrections: corrections,
	})
}

// RejectFromQueue records a reviewer's rejection of a queued payment and
// learns it as a negative outcome.
func (c *Coordinator) RejectFromQueue(ctx context.Context, queueID, rejectedBy, reason string) (bool, error) {
	return c.resolve(ctx, service.ReviewResolution{
		ID:         queueID,
		Status:     model.ReviewRejected,
		ReviewedBy: rejectedBy,
		Reason:     reason,
	})
}

// resolve applies a verdict once. Asking again for the verdict an entry already
// has replays its side effects from the stored resolution, so a caller can retry
// after a failed learn or mark; the replay still reports false.
func (c *Coordinator) resolve(ctx context.Context, resolution service.ReviewResolution) (bool, error) {
	if strings.TrimSpace(resolution.ID) == "" || strings.TrimSpace(resolution.ReviewedBy) == "" {
		return false, common.Permanent(fmt.Errorf("%w: queue id and reviewer are required", common.ErrInvalidIdentifier))
	}

	entry, err := c.storage.GetReview(ctx, resolution.ID)
	if errors.Is(err, common.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to load review %s: %w", resolution.ID, err)
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	// Past this point the verdict and its side effects are one unit.
	ctx = context.WithoutCancel(ctx)

	if entry.Status != model.ReviewPending {
		return false, c.replayResolution(ctx, entry, resolution.Status)
	}

	resolution.ReviewedAt = c.now().UTC()
	var won bool
	if err := common.WithRetry(ctx, func() error {
		var rerr error
		won, rerr = c.storage.ResolveReview(ctx, resolution)
		return rerr
	}, c.config.Retry); err != nil {
		return false, fmt.Errorf("failed to resolve review %s: %w", resolution.ID, err)
	}
	if !won {
		// Another reviewer got there first; their verdict is the stored one.
		entry, err = c.storage.GetReview(ctx, resolution.ID)
		if err != nil {
			return false, fmt.Errorf("failed to reload review %s: %w", resolution.ID, err)
		}
		return false, c.replayResolution(ctx, entry, resolution.Status)
	}

	entry.Status = resolution.Status
	entry.ReviewedBy = resolution.ReviewedBy
	entry.ReviewedAt = &resolution.ReviewedAt
	entry.Corrections = resolution.Corrections
	if err := c.applyResolution(ctx, entry); err != nil {
		return true, err
	}

	slog.Info("Review resolved",
		"queue_id", entry.ID,
		"tenant_id", entry.TenantID,
		"invoice_id", entry.InvoiceID,
		"status", resolution.Status,
		"reviewed_by", resolution.ReviewedBy)
	return true, nil
}

// replayResolution re-drives the side effects of an entry that already holds
// the requested verdict. A different verdict is left alone.
func (c *Coordinator) replayResolution(ctx context.Context, entry *model.ReviewQueueEntry, want model.ReviewStatus) error {
	if entry.Status != want {
		return nil
	}
	if err := c.applyResolution(ctx, entry); err != nil {
		return err
	}
	slog.Debug("Replayed review resolution",
		"queue_id", entry.ID,
		"tenant_id", entry.TenantID,
		"status", entry.Status)
	return nil
}

// applyResolution learns from a resolved entry and, for approvals, marks the
// invoice verified. Both steps are idempotent.
func (c *Coordinator) applyResolution(ctx context.Context, entry *model.ReviewQueueEntry) error {
	approved := entry.Status == model.ReviewApproved
	final := entry.Extracted
	if approved {
		final = entry.Corrections.Apply(final)
	}
	seenAt := entry.CreatedAt
	if entry.ReviewedAt != nil {
		seenAt = *entry.ReviewedAt
	}

	if err := c.learn(ctx, pattern.LearnEvent{
		EventID:              reviewEventID(entry.ID),
		TenantID:             entry.TenantID,
		CustomerID:           entry.CustomerID,
		ExpectedCustomerName: entry.Expected.CustomerName,
		RecipientName:        final.RecipientName,
		AccountNumber:        final.AccountNumber,
		BankName:             final.BankName,
		Amount:               final.Amount,
		SeenAt:               seenAt,
		WasApproved:          approved,
	}); err != nil {
		return err
	}

	if approved {
		return c.markVerified(ctx, entry.TenantID, entry.InvoiceID, entry.DecisionID)
	}
	return nil
}

// GetLearningStatistics summarizes a tenant's learned trust model.
func (c *Coordinator) GetLearningStatistics(ctx context.Context, tenantID string) (model.LearningStatistics, error) {
	return c.learner.Statistics(ctx, tenantID)
}

// SweepPatterns applies the configured retention window to learned patterns.
func (c *Coordinator) SweepPatterns(ctx context.Context) (service.SweepResult, error) {
	return c.learner.Sweep(ctx, c.config.RetentionDays)
}
