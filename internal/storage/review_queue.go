package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/service"
)

// EnqueueReview persists a new pending review entry.
func (s *SQLiteStorage) EnqueueReview(ctx context.Context, entry *model.ReviewQueueEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateReview(entry); err != nil {
		return common.Permanent(err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	expected, err := json.Marshal(entry.Expected)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to marshal expected values: %w", err))
	}
	extracted, err := json.Marshal(entry.Extracted)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to marshal extracted values: %w", err))
	}
	breakdown, err := json.Marshal(entry.Breakdown)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to marshal breakdown: %w", err))
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO review_queue (
			id, decision_id, tenant_id, customer_id, invoice_id,
			expected, extracted, breakdown, priority, status, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, entry.ID, entry.DecisionID, entry.TenantID, entry.CustomerID, entry.InvoiceID,
		string(expected), string(extracted), string(breakdown),
		string(entry.Priority), string(entry.Status), entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to enqueue review: %w", err)
	}
	return nil
}

// GetReview retrieves a review entry by id.
func (s *SQLiteStorage) GetReview(ctx context.Context, id string) (*model.ReviewQueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	entries, err := s.queryReviews(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("review %s: %w", id, common.ErrNotFound)
	}
	return &entries[0], nil
}

// ListReviews returns review entries ordered by priority then age.
func (s *SQLiteStorage) ListReviews(ctx context.Context, filter model.ReviewFilter) ([]model.ReviewQueueEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	where := "WHERE 1=1"
	var args []any
	if filter.TenantID != "" {
		where += " AND tenant_id = ?"
		args = append(args, filter.TenantID)
	}
	if filter.Status != "" {
		where += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	where += ` ORDER BY CASE priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, created_at, id`
	if filter.Limit > 0 {
		where += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryReviews(ctx, where, args...)
}

// ResolveReview applies a human verdict to a pending entry.
func (s *SQLiteStorage) ResolveReview(ctx context.Context, r service.ReviewResolution) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateResolution(r); err != nil {
		return false, common.Permanent(err)
	}
	if r.ReviewedAt.IsZero() {
		r.ReviewedAt = time.Now().UTC()
	}

	var corrections sql.NullString
	if r.Corrections != nil {
		data, err := json.Marshal(r.Corrections)
		if err != nil {
			return false, common.Permanent(fmt.Errorf("failed to marshal corrections: %w", err))
		}
		corrections = sql.NullString{String: string(data), Valid: true}
	}

	// The status guard makes the pending -> terminal transition happen exactly once.
	res, err := s.db.ExecContext(ctx, `
		UPDATE review_queue
		SET status = ?, reviewed_by = ?, reviewed_at = ?, reason = ?, corrections = ?
		WHERE id = ? AND status = 'pending'
	`, string(r.Status), r.ReviewedBy, r.ReviewedAt.UTC(), nullString(r.Reason), corrections, r.ID)
	if err != nil {
		return false, fmt.Errorf("failed to resolve review: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check review resolution: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteStorage) queryReviews(ctx context.Context, where string, args ...any) ([]model.ReviewQueueEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, decision_id, tenant_id, customer_id, invoice_id,
			expected, extracted, breakdown, priority, status,
			reviewed_by, reviewed_at, reason, corrections, created_at
		FROM review_queue
		`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query review queue: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.ReviewQueueEntry
	for rows.Next() {
		var e model.ReviewQueueEntry
		var expected, extracted, breakdown, priority, status string
		var reviewedBy, reason, corrections sql.NullString
		var reviewedAt sql.NullTime
		if err := rows.Scan(
			&e.ID, &e.DecisionID, &e.TenantID, &e.CustomerID, &e.InvoiceID,
			&expected, &extracted, &breakdown, &priority, &status,
			&reviewedBy, &reviewedAt, &reason, &corrections, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review entry: %w", err)
		}
		e.Priority = model.ReviewPriority(priority)
		e.Status = model.ReviewStatus(status)
		e.ReviewedBy = reviewedBy.String
		e.Reason = reason.String
		if reviewedAt.Valid {
			t := reviewedAt.Time
			e.ReviewedAt = &t
		}
		if err := json.Unmarshal([]byte(expected), &e.Expected); err != nil {
			return nil, fmt.Errorf("corrupt expected values for review %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(extracted), &e.Extracted); err != nil {
			return nil, fmt.Errorf("corrupt extracted values for review %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(breakdown), &e.Breakdown); err != nil {
			return nil, fmt.Errorf("corrupt breakdown for review %s: %w", e.ID, err)
		}
		if corrections.Valid {
			var c model.Corrections
			if err := json.Unmarshal([]byte(corrections.String), &c); err != nil {
				return nil, fmt.Errorf("corrupt corrections for review %s: %w", e.ID, err)
			}
			e.Corrections = &c
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
