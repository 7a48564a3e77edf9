package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/Veraticus/slipcheck/internal/service"
	"github.com/shopspring/decimal"
)

// maxAmountHistory bounds the amounts kept per customer.
const maxAmountHistory = 20

// GetCustomerPatterns loads the learning document for one customer.
func (s *SQLiteStorage) GetCustomerPatterns(ctx context.Context, tenantID, customerID string) (*model.CustomerPatterns, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateCustomerKey(tenantID, customerID); err != nil {
		return nil, err
	}

	doc, err := s.loadCustomerPatterns(ctx, s.db, tenantID, customerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("customer %s/%s: %w", tenantID, customerID, common.ErrNotFound)
	}
	return doc, nil
}

// UpdateCustomerPatterns performs an atomic read-modify-write of a customer document.
func (s *SQLiteStorage) UpdateCustomerPatterns(ctx context.Context, tenantID, customerID string, fn func(*model.CustomerPatterns) error) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCustomerKey(tenantID, customerID); err != nil {
		return err
	}
	if fn == nil {
		return fmt.Errorf("%w: update function", ErrNilParameter)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		return s.updateCustomerPatternsTx(ctx, tx, tenantID, customerID, fn)
	})
}

// UpdateCustomerPatternsOnce is UpdateCustomerPatterns guarded by an event id.
// fn runs only the first time eventID is seen for the tenant; the guard and the
// update commit together. It reports whether fn ran.
func (s *SQLiteStorage) UpdateCustomerPatternsOnce(ctx context.Context, tenantID, customerID, eventID string, fn func(*model.CustomerPatterns) error) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}
	if err := validateCustomerKey(tenantID, customerID); err != nil {
		return false, err
	}
	if err := validateString(eventID, "eventID"); err != nil {
		return false, err
	}
	if fn == nil {
		return false, fmt.Errorf("%w: update function", ErrNilParameter)
	}

	var applied bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO learned_events (tenant_id, event_id, customer_id, learned_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(tenant_id, event_id) DO NOTHING
		`, tenantID, eventID, customerID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("failed to record learning event: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check learning event: %w", err)
		}
		if n == 0 {
			return nil
		}
		applied = true
		return s.updateCustomerPatternsTx(ctx, tx, tenantID, customerID, fn)
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (s *SQLiteStorage) updateCustomerPatternsTx(ctx context.Context, tx *sql.Tx, tenantID, customerID string, fn func(*model.CustomerPatterns) error) error {
	doc, err := s.loadCustomerPatterns(ctx, tx, tenantID, customerID)
	if err != nil {
		return err
	}
	if doc == nil {
		now := time.Now().UTC()
		doc = &model.CustomerPatterns{
			TenantID:   tenantID,
			CustomerID: customerID,
			CreatedAt:  now,
		}
	}
	loadedAmounts := len(doc.Amounts)

	if err := fn(doc); err != nil {
		return err
	}

	return s.saveCustomerPatternsTx(ctx, tx, doc, loadedAmounts)
}

func (s *SQLiteStorage) loadCustomerPatterns(ctx context.Context, q queryable, tenantID, customerID string) (*model.CustomerPatterns, error) {
	var doc model.CustomerPatterns
	var customerName sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT id, tenant_id, customer_id, customer_name, created_at, updated_at
		FROM customer_patterns
		WHERE tenant_id = ? AND customer_id = ?
	`, tenantID, customerID).Scan(
		&doc.ID,
		&doc.TenantID,
		&doc.CustomerID,
		&customerName,
		&doc.CreatedAt,
		&doc.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // Missing document is not an error here
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get customer patterns: %w", err)
	}
	doc.CustomerName = customerName.String

	patterns, err := s.queryPatterns(ctx, q, `WHERE customer_pattern_id = ? ORDER BY id`, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Patterns = patterns

	amounts, err := s.loadAmountHistory(ctx, q, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Amounts = amounts

	return &doc, nil
}

func (s *SQLiteStorage) queryPatterns(ctx context.Context, q queryable, where string, args ...any) ([]model.RecipientPattern, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT rp.id, rp.recipient_name, rp.account_number, rp.bank_name,
			rp.occurrence_count, rp.approval_count, rp.rejection_count, rp.last_seen
		FROM recipient_patterns rp
		`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recipient patterns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var patterns []model.RecipientPattern
	for rows.Next() {
		var p model.RecipientPattern
		var bankName sql.NullString
		if err := rows.Scan(
			&p.ID,
			&p.RecipientName,
			&p.AccountNumber,
			&bankName,
			&p.OccurrenceCount,
			&p.ApprovalCount,
			&p.RejectionCount,
			&p.LastSeen,
		); err != nil {
			return nil, fmt.Errorf("failed to scan recipient pattern: %w", err)
		}
		p.BankName = bankName.String
		p.Recompute()
		patterns = append(patterns, p)
	}
	return patterns, rows.Err()
}

func (s *SQLiteStorage) loadAmountHistory(ctx context.Context, q queryable, customerPatternID int64) ([]model.AmountRecord, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT amount, seen_at FROM (
			SELECT amount, seen_at, id FROM amount_history
			WHERE customer_pattern_id = ?
			ORDER BY seen_at DESC, id DESC
			LIMIT ?
		) ORDER BY seen_at ASC, id ASC
	`, customerPatternID, maxAmountHistory)
	if err != nil {
		return nil, fmt.Errorf("failed to query amount history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var amounts []model.AmountRecord
	for rows.Next() {
		var rec model.AmountRecord
		var raw string
		if err := rows.Scan(&raw, &rec.SeenAt); err != nil {
			return nil, fmt.Errorf("failed to scan amount history: %w", err)
		}
		amt, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt amount %q in history: %w", raw, err)
		}
		rec.Amount = amt
		amounts = append(amounts, rec)
	}
	return amounts, rows.Err()
}

func (s *SQLiteStorage) saveCustomerPatternsTx(ctx context.Context, tx *sql.Tx, doc *model.CustomerPatterns, loadedAmounts int) error {
	doc.UpdatedAt = time.Now().UTC()

	if doc.ID == 0 {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO customer_patterns (tenant_id, customer_id, customer_name, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
		`, doc.TenantID, doc.CustomerID, nullString(doc.CustomerName), doc.CreatedAt.UTC(), doc.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to create customer patterns: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get customer patterns ID: %w", err)
		}
		doc.ID = id
	} else {
		if _, err := tx.ExecContext(ctx, `
			UPDATE customer_patterns
			SET customer_name = COALESCE(?, customer_name), updated_at = ?
			WHERE id = ?
		`, nullString(doc.CustomerName), doc.UpdatedAt, doc.ID); err != nil {
			return fmt.Errorf("failed to update customer patterns: %w", err)
		}
	}

	for i := range doc.Patterns {
		p := &doc.Patterns[i]
		if p.LastSeen.IsZero() {
			p.LastSeen = doc.UpdatedAt
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO recipient_patterns (
				customer_pattern_id, recipient_name, account_number, bank_name,
				occurrence_count, approval_count, rejection_count, last_seen
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(customer_pattern_id, recipient_name, account_number) DO UPDATE SET
				bank_name = COALESCE(excluded.bank_name, recipient_patterns.bank_name),
				occurrence_count = excluded.occurrence_count,
				approval_count = excluded.approval_count,
				rejection_count = excluded.rejection_count,
				last_seen = excluded.last_seen
		`, doc.ID, p.RecipientName, p.AccountNumber, nullString(p.BankName),
			p.OccurrenceCount, p.ApprovalCount, p.RejectionCount, p.LastSeen.UTC())
		if err != nil {
			return fmt.Errorf("failed to save recipient pattern: %w", err)
		}
		if p.ID == 0 {
			if id, idErr := result.LastInsertId(); idErr == nil {
				p.ID = id
			}
		}
		p.Recompute()
	}

	if loadedAmounts < len(doc.Amounts) {
		for _, rec := range doc.Amounts[loadedAmounts:] {
			seenAt := rec.SeenAt
			if seenAt.IsZero() {
				seenAt = doc.UpdatedAt
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO amount_history (customer_pattern_id, amount, seen_at) VALUES (?, ?, ?)
			`, doc.ID, rec.Amount.String(), seenAt.UTC()); err != nil {
				return fmt.Errorf("failed to save amount history: %w", err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM amount_history
			WHERE customer_pattern_id = ? AND id NOT IN (
				SELECT id FROM amount_history WHERE customer_pattern_id = ?
				ORDER BY seen_at DESC, id DESC LIMIT ?
			)
		`, doc.ID, doc.ID, maxAmountHistory); err != nil {
			return fmt.Errorf("failed to prune amount history: %w", err)
		}
	}

	return nil
}

// ListTenantPatterns returns every recipient pattern belonging to a tenant.
func (s *SQLiteStorage) ListTenantPatterns(ctx context.Context, tenantID string) ([]model.RecipientPattern, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}

	return s.queryPatterns(ctx, s.db, `
		JOIN customer_patterns cp ON cp.id = rp.customer_pattern_id
		WHERE cp.tenant_id = ?
		ORDER BY rp.id`, tenantID)
}

// SweepPatterns removes stale patterns and the customer documents they leave empty.
func (s *SQLiteStorage) SweepPatterns(ctx context.Context, cutoff time.Time) (service.SweepResult, error) {
	var result service.SweepResult
	if err := validateContext(ctx); err != nil {
		return result, err
	}
	if cutoff.IsZero() {
		return result, fmt.Errorf("%w: sweep cutoff", ErrInvalidTimestamp)
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM recipient_patterns WHERE last_seen < ?`, cutoff.UTC())
		if err != nil {
			return fmt.Errorf("failed to sweep recipient patterns: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count swept patterns: %w", err)
		}
		result.PatternsRemoved = int(n)

		res, err = tx.ExecContext(ctx, `
			DELETE FROM customer_patterns
			WHERE NOT EXISTS (
				SELECT 1 FROM recipient_patterns rp WHERE rp.customer_pattern_id = customer_patterns.id
			)
		`)
		if err != nil {
			return fmt.Errorf("failed to sweep customer patterns: %w", err)
		}
		n, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to count swept customers: %w", err)
		}
		result.CustomersRemoved = int(n)

		if _, err := tx.ExecContext(ctx, `DELETE FROM learned_events WHERE learned_at < ?`, cutoff.UTC()); err != nil {
			return fmt.Errorf("failed to sweep learning events: %w", err)
		}
		return nil
	})
	return result, err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
