package storage

import (
	"context"
	"fmt"
	"time"
)

// MarkInvoiceVerified records that an invoice was paid. Marking twice keeps the first decision.
func (s *SQLiteStorage) MarkInvoiceVerified(ctx context.Context, tenantID, invoiceID, decisionID string) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return err
	}
	if err := validateString(decisionID, "decisionID"); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoice_verifications (tenant_id, invoice_id, decision_id, verified_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(tenant_id, invoice_id) DO NOTHING
	`, tenantID, invoiceID, decisionID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to mark invoice verified: %w", err)
	}
	return nil
}

// IsInvoiceVerified reports whether an invoice has been marked verified.
func (s *SQLiteStorage) IsInvoiceVerified(ctx context.Context, tenantID, invoiceID string) (bool, error) {
	if err := validateContext(ctx); err != nil {
		return false, err
	}

	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM invoice_verifications WHERE tenant_id = ? AND invoice_id = ?)
	`, tenantID, invoiceID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check invoice verification: %w", err)
	}
	return exists, nil
}
