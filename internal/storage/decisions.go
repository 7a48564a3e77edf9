package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/Veraticus/slipcheck/internal/common"
	"github.com/Veraticus/slipcheck/internal/model"
)

// AppendDecision writes a decision to the append-only log.
func (s *SQLiteStorage) AppendDecision(ctx context.Context, decision *model.VerificationDecision) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateDecision(decision); err != nil {
		return common.Permanent(err)
	}

	extraction, err := json.Marshal(decision.Extraction)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to marshal extraction: %w", err))
	}
	breakdown, err := json.Marshal(decision.Breakdown)
	if err != nil {
		return common.Permanent(fmt.Errorf("failed to marshal breakdown: %w", err))
	}
	var matched sql.NullString
	if decision.MatchedPattern != nil {
		data, err := json.Marshal(decision.MatchedPattern)
		if err != nil {
			return common.Permanent(fmt.Errorf("failed to marshal matched pattern: %w", err))
		}
		matched = sql.NullString{String: string(data), Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO verification_decisions (
			id, tenant_id, customer_id, invoice_id, status, confidence, reason,
			extraction, breakdown, matched_pattern, queue_id, should_learn, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, decision.ID, decision.TenantID, decision.CustomerID, decision.InvoiceID,
		string(decision.Status), decision.Confidence, decision.Reason,
		string(extraction), string(breakdown), matched, nullString(decision.QueueID),
		decision.ShouldLearn, decision.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}
	return nil
}

// GetDecision retrieves one logged decision.
func (s *SQLiteStorage) GetDecision(ctx context.Context, id string) (*model.VerificationDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	decisions, err := s.queryDecisions(ctx, `WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(decisions) == 0 {
		return nil, fmt.Errorf("decision %s: %w", id, common.ErrNotFound)
	}
	return &decisions[0], nil
}

// ListDecisionsByInvoice returns the decision history of an invoice, oldest first.
func (s *SQLiteStorage) ListDecisionsByInvoice(ctx context.Context, tenantID, invoiceID string) ([]model.VerificationDecision, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(tenantID, "tenantID"); err != nil {
		return nil, err
	}
	if err := validateString(invoiceID, "invoiceID"); err != nil {
		return nil, err
	}
	return s.queryDecisions(ctx, `WHERE tenant_id = ? AND invoice_id = ? ORDER BY created_at, id`, tenantID, invoiceID)
}

func (s *SQLiteStorage) queryDecisions(ctx context.Context, where string, args ...any) ([]model.VerificationDecision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, customer_id, invoice_id, status, confidence, reason,
			extraction, breakdown, matched_pattern, queue_id, should_learn, created_at
		FROM verification_decisions
		`+where, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var decisions []model.VerificationDecision
	for rows.Next() {
		var d model.VerificationDecision
		var status, extraction, breakdown string
		var reason, matched, queueID sql.NullString
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.CustomerID, &d.InvoiceID, &status, &d.Confidence, &reason,
			&extraction, &breakdown, &matched, &queueID, &d.ShouldLearn, &d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Status = model.DecisionStatus(status)
		d.Reason = reason.String
		d.QueueID = queueID.String
		if err := json.Unmarshal([]byte(extraction), &d.Extraction); err != nil {
			return nil, fmt.Errorf("corrupt extraction for decision %s: %w", d.ID, err)
		}
		if err := json.Unmarshal([]byte(breakdown), &d.Breakdown); err != nil {
			return nil, fmt.Errorf("corrupt breakdown for decision %s: %w", d.ID, err)
		}
		if matched.Valid {
			var p model.RecipientPattern
			if err := json.Unmarshal([]byte(matched.String), &p); err != nil {
				return nil, fmt.Errorf("corrupt matched pattern for decision %s: %w", d.ID, err)
			}
			d.MatchedPattern = &p
		}
		decisions = append(decisions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate decisions: %w", err)
	}
	return decisions, nil
}
