package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 6

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

func execAll(tx *sql.Tx, queries []string) error {
	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}
	return nil
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Customer recipient patterns",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS customer_patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					tenant_id TEXT NOT NULL,
					customer_id TEXT NOT NULL,
					customer_name TEXT,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
					UNIQUE(tenant_id, customer_id)
				)`,
				`CREATE TABLE IF NOT EXISTS recipient_patterns (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					customer_pattern_id INTEGER NOT NULL,
					recipient_name TEXT NOT NULL,
					account_number TEXT NOT NULL,
					bank_name TEXT,
					occurrence_count INTEGER NOT NULL DEFAULT 0,
					approval_count INTEGER NOT NULL DEFAULT 0,
					rejection_count INTEGER NOT NULL DEFAULT 0,
					last_seen DATETIME NOT NULL,
					UNIQUE(customer_pattern_id, recipient_name, account_number),
					FOREIGN KEY (customer_pattern_id) REFERENCES customer_patterns(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_recipient_patterns_last_seen ON recipient_patterns(last_seen)`,
				`CREATE INDEX idx_customer_patterns_tenant ON customer_patterns(tenant_id)`,
			})
		},
	},
	{
		Version:     2,
		Description: "Customer amount history",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS amount_history (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					customer_pattern_id INTEGER NOT NULL,
					amount TEXT NOT NULL,
					seen_at DATETIME NOT NULL,
					FOREIGN KEY (customer_pattern_id) REFERENCES customer_patterns(id) ON DELETE CASCADE
				)`,
				`CREATE INDEX idx_amount_history_customer ON amount_history(customer_pattern_id, seen_at)`,
			})
		},
	},
	{
		Version:     3,
		Description: "Append-only verification decision log",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS verification_decisions (
					id TEXT PRIMARY KEY,
					tenant_id TEXT NOT NULL,
					customer_id TEXT NOT NULL,
					invoice_id TEXT NOT NULL,
					status TEXT NOT NULL,
					confidence REAL NOT NULL DEFAULT 0,
					reason TEXT,
					extraction TEXT NOT NULL,
					breakdown TEXT NOT NULL,
					matched_pattern TEXT,
					queue_id TEXT,
					should_learn BOOLEAN NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_decisions_invoice ON verification_decisions(tenant_id, invoice_id)`,
				`CREATE TRIGGER verification_decisions_no_update
				BEFORE UPDATE ON verification_decisions
				BEGIN
					SELECT RAISE(ABORT, 'verification decisions are append-only');
				END`,
				`CREATE TRIGGER verification_decisions_no_delete
				BEFORE DELETE ON verification_decisions
				BEGIN
					SELECT RAISE(ABORT, 'verification decisions are append-only');
				END`,
			})
		},
	},
	{
		Version:     4,
		Description: "Review queue",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS review_queue (
					id TEXT PRIMARY KEY,
					decision_id TEXT NOT NULL,
					tenant_id TEXT NOT NULL,
					customer_id TEXT NOT NULL,
					invoice_id TEXT NOT NULL,
					expected TEXT NOT NULL,
					extracted TEXT NOT NULL,
					breakdown TEXT NOT NULL,
					priority TEXT NOT NULL,
					status TEXT NOT NULL DEFAULT 'pending',
					reviewed_by TEXT,
					reviewed_at DATETIME,
					reason TEXT,
					corrections TEXT,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_review_queue_status ON review_queue(tenant_id, status, created_at)`,
			})
		},
	},
	{
		Version:     5,
		Description: "Invoice verification marks",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS invoice_verifications (
					tenant_id TEXT NOT NULL,
					invoice_id TEXT NOT NULL,
					decision_id TEXT NOT NULL,
					verified_at DATETIME NOT NULL,
					PRIMARY KEY (tenant_id, invoice_id)
				)`,
			})
		},
	},
	{
		Version:     6,
		Description: "Applied learning events",
		Up: func(tx *sql.Tx) error {
			return execAll(tx, []string{
				`CREATE TABLE IF NOT EXISTS learned_events (
					tenant_id TEXT NOT NULL,
					event_id TEXT NOT NULL,
					customer_id TEXT NOT NULL,
					learned_at DATETIME NOT NULL,
					PRIMARY KEY (tenant_id, event_id)
				)`,
				`CREATE INDEX idx_learned_events_age ON learned_events(learned_at)`,
			})
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	currentVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	finalVersion, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

// SchemaVersion returns the current PRAGMA user_version.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
