// Package testutil provides shared test helpers for slipcheck packages.
package testutil

import (
	"context"
	"testing"

	"github.com/Veraticus/slipcheck/internal/service"
	"github.com/Veraticus/slipcheck/internal/storage"
	"github.com/Veraticus/slipcheck/internal/testutil/fixtures"
)

// TestDB represents a test database with associated test utilities.
type TestDB struct {
	Storage service.Storage
	t       *testing.T
}

// SetupTestDB creates a new migrated in-memory test database.
// It registers cleanup with t.
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	return SetupTestDBWithOptions(t, TestDBOptions{})
}

// SetupTestDBWithPatterns creates a test database seeded with learned patterns.
//
// Example:
//
//	db := testutil.SetupTestDBWithPatterns(t, func(b fixtures.Builder) fixtures.Builder {
//		return b.WithApproved("tenant-1", "customer-1", "TEST MERCHANT", "001234567", 3)
//	})
func SetupTestDBWithPatterns(t *testing.T, configure func(fixtures.Builder) fixtures.Builder) *TestDB {
	t.Helper()

	builder := fixtures.NewBuilder(t)
	if configure != nil {
		builder = configure(builder)
	}
	return SetupTestDBWithOptions(t, TestDBOptions{
		CustomSetup: func(ctx context.Context, s service.Storage) error {
			return builder.Build(ctx, s)
		},
	})
}

// TestDBOptions provides configuration options for test database setup.
type TestDBOptions struct {
	CustomSetup    func(context.Context, service.Storage) error
	SkipMigrations bool
}

// SetupTestDBWithOptions creates a test database with custom options.
func SetupTestDBWithOptions(t *testing.T, opts TestDBOptions) *TestDB {
	t.Helper()

	// Create in-memory SQLite storage
	store, err := storage.NewSQLiteStorage(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	ctx := context.Background()

	// Run migrations unless skipped
	if !opts.SkipMigrations {
		if err := store.Migrate(ctx); err != nil {
			t.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Run custom setup
	if opts.CustomSetup != nil {
		if err := opts.CustomSetup(ctx, store); err != nil {
			t.Fatalf("custom setup failed: %v", err)
		}
	}

	// Register cleanup
	t.Cleanup(func() {
		_ = store.Close()
	})

	return &TestDB{
		Storage: store,
		t:       t,
	}
}

// MustGetPatterns returns the learning document of a customer or fails the test.
func (db *TestDB) MustGetPatterns(tenantID, customerID string) fixtures.Patterns {
	db.t.Helper()
	doc, err := db.Storage.GetCustomerPatterns(context.Background(), tenantID, customerID)
	if err != nil {
		db.t.Fatalf("failed to load patterns for %s/%s: %v", tenantID, customerID, err)
	}
	return fixtures.Patterns{Doc: doc}
}
