package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/slipcheck/internal/bankformat"
	"github.com/Veraticus/slipcheck/internal/config"
	"github.com/Veraticus/slipcheck/internal/engine"
	"github.com/Veraticus/slipcheck/internal/ocr"
	"github.com/Veraticus/slipcheck/internal/pattern"
	"github.com/Veraticus/slipcheck/internal/storage"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var envKeyReplacer = strings.NewReplacer(".", "_", "-", "_")

// app bundles everything a command needs. Close releases it.
type app struct {
	store       *storage.SQLiteStorage
	ocr         *ocr.HTTPClient
	recognizer  *bankformat.Recognizer
	coordinator *engine.Coordinator
	settings    *config.Settings
}

func (a *app) Close() {
	if a.ocr != nil {
		a.ocr.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Error("failed to close storage", "error", err)
		}
	}
}

// initStorage opens and migrates the configured database.
func initStorage(ctx context.Context, path string) (*storage.SQLiteStorage, error) {
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store, nil
}

// initApp loads settings and wires storage, OCR, recognizer, learner and coordinator.
func initApp(ctx context.Context) (*app, error) {
	settings, err := config.LoadEngineConfig()
	if err != nil {
		return nil, err
	}

	recognizer, err := bankformat.Default(bankformat.WithLocalCurrency(settings.LocalCurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to load bank templates: %w", err)
	}

	store, err := initStorage(ctx, settings.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a := &app{store: store, recognizer: recognizer, settings: settings}

	var client ocr.Client
	if settings.OCREnabled() {
		a.ocr, err = ocr.NewHTTPClient(settings.OCR)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to create OCR client: %w", err)
		}
		client = a.ocr
	} else {
		slog.Debug("No OCR endpoint configured; images cannot be read")
	}

	learner := pattern.NewStore(store)
	a.coordinator = engine.New(store, client, recognizer, learner, settings.Engine)
	return a, nil
}

// invoiceFlags registers the expectation flags shared by verify and batch.
type invoiceFlags struct {
	tenant       string
	customer     string
	invoice      string
	amount       string
	currency     string
	recipient    string
	account      string
	customerName string
}

func (f *invoiceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.tenant, "tenant", "", "tenant id (required)")
	cmd.Flags().StringVar(&f.customer, "customer", "", "customer id (required)")
	cmd.Flags().StringVar(&f.invoice, "invoice", "", "invoice id (required)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "expected amount, e.g. 100000 or 25.50")
	cmd.Flags().StringVar(&f.currency, "currency", "", "expected currency (KHR, USD)")
	cmd.Flags().StringVar(&f.recipient, "recipient", "", "expected recipient name")
	cmd.Flags().StringVar(&f.account, "account", "", "expected recipient account number")
	cmd.Flags().StringVar(&f.customerName, "customer-name", "", "customer display name")
}

// parseExpectedAmount accepts an empty string as "no expectation".
func parseExpectedAmount(raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	amount, err := bankformat.ParseAmount(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("invalid amount %q: must be positive", raw)
	}
	return &amount, nil
}
