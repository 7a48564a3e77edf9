package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/slipcheck/internal/cli"
	"github.com/Veraticus/slipcheck/internal/engine"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func batchCmd() *cobra.Command {
	var (
		workers int
		details bool
	)

	cmd := &cobra.Command{
		Use:   "batch <manifest.yaml>",
		Short: "Verify every payment listed in a YAML manifest",
		Long: `Verify many payments concurrently. The manifest lists one entry per payment:

  defaults:
    tenant: shop-1
    currency: KHR
  payments:
    - image: receipts/inv-1001.png
      customer: c-42
      invoice: INV-1001
      amount: "100000"
      recipient: TEST MERCHANT
      account: "001234567"

Invoices that are already verified are skipped, so an interrupted batch can
simply be run again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, args[0], workers, details)
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "concurrent verifications (default: verification.workers)")
	cmd.Flags().BoolVar(&details, "details", false, "print one line per payment when done")
	return cmd
}

func runBatch(cmd *cobra.Command, manifestPath string, workers int, details bool) error {
	m, err := loadManifest(manifestPath)
	if err != nil {
		return err
	}

	a, err := initApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	handler := cli.NewInterruptHandler(os.Stdout)
	ctx := handler.HandleInterrupts(cmd.Context(), true)
	defer handler.Stop()

	var (
		requests []engine.VerifyRequest
		skipped  int
		failed   []string
	)
	for _, entry := range m.Payments {
		verified, err := a.store.IsInvoiceVerified(ctx, entry.Tenant, entry.Invoice)
		if err != nil {
			return fmt.Errorf("failed to check invoice %s: %w", entry.Invoice, err)
		}
		if verified {
			skipped++
			continue
		}
		req, err := entry.request()
		if err != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", entry.Invoice, err))
			continue
		}
		requests = append(requests, req)
	}

	if len(requests) == 0 {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Nothing to verify (%d already verified)", skipped))) //nolint:forbidigo // User-facing output
		return nil
	}

	bar := progressbar.NewOptions(len(requests),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Verifying payments...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(os.Stderr)
		}),
	)

	start := time.Now()
	results, err := a.coordinator.VerifyBatch(ctx, requests, workers, func(engine.BatchResult) {
		if addErr := bar.Add(1); addErr != nil {
			slog.Warn("Failed to update progress bar", "error", addErr)
		}
	})
	if err != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("batch failed: %w", err)
	}

	counts := make(map[model.DecisionStatus]int)
	for _, r := range results {
		switch {
		case r.Err != nil:
			failed = append(failed, fmt.Sprintf("%s: %v", requests[r.Index].InvoiceID, r.Err))
		case r.Decision != nil:
			counts[r.Decision.Status]++
			if details {
				fmt.Println(cli.RenderDecisionLine(r.Index, r.Decision)) //nolint:forbidigo // User-facing output
			}
		}
	}

	fmt.Println(cli.RenderBox("Batch complete", batchSummary(counts, skipped, failed, time.Since(start)))) //nolint:forbidigo // User-facing output
	if handler.WasInterrupted() {
		return ctx.Err()
	}
	return nil
}

func batchSummary(counts map[model.DecisionStatus]int, skipped int, failed []string, elapsed time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %d\n", cli.SuccessStyle.Render("Auto-verified:      "), counts[model.StatusAutoVerified])
	fmt.Fprintf(&b, "%s %d\n", cli.WarningStyle.Render("Queued for review:  "), counts[model.StatusQueuedForReview])
	fmt.Fprintf(&b, "%s %d\n", cli.InfoStyle.Render("Manual review:      "), counts[model.StatusManualReviewRequired])
	fmt.Fprintf(&b, "%s %d\n", cli.ErrorStyle.Render("Rejected:           "), counts[model.StatusRejected])
	fmt.Fprintf(&b, "%s %d\n", cli.SubtleStyle.Render("Already verified:   "), skipped)
	fmt.Fprintf(&b, "%s %s", cli.SubtleStyle.Render("Time taken:         "), elapsed.Round(time.Millisecond))
	if len(failed) > 0 {
		fmt.Fprintf(&b, "\n\n%s", cli.FormatError(fmt.Sprintf("%d failed", len(failed))))
		for _, f := range failed {
			fmt.Fprintf(&b, "\n  • %s", f)
		}
	}
	return b.String()
}
