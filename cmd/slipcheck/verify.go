package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Veraticus/slipcheck/internal/cli"
	"github.com/Veraticus/slipcheck/internal/config"
	"github.com/Veraticus/slipcheck/internal/engine"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/spf13/cobra"
)

func verifyCmd() *cobra.Command {
	var (
		flags    invoiceFlags
		image    string
		text     string
		textFile string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify one payment screenshot against an invoice",
		Long: `Read a payment screenshot (or its OCR text), compare it with the invoice
expectations and print the decision.

Auto-verified payments mark the invoice as paid and teach slipcheck the
recipient. Uncertain payments are queued for review.`,
		Example: `  slipcheck verify --image receipt.png --tenant shop-1 --customer c-42 \
    --invoice INV-1001 --amount 100000 --currency KHR --recipient "TEST MERCHANT"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if textFile != "" {
				data, err := os.ReadFile(config.ExpandPath(textFile))
				if err != nil {
					return fmt.Errorf("failed to read text file: %w", err)
				}
				text = string(data)
			}
			entry := manifestEntry{
				Image:        image,
				Text:         text,
				Tenant:       flags.tenant,
				Customer:     flags.customer,
				CustomerName: flags.customerName,
				Invoice:      flags.invoice,
				Amount:       flags.amount,
				Currency:     flags.currency,
				Recipient:    flags.recipient,
				Account:      flags.account,
			}
			if entry.Image == "" && strings.TrimSpace(entry.Text) == "" {
				return fmt.Errorf("one of --image, --text or --text-file is required")
			}
			if entry.Image != "" {
				entry.Image = config.ExpandPath(entry.Image)
			}
			req, err := entry.request()
			if err != nil {
				return err
			}
			return runVerify(cmd, req, asJSON)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&image, "image", "", "payment screenshot to send to OCR")
	cmd.Flags().StringVar(&text, "text", "", "receipt text already read by OCR")
	cmd.Flags().StringVar(&textFile, "text-file", "", "file holding receipt text")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the decision as JSON")
	for _, name := range []string{"tenant", "customer", "invoice"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runVerify(cmd *cobra.Command, req engine.VerifyRequest, asJSON bool) error {
	ctx := cmd.Context()
	a, err := initApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	verified, err := a.store.IsInvoiceVerified(ctx, req.TenantID, req.InvoiceID)
	if err != nil {
		return fmt.Errorf("failed to check invoice: %w", err)
	}
	if verified {
		fmt.Println(cli.FormatInfo(fmt.Sprintf("Invoice %s is already verified", req.InvoiceID))) //nolint:forbidigo // User-facing output
		return nil
	}

	decision, err := a.coordinator.VerifyPayment(ctx, req)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}
	return printDecision(decision, asJSON)
}

func printDecision(decision *model.VerificationDecision, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(decision)
	}
	fmt.Println(cli.RenderDecision(decision)) //nolint:forbidigo // User-facing output
	return nil
}
