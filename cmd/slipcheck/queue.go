package main

import (
	"fmt"
	"strings"

	"github.com/Veraticus/slipcheck/internal/cli"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/spf13/cobra"
)

func queueCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Work the human review queue",
		Long: `List payments waiting on a reviewer and record approve/reject verdicts.

Every verdict is learned: approvals build trust in the recipient, rejections erode it.`,
	}

	cmd.AddCommand(queueListCmd())
	cmd.AddCommand(queueApproveCmd())
	cmd.AddCommand(queueRejectCmd())
	return cmd
}

func queueListCmd() *cobra.Command {
	var (
		tenant string
		status string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queued payments, highest priority first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := model.ReviewFilter{
				TenantID: tenant,
				Status:   model.ReviewStatus(strings.ToLower(status)),
				Limit:    limit,
			}
			switch filter.Status {
			case model.ReviewPending, model.ReviewApproved, model.ReviewRejected:
			default:
				return fmt.Errorf("invalid status %q: expected pending, approved or rejected", status)
			}

			ctx := cmd.Context()
			a, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			entries, err := a.store.ListReviews(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list reviews: %w", err)
			}
			fmt.Println(cli.RenderQueue(entries)) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "only show this tenant")
	cmd.Flags().StringVar(&status, "status", string(model.ReviewPending), "entry status (pending, approved, rejected)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum entries to show")
	return cmd
}

func queueApproveCmd() *cobra.Command {
	var (
		reviewer  string
		recipient string
		account   string
		amount    string
		currency  string
	)

	cmd := &cobra.Command{
		Use:   "approve <queue-id>",
		Short: "Approve a queued payment, optionally correcting what was read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var corrections *model.Corrections
			if recipient != "" || account != "" || amount != "" || currency != "" {
				amt, err := parseExpectedAmount(amount)
				if err != nil {
					return err
				}
				corrections = &model.Corrections{
					RecipientName: recipient,
					AccountNumber: account,
					Amount:        amt,
					Currency:      strings.ToUpper(currency),
				}
			}

			ctx := cmd.Context()
			a, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.coordinator.ApproveFromQueue(ctx, args[0], reviewer, corrections)
			if err != nil {
				return resolutionError(ok, args[0], "approve", err)
			}
			return reportResolution(ok, args[0], "approved")
		},
	}

	cmd.Flags().StringVar(&reviewer, "by", "", "reviewer name (required)")
	cmd.Flags().StringVar(&recipient, "recipient", "", "corrected recipient name")
	cmd.Flags().StringVar(&account, "account", "", "corrected account number")
	cmd.Flags().StringVar(&amount, "amount", "", "corrected amount")
	cmd.Flags().StringVar(&currency, "currency", "", "corrected currency")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

func queueRejectCmd() *cobra.Command {
	var (
		reviewer string
		reason   string
	)

	cmd := &cobra.Command{
		Use:   "reject <queue-id>",
		Short: "Reject a queued payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ok, err := a.coordinator.RejectFromQueue(ctx, args[0], reviewer, reason)
			if err != nil {
				return resolutionError(ok, args[0], "reject", err)
			}
			return reportResolution(ok, args[0], "rejected")
		},
	}

	cmd.Flags().StringVar(&reviewer, "by", "", "reviewer name (required)")
	cmd.Flags().StringVar(&reason, "reason", "", "why the payment was rejected")
	_ = cmd.MarkFlagRequired("by")
	return cmd
}

// resolutionError tells the reviewer a recorded verdict can be finished by
// running the same command again.
func resolutionError(recorded bool, queueID, verb string, err error) error {
	if recorded {
		return fmt.Errorf("verdict for %s was recorded but not fully applied, run the same %s again to finish: %w", queueID, verb, err)
	}
	return fmt.Errorf("failed to %s: %w", verb, err)
}

func reportResolution(ok bool, queueID, verb string) error {
	if !ok {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Queue entry %s does not exist or was already resolved", queueID))) //nolint:forbidigo // User-facing output
		return nil
	}
	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Payment %s %s", queueID, verb))) //nolint:forbidigo // User-facing output
	return nil
}
