package main

import (
	"fmt"

	"github.com/Veraticus/slipcheck/internal/cli"
	"github.com/spf13/cobra"
)

func statsCmd() *cobra.Command {
	var tenant string

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show what slipcheck has learned for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.coordinator.GetLearningStatistics(ctx, tenant)
			if err != nil {
				return fmt.Errorf("failed to load statistics: %w", err)
			}
			fmt.Println(cli.RenderStats(stats)) //nolint:forbidigo // User-facing output
			return nil
		},
	}

	cmd.Flags().StringVar(&tenant, "tenant", "", "tenant id (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Forget recipient patterns not seen within the retention window",
		Long: `Remove learned recipient patterns whose last sighting is older than
verification.retention_days (default 90). Customers left with no patterns are
removed too.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := initApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.coordinator.SweepPatterns(ctx)
			if err != nil {
				return err
			}
			fmt.Println(cli.FormatSuccess(fmt.Sprintf("Removed %d patterns and %d customers older than %d days", //nolint:forbidigo // User-facing output
				result.PatternsRemoved, result.CustomersRemoved, a.coordinator.Config().RetentionDays)))
			return nil
		},
	}
}
