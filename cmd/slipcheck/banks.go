package main

import (
	"fmt"
	"io"
	"os"

	"github.com/Veraticus/slipcheck/internal/bankformat"
	"github.com/Veraticus/slipcheck/internal/cli"
	"github.com/Veraticus/slipcheck/internal/config"
	"github.com/Veraticus/slipcheck/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func banksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "banks",
		Short: "Inspect the bank receipt templates",
	}
	cmd.AddCommand(banksListCmd())
	cmd.AddCommand(banksDetectCmd())
	return cmd
}

func loadRecognizer() (*bankformat.Recognizer, error) {
	var opts []bankformat.Option
	if c := viper.GetString("verification.local_currency"); c != "" {
		opts = append(opts, bankformat.WithLocalCurrency(c))
	}
	return bankformat.Default(opts...)
}

func banksListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List supported banks",
		RunE: func(_ *cobra.Command, _ []string) error {
			r, err := loadRecognizer()
			if err != nil {
				return err
			}
			fmt.Println(cli.RenderBanks(r.Templates())) //nolint:forbidigo // User-facing output
			return nil
		},
	}
}

func banksDetectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect [text-file]",
		Short: "Detect the bank of a receipt text and show what its template extracts",
		Long: `Run bank detection and template extraction on OCR text, without touching
the database. Reads standard input when no file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				data []byte
				err  error
			)
			if len(args) == 1 {
				data, err = os.ReadFile(config.ExpandPath(args[0]))
			} else {
				data, err = io.ReadAll(cmd.InOrStdin())
			}
			if err != nil {
				return fmt.Errorf("failed to read receipt text: %w", err)
			}

			r, err := loadRecognizer()
			if err != nil {
				return err
			}
			text := string(data)
			fmt.Println(cli.RenderBankScores(r.Scores(text))) //nolint:forbidigo // User-facing output

			result := r.Recognize(text)
			fmt.Println(cli.RenderDecision(&model.VerificationDecision{ //nolint:forbidigo // User-facing output
				ID:         "(dry run)",
				Status:     extractionStatus(result),
				Reason:     string(result.Source),
				Confidence: result.Confidence,
				Extraction: result,
				Breakdown:  model.ConfidenceBreakdown{Bank: result.Confidence},
			}))
			return nil
		},
	}
}

func extractionStatus(r model.ExtractionResult) model.DecisionStatus {
	if r.Success {
		return model.StatusAutoVerified
	}
	return model.StatusManualReviewRequired
}
