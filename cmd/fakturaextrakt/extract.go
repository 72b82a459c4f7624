package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var extractCmd = &cobra.Command{
	Use:   "extract <pdf-file>",
	Short: "Run the full extraction pipeline over a PDF and print its invoice results",
	Long: `extract loads a PDF, detects invoice boundaries, extracts each invoice's
header and line items, reconciles totals, runs the deterministic fallback and
AI policy gate, and prints one InvoiceResult per detected invoice.`,
	Example: `  fakturaextrakt extract invoice.pdf
  fakturaextrakt extract --json invoice.pdf > result.json
  fakturaextrakt extract --profile ./profile.yaml invoice.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	path := args[0]
	if _, err := validatePDFPath(path); err != nil {
		lastExitCode = exitError
		return err
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		lastExitCode = exitError
		return fmt.Errorf("reading %s: %w", path, err)
	}

	profile, err := loadRunProfile()
	if err != nil {
		lastExitCode = exitError
		return err
	}

	ctx, cancel := commandContext(defaultCommandTimeout, logger)
	defer cancel()

	results, err := extractionCore(ctx, raw, profile)
	if err != nil {
		lastExitCode = exitError
		return err
	}

	if jsonOutput {
		if err := outputJSON(results); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
	} else {
		outputText(results)
	}

	lastExitCode = worstStatus(results)
	return nil
}
