package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <pdf-file>",
	Short: "Extract a PDF's invoices and report their reconciliation status",
	Long: `validate runs the same pipeline as extract but summarizes each invoice
down to its reconciliation status, errors and warnings.`,
	Example: `  fakturaextrakt validate invoice.pdf
  fakturaextrakt validate --json invoice.pdf`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateOutput is the JSON shape for `validate --json`: the source
// file plus one summary entry per detected invoice group.
type validateOutput struct {
	File     string           `json:"file"`
	Invoices []invoiceSummary `json:"invoices"`
}

type invoiceSummary struct {
	InvoiceNumber string   `json:"invoice_number,omitempty"`
	Supplier      string   `json:"supplier,omitempty"`
	Status        string   `json:"status"`
	Errors        []string `json:"errors,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	MethodUsed    string   `json:"method_used"`
}

func runValidate(cmd *cobra.Command, args []string) error {
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

	out := validateOutput{File: path}
	for _, r := range results {
		out.Invoices = append(out.Invoices, invoiceSummary{
			InvoiceNumber: r.Header.InvoiceNumber,
			Supplier:      r.Header.Supplier,
			Status:        r.Validation.Status.String(),
			Errors:        r.Validation.Errors,
			Warnings:      r.Validation.Warnings,
			MethodUsed:    r.ExtractionDetail.MethodUsed,
		})
	}

	if jsonOutput {
		if err := outputJSON(out); err != nil {
			return fmt.Errorf("encoding JSON output: %w", err)
		}
	} else {
		outputText(results)
	}

	lastExitCode = worstStatus(results)
	return nil
}
