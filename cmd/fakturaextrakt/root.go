package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Exit codes: distinct codes for review-needed and outright-failed
// results let shell pipelines branch on the outcome without parsing
// output.
const (
	exitOK         = 0 // invoice(s) extracted and reconciled cleanly
	exitReview     = 1 // at least one invoice needs human review
	exitViolations = 2 // at least one invoice failed validation outright
	exitError      = 3 // could not run at all (bad file, bad flags, ...)
)

var (
	profilePath string
	jsonOutput  bool
	verbose     bool
	logger      zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:     "fakturaextrakt",
	Short:   "Extract structured data from Swedish PDF invoices",
	Long:    `fakturaextrakt runs the PDF extraction pipeline over one or more Swedish invoices, detecting invoice boundaries, normalizing amounts, reconciling totals, and optionally escalating low-confidence fields to an AI provider.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := zerolog.InfoLevel
		if verbose {
			level = zerolog.DebugLevel
		}
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(level).
			With().Timestamp().Logger()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&profilePath, "profile", "", "path to a YAML profile config (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit JSON instead of a text summary")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitError
	}
	return lastExitCode
}

// lastExitCode lets a RunE handler communicate a non-error exit code
// (exitReview, exitViolations) back to Execute, since cobra's RunE only
// distinguishes "error" from "success".
var lastExitCode = exitOK
