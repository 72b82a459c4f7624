package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kvitto/fakturaextrakt/calibration"
	"github.com/kvitto/fakturaextrakt/calibration/pgstore"
	"github.com/spf13/cobra"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fit and evaluate confidence calibration models from labeled samples",
}

var calibrateFitCmd = &cobra.Command{
	Use:   "fit <field> <samples.json>",
	Short: "Fit an isotonic calibration model for one header field",
	Long: `fit reads a JSON array of {"raw_confidence": float, "correct": bool} samples
and fits an isotonic-regression calibration model for the named field
(e.g. total_amount, supplier), printing the fitted breakpoints/values as
JSON. Pass --database-url to persist the result via calibration/pgstore
instead of printing it.`,
	Example: `  fakturaextrakt calibrate fit total_amount samples.json
  fakturaextrakt calibrate fit total_amount samples.json --database-url postgres://...`,
	Args: cobra.ExactArgs(2),
	RunE: runCalibrateFit,
}

var calibrateEvaluateCmd = &cobra.Command{
	Use:   "evaluate <field> <samples.json>",
	Short: "Report reliability (ECE/MCE) of a fitted model against held-out samples",
	Args:  cobra.ExactArgs(2),
	RunE:  runCalibrateEvaluate,
}

var databaseURL string
var evaluateBins int

func init() {
	rootCmd.AddCommand(calibrateCmd)
	calibrateCmd.AddCommand(calibrateFitCmd)
	calibrateCmd.AddCommand(calibrateEvaluateCmd)

	calibrateFitCmd.Flags().StringVar(&databaseURL, "database-url", "", "persist the fitted model to Postgres instead of printing it")
	calibrateEvaluateCmd.Flags().IntVar(&evaluateBins, "bins", 10, "number of equal-frequency reliability bins")
}

// sampleRow is the on-disk JSON shape for a labeled calibration sample,
// deliberately distinct from calibration.Sample (an unexported-field-free
// wire format the core package's own Sample doesn't need to carry).
type sampleRow struct {
	RawConfidence float64 `json:"raw_confidence"`
	Correct       bool    `json:"correct"`
}

func readSamples(path string) ([]calibration.Sample, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading samples file %s: %w", path, err)
	}
	var rows []sampleRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("parsing samples file %s: %w", path, err)
	}
	samples := make([]calibration.Sample, len(rows))
	for i, r := range rows {
		samples[i] = calibration.Sample{RawConfidence: r.RawConfidence, Correct: r.Correct}
	}
	return samples, nil
}

type modelOutput struct {
	Field       string    `json:"field"`
	Breakpoints []float64 `json:"breakpoints"`
	Values      []float64 `json:"values"`
	SampleCount int       `json:"sample_count"`
}

func runCalibrateFit(cmd *cobra.Command, args []string) error {
	field, samplesPath := args[0], args[1]

	samples, err := readSamples(samplesPath)
	if err != nil {
		lastExitCode = exitError
		return err
	}
	if len(samples) == 0 {
		lastExitCode = exitError
		return fmt.Errorf("%s contains no samples", samplesPath)
	}

	model := calibration.Fit(samples)

	if databaseURL != "" {
		ctx, cancel := commandContext(defaultCommandTimeout, logger)
		defer cancel()
		if err := persistModel(ctx, field, model); err != nil {
			lastExitCode = exitError
			return err
		}
		logger.Info().Str("field", field).Int("samples", len(samples)).Msg("persisted calibration model")
		lastExitCode = exitOK
		return nil
	}

	out := modelOutput{
		Field:       field,
		Breakpoints: model.Breakpoints(),
		Values:      model.Values(),
		SampleCount: len(samples),
	}
	if err := outputJSON(out); err != nil {
		lastExitCode = exitError
		return fmt.Errorf("encoding model JSON: %w", err)
	}
	lastExitCode = exitOK
	return nil
}

func persistModel(ctx context.Context, field string, model *calibration.Model) error {
	store, err := pgstore.Open(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("opening calibration store: %w", err)
	}
	defer store.Close()
	return store.Save(ctx, field, model)
}

type reliabilityOutput struct {
	Field string                       `json:"field"`
	ECE   float64                      `json:"ece"`
	MCE   float64                      `json:"mce"`
	Bins  []calibration.ReliabilityBin `json:"bins"`
}

func runCalibrateEvaluate(cmd *cobra.Command, args []string) error {
	field, samplesPath := args[0], args[1]

	samples, err := readSamples(samplesPath)
	if err != nil {
		lastExitCode = exitError
		return err
	}

	model := calibration.Fit(samples)
	report := calibration.Evaluate(model, samples, evaluateBins)

	out := reliabilityOutput{Field: field, ECE: report.ECE, MCE: report.MCE, Bins: report.Bins}

	if jsonOutput {
		if err := outputJSON(out); err != nil {
			lastExitCode = exitError
			return fmt.Errorf("encoding reliability report: %w", err)
		}
	} else {
		fmt.Printf("field=%s samples=%d ece=%.4f mce=%.4f\n", field, len(samples), report.ECE, report.MCE)
		for i, b := range report.Bins {
			fmt.Printf("  bin %d: predicted=%.3f observed=%.3f n=%d\n", i, b.MeanPredicted, b.MeanObserved, b.Count)
		}
	}

	if calibration.SuggestRecalibration(report, len(samples)) {
		threshold := calibration.RecalibrationThreshold(len(samples))
		logger.Warn().Str("field", field).Float64("ece", report.ECE).Float64("threshold", threshold).Msg("recalibration suggested")
		lastExitCode = exitReview
		return nil
	}
	lastExitCode = exitOK
	return nil
}
