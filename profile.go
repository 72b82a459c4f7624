package fakturaextrakt

import (
	"github.com/kvitto/fakturaextrakt/calibration"
	"github.com/rs/zerolog"
)

// FallbackStrategy names one alternate parsing strategy the Deterministic
// Fallback may try, in order, before any AI consultation.
type FallbackStrategy string

const (
	// StrategyRelaxedColumns widens column-boundary tolerance when the
	// header anchors disagree with the item rows' X positions.
	StrategyRelaxedColumns FallbackStrategy = "relaxed_columns"
	// StrategyMergeWrappedRows re-runs line extraction treating any row
	// without a leading quantity/price as a continuation of the prior row.
	StrategyMergeWrappedRows FallbackStrategy = "merge_wrapped_rows"
	// StrategyLooseNumberFormat retries number normalization accepting
	// ambiguous thousands/decimal separators the strict pass rejected.
	StrategyLooseNumberFormat FallbackStrategy = "loose_number_format"
)

// DefaultFallbackStrategies is the order StrategyRelaxedColumns,
// StrategyMergeWrappedRows, StrategyLooseNumberFormat are attempted in,
// matching the order column layout, row structure and number format
// errors are discovered during line extraction.
var DefaultFallbackStrategies = []FallbackStrategy{
	StrategyRelaxedColumns,
	StrategyMergeWrappedRows,
	StrategyLooseNumberFormat,
}

// FallbackConfig bounds the Deterministic Fallback's retry loop.
type FallbackConfig struct {
	MaxAttempts int
	Strategies  []FallbackStrategy
	// TargetConfidence is the score a candidate must reach for the
	// Deterministic Fallback to accept it without trying further
	// strategies. Default 0.90.
	TargetConfidence float64
}

// AIPolicyConfig tunes the thresholds EvaluateAIPolicy applies.
// AllowAIForEDI defaults to false: EDI-origin invoices are
// expected to parse deterministically, so an AI guess on top of them is
// more likely to introduce error than correct one. ForceReviewOnEDIFail
// escalates an EDI-blocked, non-OK validation to REVIEW so it still
// surfaces to a human instead of silently staying at whatever status
// Validate produced.
type AIPolicyConfig struct {
	MinTextQuality       float64
	CriticalFields       []string
	AllowAIForEDI        bool
	ForceReviewOnEDIFail bool
}

// EDIAnchorRules configures EvaluateEDISignals: required/extra label
// anchors, the minimum number of them that must match for the document
// to count as EDI-like, and the minimum number of table-pattern rows.
type EDIAnchorRules struct {
	Required      []string
	Extra         []string
	TablePatterns []string
	MinSignals    int
	MinTableRows  int
}

// ValidationConfig holds the Validator's reconciliation tolerances:
// lines reconcile when |diff| <= max(EpsAbs, EpsRel*declared_total).
type ValidationConfig struct {
	EpsAbs float64
	EpsRel float64
}

// BoundaryWeights are the relative weights the Boundary Detector's scoring
// step applies to its three signals. The defaults were chosen because
// label proximity is the most discriminative
// signal on Swedish layouts, with header-position and character
// plausibility as weaker tie-breakers.
type BoundaryWeights struct {
	LabelProximity   float64
	PositionInHeader float64
	CharPlausibility float64
}

// DefaultBoundaryWeights is the calibrated default.
var DefaultBoundaryWeights = BoundaryWeights{
	LabelProximity:   0.4,
	PositionInHeader: 0.3,
	CharPlausibility: 0.3,
}

// CalibrationConfig controls whether and how the Confidence Calibration
// stage adjusts raw confidences.
type CalibrationConfig struct {
	Enabled  bool
	Registry calibration.Registry
}

// CompareConfig controls whether the Compare Path runs in addition to
// the primary single-source extraction.
type CompareConfig struct {
	Enabled bool
}

// LoaderConfig holds the PDF Loader's text-layer-usability thresholds: a
// page's text layer counts as used (TextLayerUsed) only when its token
// count meets MinTokens. A page whose text layer is not used, or whose
// TextQuality is below MinTextQuality, is marked RequiresOCR; a low
// TextQuality alone does not clear TextLayerUsed.
type LoaderConfig struct {
	MinTokens      int
	MinTextQuality float64
}

// Profile is the caller-constructed configuration value threaded through
// every pipeline stage. There is no package-level default profile held as
// a hidden singleton; DefaultProfile builds one explicitly.
type Profile struct {
	AIPolicy      AIPolicyConfig
	EDIAnchors    EDIAnchorRules
	Validation    ValidationConfig
	Fallback      FallbackConfig
	Boundary      BoundaryWeights
	Calibration   CalibrationConfig
	Compare       CompareConfig
	Loader        LoaderConfig
	// InvokeOCR is a caller-supplied OCR hook carried on the profile. The
	// core never calls it: Load only marks a page RequiresOCR and keeps
	// whatever tokens its text layer gave, so acting on such pages is left
	// to the caller.
	InvokeOCR func(pageImage []byte) ([]Token, error)
	Logger    zerolog.Logger
}

// DefaultProfile returns a Profile with the documented defaults: 50%
// minimum text quality to allow AI, the four critical header fields,
// 0.01 absolute / 0.005 relative reconciliation tolerance, two minimum
// EDI signals, the default fallback strategy order, and a fallback
// target confidence of 0.90.
func DefaultProfile() Profile {
	return Profile{
		AIPolicy: AIPolicyConfig{
			MinTextQuality:       0.5,
			CriticalFields:       []string{HeaderFieldInvoiceNumber, HeaderFieldSupplier, HeaderFieldDate, HeaderFieldTotalAmount},
			AllowAIForEDI:        false,
			ForceReviewOnEDIFail: true,
		},
		EDIAnchors: EDIAnchorRules{
			Required:      DefaultEDIRequiredAnchors,
			Extra:         DefaultEDIExtraAnchors,
			TablePatterns: DefaultEDITablePatternNames,
			MinSignals:    2,
			MinTableRows:  1,
		},
		Validation: ValidationConfig{
			EpsAbs: 0.01,
			EpsRel: 0.005,
		},
		Fallback: FallbackConfig{
			MaxAttempts:      len(DefaultFallbackStrategies),
			Strategies:       DefaultFallbackStrategies,
			TargetConfidence: 0.90,
		},
		Boundary: DefaultBoundaryWeights,
		Loader: LoaderConfig{
			MinTokens:      5,
			MinTextQuality: 0.5,
		},
		Calibration: CalibrationConfig{
			Enabled: false,
		},
		Logger: zerolog.Nop(),
	}
}
