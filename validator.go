package fakturaextrakt

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Validate reconciles extracted lines against the declared total and
// checks critical-field presence, deriving a ValidationStatus: sum the
// lines, compare against the declared total within tolerance, and record
// every discrepancy as a human-readable string rather than a boolean.
func Validate(h InvoiceHeader, lines []InvoiceLine, profile Profile) ValidationResult {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(l.LineTotal)
	}

	result := ValidationResult{LinesSum: sum}

	// Reconciliation: |diff| <= max(EpsAbs, EpsRel*declared_total).
	// Declared total entirely absent is not
	// itself a reconciliation failure — it just means nothing was
	// compared; a missing total is handled below as a critical field.
	reconciled := true
	if h.TotalAmount != nil {
		result.DeclaredTotal = h.TotalAmount
		result.Diff = sum.Sub(*h.TotalAmount).Abs()
		threshold := decimal.NewFromFloat(profile.Validation.EpsAbs)
		relThreshold := h.TotalAmount.Abs().Mul(decimal.NewFromFloat(profile.Validation.EpsRel))
		if relThreshold.GreaterThan(threshold) {
			threshold = relThreshold
		}
		reconciled = result.Diff.LessThanOrEqual(threshold)
		if !reconciled {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"lines sum %s does not reconcile with declared total %s (diff %s)",
				sum, h.TotalAmount, result.Diff))
		}
	} else {
		result.Warnings = append(result.Warnings, "no declared total found; reconciliation skipped")
	}

	// Critical-field presence and confidence. The declared total is
	// treated specially: its absence was already recorded as a warning
	// above, and degrades OK to PARTIAL, not REVIEW/FAILED by itself.
	var missingNonTotal []string
	var lowConfidenceCritical []string
	for _, field := range profile.AIPolicy.CriticalFields {
		c := h.Confidence(field)
		present := c > 0 || (field == HeaderFieldTotalAmount && h.TotalAmount != nil)
		if !present {
			if field != HeaderFieldTotalAmount {
				missingNonTotal = append(missingNonTotal, field)
			}
			continue
		}
		// A declared total the lines reconcile against is corroborated by
		// an independent source; its extraction confidence no longer
		// decides review on its own.
		if field == HeaderFieldTotalAmount && reconciled && h.TotalAmount != nil {
			continue
		}
		if c > 0 && c < 0.80 {
			lowConfidenceCritical = append(lowConfidenceCritical, field)
		}
	}
	for _, m := range missingNonTotal {
		result.Errors = append(result.Errors, "missing critical field: "+m)
	}
	for _, f := range lowConfidenceCritical {
		result.Warnings = append(result.Warnings, "critical field has low confidence: "+f)
	}

	for _, l := range lines {
		if l.Confidence < 0.5 {
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"line %q has low confidence (%.2f); quantity*price*(1-discount) did not match its total", l.Description, l.Confidence))
		}
	}

	linesUnparseable := len(lines) == 0

	switch {
	case linesUnparseable && h.TotalAmount == nil:
		// Nothing to reconcile and nothing to report — unrecoverable.
		result.Status = StatusFailed
	case len(missingNonTotal) > 0:
		// A critical field other than the total is simply absent: there
		// is no value to be low-confidence about, so this is the most
		// severe case short of total data loss.
		result.Status = StatusFailed
	case linesUnparseable:
		result.Warnings = append(result.Warnings, "no line items extracted")
		result.Status = StatusFailed
	case !reconciled:
		result.Status = StatusReview
	case len(lowConfidenceCritical) > 0:
		result.Status = StatusReview
	case len(result.Warnings) > 0:
		result.Status = StatusPartial
	default:
		result.Status = StatusOK
	}

	return result
}
