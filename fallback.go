package fakturaextrakt

// RunFallback retries line/header extraction using the configured
// FallbackStrategy order, stopping as soon as one attempt reaches
// profile.Fallback.TargetConfidence: the first result reaching target
// confidence wins. It runs strictly before any AI consultation;
// deterministic strategies must be exhausted first. Returns the best
// attempt's header, lines and validation result, plus the strategy that
// produced it (empty string if the original extraction already reached
// target confidence and no fallback ran).
func RunFallback(p Page, h InvoiceHeader, lines []InvoiceLine, profile Profile) (InvoiceHeader, []InvoiceLine, ValidationResult, FallbackStrategy) {
	result := Validate(h, lines, profile)
	if reachesTarget(result, h, profile) {
		return h, lines, result, ""
	}

	attempts := profile.Fallback.Strategies
	if len(attempts) > profile.Fallback.MaxAttempts {
		attempts = attempts[:profile.Fallback.MaxAttempts]
	}

	bestHeader, bestLines, bestResult := h, lines, result
	var bestStrategy FallbackStrategy

	for _, strategy := range attempts {
		candLines := attemptWithStrategy(p, strategy)
		if candLines == nil {
			continue
		}
		candResult := Validate(h, candLines, profile)
		if reachesTarget(candResult, h, profile) {
			return h, candLines, candResult, strategy
		}
		if betterValidation(candResult, bestResult) {
			bestHeader, bestLines, bestResult, bestStrategy = h, candLines, candResult, strategy
		}
	}

	return bestHeader, bestLines, bestResult, bestStrategy
}

// reachesTarget reports whether a candidate's validation status and
// extraction confidence both clear the bar for the Deterministic
// Fallback to accept it outright. A non-OK status is never
// accepted regardless of confidence — target_confidence decides between
// otherwise-reconciled candidates, it doesn't override reconciliation.
func reachesTarget(v ValidationResult, h InvoiceHeader, profile Profile) bool {
	if v.Status != StatusOK {
		return false
	}
	return attemptConfidence(h, profile) >= profile.Fallback.TargetConfidence
}

// attemptConfidence is the mean confidence across the profile's critical
// header fields, the [0,1] score RunFallback compares against
// profile.Fallback.TargetConfidence. A declared total with no recorded
// field confidence is treated as confidence 1.0 when present, matching
// Validate's own "present" check (validator.go) rather than penalizing a
// header that never bothered to record one. Line-level fit is already
// gated by reconciliation (the StatusOK check in reachesTarget), so it is
// not double-counted here.
func attemptConfidence(h InvoiceHeader, profile Profile) float64 {
	var sum float64
	var n int
	for _, field := range profile.AIPolicy.CriticalFields {
		c := h.Confidence(field)
		if c == 0 && field == HeaderFieldTotalAmount && h.TotalAmount != nil {
			c = 1.0
		}
		sum += c
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// attemptWithStrategy maps a FallbackStrategy onto the line-extraction
// behavior it names: widened column-cluster tolerance, short-row
// merging, or loose number parsing. Each strategy changes exactly one
// behavior so a winning attempt identifies which relaxation fixed the
// table.
func attemptWithStrategy(p Page, strategy FallbackStrategy) []InvoiceLine {
	var opts LineExtractionOptions
	switch strategy {
	case StrategyRelaxedColumns:
		opts.WidenColumnTolerance = true
	case StrategyMergeWrappedRows:
		opts.MergeShortRows = true
	case StrategyLooseNumberFormat:
		opts.LooseNumbers = true
	default:
		return nil
	}
	lines, _ := ExtractLines(p, opts)
	return lines
}

// betterValidation orders ValidationStatus OK > PARTIAL > REVIEW > FAILED
// and prefers fewer errors as a tie-breaker.
func betterValidation(a, b ValidationResult) bool {
	rank := func(s ValidationStatus) int {
		switch s {
		case StatusOK:
			return 3
		case StatusPartial:
			return 2
		case StatusReview:
			return 1
		default:
			return 0
		}
	}
	if rank(a.Status) != rank(b.Status) {
		return rank(a.Status) > rank(b.Status)
	}
	return len(a.Errors) < len(b.Errors)
}
