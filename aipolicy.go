package fakturaextrakt

// EvaluateAIPolicy is the AI policy gate: a pure function of
// the extraction source, the page's text quality, the validation
// outcome, the already-decided EDI-likeness, the profile's
// AIPolicyConfig, and whether a deterministic fallback attempt was made
// and whether it passed. Rules are evaluated in a fixed order and the
// first one that applies decides the outcome — later rules never
// override an earlier decision, and the flag it records names exactly
// which rule fired rather than collapsing them into an opaque score.
//
// The Compare Path calls this exactly once, on the adopted candidate,
// with the same inputs the normal path would have produced for that
// candidate: same function, same inputs, same output, regardless of
// which path produced the inputs.
func EvaluateAIPolicy(textLayerUsed bool, textQuality float64, v ValidationResult, ediLike bool, sig EDISignals, cfg AIPolicyConfig, fallbackAttempted, fallbackPassed bool) AIPolicyDecision {
	decision := AIPolicyDecision{
		EDILike:       ediLike,
		EDISignals:    sig,
		PolicyVersion: PolicyVersion,
	}

	// Rule 1: a clean validation never needs AI.
	if v.Status == StatusOK {
		decision.AllowAI = false
		decision.ReasonFlags = []string{ReasonValidationOK}
		return decision
	}

	// Rule 2: EDI-like documents are precise by construction; an AI guess
	// on top of EDI-accurate fields is more likely to introduce error
	// than correct one, so AI is blocked when the profile says so. A
	// failing validation on an EDI-like document is escalated to REVIEW
	// by the caller checking the profile's ForceReviewOnEDIFail (this
	// decision records it as the force_review flag), rather than the gate
	// mutating a ValidationResult it doesn't own.
	if ediLike && !cfg.AllowAIForEDI {
		decision.AllowAI = false
		decision.ReasonFlags = []string{ReasonEDILikeBlocked}
		if v.Status != StatusOK && cfg.ForceReviewOnEDIFail {
			decision.ReasonFlags = append(decision.ReasonFlags, ReasonForceReview)
		}
		return decision
	}

	// Rule 3: a deterministic fallback attempt that already reconciled
	// the invoice means AI was never needed.
	if fallbackAttempted && fallbackPassed {
		decision.AllowAI = false
		decision.ReasonFlags = []string{ReasonFallbackOK}
		return decision
	}

	// Rule 4: low text quality on a text-layer extraction means the
	// tokens themselves are unreliable, not just the parse of them —
	// consulting AI can still help here, because the failure mode is
	// upstream of deterministic parsing logic entirely.
	if textLayerUsed && textQuality < cfg.MinTextQuality {
		decision.AllowAI = true
		decision.ReasonFlags = []string{ReasonLowTextQuality}
		if fallbackAttempted && !fallbackPassed {
			decision.ReasonFlags = append(decision.ReasonFlags, ReasonFallbackFailed)
		}
		return decision
	}

	// Rule 5: critical fields are still missing after every deterministic
	// stage (including fallback) ran — the expected trigger for AI
	// assistance, the common case AI exists for.
	if v.Status == StatusFailed || v.Status == StatusReview {
		decision.AllowAI = true
		decision.ReasonFlags = []string{ReasonMissingCriticalFields}
		if fallbackAttempted && !fallbackPassed {
			decision.ReasonFlags = append(decision.ReasonFlags, ReasonFallbackFailed)
		}
		return decision
	}

	// Rule 6: default — nothing above triggered AI.
	decision.AllowAI = false
	decision.ReasonFlags = []string{ReasonNoTrigger}
	return decision
}
