package fakturaextrakt

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestBetterValidationRanksStatusOrder(t *testing.T) {
	ok := ValidationResult{Status: StatusOK}
	partial := ValidationResult{Status: StatusPartial}
	review := ValidationResult{Status: StatusReview}
	failed := ValidationResult{Status: StatusFailed}

	if !betterValidation(ok, partial) {
		t.Errorf("OK should rank better than PARTIAL")
	}
	if !betterValidation(partial, review) {
		t.Errorf("PARTIAL should rank better than REVIEW")
	}
	if !betterValidation(review, failed) {
		t.Errorf("REVIEW should rank better than FAILED")
	}
	if betterValidation(failed, ok) {
		t.Errorf("FAILED should never rank better than OK")
	}
}

func TestBetterValidationTiesOnFewerErrors(t *testing.T) {
	fewer := ValidationResult{Status: StatusReview, Errors: []string{"one"}}
	more := ValidationResult{Status: StatusReview, Errors: []string{"one", "two"}}

	if !betterValidation(fewer, more) {
		t.Errorf("expected fewer errors to rank better at the same status")
	}
	if betterValidation(more, fewer) {
		t.Errorf("expected more errors to not rank better at the same status")
	}
}

// TestRunFallbackSkipsWhenAlreadyReconciled: a deterministic result that
// already validates OK never triggers a fallback attempt at all.
func TestRunFallbackSkipsWhenAlreadyReconciled(t *testing.T) {
	total := decimal.RequireFromString("30.00")
	h := confidentHeader(&total)
	p := itemsPage(rowOf("Widget", "A", "3", "10,00", "30,00"))
	lines, _ := ExtractLines(p, LineExtractionOptions{})

	_, _, result, strategy := RunFallback(p, h, lines, DefaultProfile())

	if strategy != "" {
		t.Errorf("strategy = %q, want empty (no fallback attempt) when already OK", strategy)
	}
	if result.Status != StatusOK {
		t.Errorf("Status = %s, want OK", result.Status)
	}
}

// TestRunFallbackReturnsEmptyStrategyWhenNoAttemptImproves ensures that if
// every fallback strategy's re-extraction fails to reconcile any better
// than the original, RunFallback reports no winning strategy rather than
// claiming credit for a non-improvement.
func TestRunFallbackReturnsEmptyStrategyWhenNoAttemptImproves(t *testing.T) {
	total := decimal.RequireFromString("5000.00")
	h := confidentHeader(&total)
	p := Page{} // no items segment at all: every strategy's ExtractLines returns nil

	_, _, result, strategy := RunFallback(p, h, nil, DefaultProfile())

	if strategy != "" {
		t.Errorf("strategy = %q, want empty when no fallback attempt can possibly improve on nil lines", strategy)
	}
	if result.Status == StatusOK {
		t.Errorf("expected the unreconciled original result to persist, not OK")
	}
}
