package fakturaextrakt

import "strings"

// DefaultEDIRequiredAnchors are row-label fragments commonly seen on
// machine-generated (EDI-origin) Swedish invoices, where the text layer
// tends to be a bare field dump rather than natural prose.
var DefaultEDIRequiredAnchors = []string{"edifact", "ean-nr", "gln"}

// DefaultEDIExtraAnchors are weaker, supporting evidence of EDI origin;
// combined with the required anchors to reach min_edi_signals.
var DefaultEDIExtraAnchors = []string{"peppol", "bas-id", "referens-id"}

// DefaultEDITablePatternNames names the structural checks
// evaluate_edi_signals runs beyond label matching: a run of standalone
// numeric-only rows is itself evidence of EDI origin, independent of any
// label.
var DefaultEDITablePatternNames = []string{"numeric_row_density"}

// EvaluateEDISignals inspects a document's pages for EDI-origin
// evidence: configured required/extra anchor labels, plus a
// structural numeric-row-density table pattern, aggregated across every
// page the invoice spans. Every matched anchor or pattern is returned by
// name so AIPolicyDecision.EDISignals stays traceable rather than a bare
// boolean, and TextQuality is the average across the pages considered.
func EvaluateEDISignals(pages []Page, rules EDIAnchorRules) EDISignals {
	var sig EDISignals
	if len(pages) == 0 {
		return sig
	}

	seenAnchor := make(map[string]bool)
	seenPattern := make(map[string]bool)
	var qualitySum float64
	var tableRows int

	for _, p := range pages {
		qualitySum += p.TextQuality
		for _, r := range p.Rows {
			text := strings.ToLower(r.Text())
			for _, a := range rules.Required {
				if strings.Contains(text, a) && !seenAnchor[a] {
					seenAnchor[a] = true
					sig.MatchedAnchors = append(sig.MatchedAnchors, a)
				}
			}
			for _, a := range rules.Extra {
				if strings.Contains(text, a) && !seenAnchor[a] {
					seenAnchor[a] = true
					sig.MatchedAnchors = append(sig.MatchedAnchors, a)
				}
			}
			if isNumericRow(r) {
				tableRows++
				if !seenPattern["numeric_row_density"] {
					seenPattern["numeric_row_density"] = true
					sig.MatchedPatterns = append(sig.MatchedPatterns, "numeric_row_density")
				}
			}
		}
	}

	sig.TextQuality = qualitySum / float64(len(pages))
	sig.tableRowCount = tableRows
	return sig
}

// isNumericRow reports whether every token in the row is either purely
// numeric (allowing for normal amount punctuation) or a short unit code
// of at most three bytes, the signature of a column-dump EDI rendering.
func isNumericRow(r Row) bool {
	if len(r.Tokens) == 0 {
		return false
	}
	for _, t := range r.Tokens {
		if len(t.Text) == 0 {
			return false
		}
		if _, err := NormalizeAmount(t.Text); err == nil {
			continue
		}
		if len(t.Text) <= 3 {
			continue
		}
		return false
	}
	return true
}

// IsEDILike applies the EDI-likeness test: every page must have
// used its text layer, at least MinSignals required/extra anchors must
// have matched somewhere in the document, and at least MinTableRows rows
// must match a table pattern (numeric-row density, currently the only
// pattern implemented).
func IsEDILike(pages []Page, sig EDISignals, rules EDIAnchorRules) bool {
	if len(pages) == 0 {
		return false
	}
	for _, p := range pages {
		if !p.TextLayerUsed {
			return false
		}
	}
	minSignals := rules.MinSignals
	if minSignals <= 0 {
		minSignals = 1
	}
	minTableRows := rules.MinTableRows
	if minTableRows <= 0 {
		minTableRows = 1
	}
	return len(sig.MatchedAnchors) >= minSignals && sig.tableRowCount >= minTableRows
}
