package fakturaextrakt

import (
	"github.com/kvitto/fakturaextrakt/anchors"
	"github.com/shopspring/decimal"
)

// FieldAmount pairs a normalized amount with the confidence and trace
// that go with it, for fields the footer extractor can populate
// independently of the header.
type FieldAmount struct {
	Value      decimal.Decimal
	Confidence float64
	Trace      FieldTrace
}

// ExtractFooterTotal reads the declared total amount from a page's footer
// segment, used when ExtractHeader did not already find one there (some
// invoices only state "att betala" in the footer). The amount
// is the rightmost amount on the anchor row itself, or, failing that, on
// the row immediately below it — a label like "att betala" is often
// followed by tax/rounding text before the printed figure, or by the
// figure on its own line entirely. It returns nil when no total anchor is
// found at all, which is not itself an error: the Validator treats a
// wholly absent total as a missing critical field.
func ExtractFooterTotal(p Page) (*FieldAmount, error) {
	footer, ok := p.Segment(SegmentFooter)
	if !ok {
		return nil, nil
	}
	rows := p.SegmentRows(footer)
	for i, r := range rows {
		if !containsAnyLabel(r.Text(), anchors.TotalLabels.Labels) {
			continue
		}
		if amt, ok := rightmostAmount(r); ok {
			return &FieldAmount{Value: amt, Confidence: 0.7, Trace: traceFor(r, 0, p.Index)}, nil
		}
		if i+1 < len(rows) {
			next := rows[i+1]
			if amt, ok := rightmostAmount(next); ok {
				return &FieldAmount{Value: amt, Confidence: 0.6, Trace: traceFor(next, 0, p.Index)}, nil
			}
		}
		return nil, nil
	}
	return nil, nil
}

// rightmostAmount scans a row's tokens right-to-left and returns the
// first one that parses as an amount, skipping trailing non-numeric
// tokens such as a currency code or a tax-rate fragment ("moms 25%").
func rightmostAmount(r Row) (decimal.Decimal, bool) {
	for i := len(r.Tokens) - 1; i >= 0; i-- {
		if amt, err := NormalizeAmount(r.Tokens[i].Text); err == nil {
			return amt, true
		}
	}
	return decimal.Decimal{}, false
}
