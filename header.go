package fakturaextrakt

import (
	"strings"
	"time"

	"github.com/kvitto/fakturaextrakt/anchors"
)

// dateLayouts are tried in order; Swedish invoices overwhelmingly use
// ISO-8601, with the slash and dotted forms as common fallbacks.
var dateLayouts = []string{"2006-01-02", "2006/01/02", "02.01.2006", "2006.01.02"}

var currencyCodes = []string{"SEK", "EUR", "USD", "GBP", "NOK", "DKK"}

// ExtractHeader reads the supplier, invoice number, date, currency and
// (if present) total amount from a page's header segment, using the
// anchors package's label catalogs. Every field read from a row gets a
// confidence and, when the match is anchor-driven, a FieldTrace. A
// currency that falls back to the SEK default gets neither.
func ExtractHeader(p Page, g InvoiceGroup, profile Profile) InvoiceHeader {
	h := InvoiceHeader{
		Confidences: make(map[string]float64),
		Traces:      make(map[string]FieldTrace),
	}

	header, ok := p.Segment(SegmentHeader)
	if !ok {
		return h
	}
	rows := p.SegmentRows(header)

	h.InvoiceNumber = g.InvoiceNo
	if h.InvoiceNumber != "" {
		h.Confidences[HeaderFieldInvoiceNumber] = 0.9
	}

	for rowIdx, r := range rows {
		text := r.Text()
		lower := strings.ToLower(text)

		if h.Supplier == "" {
			if v, ok := valueAfterLabel(text, lower, anchors.SupplierLabels.Labels); ok {
				h.Supplier = v
				h.Confidences[HeaderFieldSupplier] = 0.85
				h.Traces[HeaderFieldSupplier] = traceFor(r, rowIdx, p.Index)
			}
		}
		if h.Date.IsZero() {
			if v, ok := valueAfterLabel(text, lower, anchors.DateLabels.Labels); ok {
				if d, err := parseDate(v); err == nil {
					h.Date = d
					h.Confidences[HeaderFieldDate] = 0.85
					h.Traces[HeaderFieldDate] = traceFor(r, rowIdx, p.Index)
				}
			}
		}
		if h.Currency == "" {
			if v, ok := valueAfterLabel(text, lower, anchors.CurrencyLabels.Labels); ok {
				code := strings.ToUpper(strings.TrimSpace(v))
				if isKnownCurrency(code) {
					h.Currency = code
					h.Confidences[HeaderFieldCurrency] = 0.8
					h.Traces[HeaderFieldCurrency] = traceFor(r, rowIdx, p.Index)
				}
			} else if code := detectCurrencyCode(text); code != "" {
				h.Currency = code
				h.Confidences[HeaderFieldCurrency] = 0.5
			}
		}
		if h.TotalAmount == nil && containsAnyLabel(lower, anchors.TotalLabels.Labels) {
			if amt, ok := rightmostAmount(r); ok {
				h.TotalAmount = &amt
				h.Confidences[HeaderFieldTotalAmount] = 0.7
				h.Traces[HeaderFieldTotalAmount] = traceFor(r, rowIdx, p.Index)
			} else if rowIdx+1 < len(rows) {
				next := rows[rowIdx+1]
				if amt, ok := rightmostAmount(next); ok {
					h.TotalAmount = &amt
					h.Confidences[HeaderFieldTotalAmount] = 0.6
					h.Traces[HeaderFieldTotalAmount] = traceFor(next, rowIdx+1, p.Index)
				}
			}
		}
	}

	if h.Currency == "" {
		h.Currency = "SEK"
	}

	return h
}

// valueAfterLabel finds the first of labels as a substring of lower and
// returns the remainder of text following it, trimmed of separator
// punctuation, plus whether a label matched at all.
func valueAfterLabel(text, lower string, labels []string) (string, bool) {
	for _, label := range labels {
		idx := strings.Index(lower, label)
		if idx < 0 {
			continue
		}
		rest := strings.TrimSpace(text[idx+len(label):])
		rest = strings.TrimLeft(rest, ":#- ")
		if rest == "" {
			continue
		}
		return rest, true
	}
	return "", false
}

func traceFor(r Row, rowIdx, page int) FieldTrace {
	return FieldTrace{
		BBox:       rowBBox(r),
		SourceText: r.Text(),
	}
}

func rowBBox(r Row) BBox {
	if len(r.Tokens) == 0 {
		return BBox{Page: r.PageIndex}
	}
	minX, maxX := r.Tokens[0].X, r.Tokens[0].X+r.Tokens[0].Width
	minY, maxY := r.BaselineY, r.BaselineY
	for _, t := range r.Tokens {
		if t.X < minX {
			minX = t.X
		}
		if t.X+t.Width > maxX {
			maxX = t.X + t.Width
		}
		if t.Y < minY {
			minY = t.Y
		}
		if t.Y+t.Height > maxY {
			maxY = t.Y + t.Height
		}
	}
	return BBox{Page: r.PageIndex, X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if idx := strings.IndexAny(s, " \t"); idx > 0 {
		s = s[:idx]
	}
	var lastErr error
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

func isKnownCurrency(code string) bool {
	for _, c := range currencyCodes {
		if c == code {
			return true
		}
	}
	return false
}

func detectCurrencyCode(text string) string {
	upper := strings.ToUpper(text)
	for _, c := range currencyCodes {
		if strings.Contains(upper, c) {
			return c
		}
	}
	if strings.Contains(text, "kr") || strings.Contains(text, "SEK") {
		return "SEK"
	}
	return ""
}
