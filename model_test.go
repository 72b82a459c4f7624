package fakturaextrakt

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestInvoiceHeaderConfidenceDefaultsToZero(t *testing.T) {
	var h InvoiceHeader
	if c := h.Confidence(HeaderFieldSupplier); c != 0 {
		t.Errorf("Confidence on a zero-value header = %v, want 0", c)
	}
}

func TestInvoiceHeaderConfidenceReadsRecordedValue(t *testing.T) {
	h := InvoiceHeader{Confidences: map[string]float64{HeaderFieldSupplier: 0.82}}
	if c := h.Confidence(HeaderFieldSupplier); c != 0.82 {
		t.Errorf("Confidence = %v, want 0.82", c)
	}
	if c := h.Confidence(HeaderFieldDate); c != 0 {
		t.Errorf("Confidence of an unrecorded field = %v, want 0", c)
	}
}

func TestValidationStatusString(t *testing.T) {
	cases := map[ValidationStatus]string{
		StatusOK:      "OK",
		StatusPartial: "PARTIAL",
		StatusReview:  "REVIEW",
		StatusFailed:  "FAILED",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(status), got, want)
		}
	}
	if got := ValidationStatus(99).String(); got != "UNKNOWN" {
		t.Errorf("out-of-range status.String() = %q, want UNKNOWN", got)
	}
}

func TestSegmentKindString(t *testing.T) {
	cases := map[SegmentKind]string{
		SegmentHeader: "header",
		SegmentItems:  "items",
		SegmentFooter: "footer",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", int(kind), got, want)
		}
	}
}

func TestPageSegmentLookup(t *testing.T) {
	p := Page{
		Rows: []Row{{}, {}, {}, {}},
		Segments: []Segment{
			{Kind: SegmentHeader, RowStart: 0, RowEnd: 1},
			{Kind: SegmentItems, RowStart: 1, RowEnd: 3},
			{Kind: SegmentFooter, RowStart: 3, RowEnd: 4},
		},
	}

	items, ok := p.Segment(SegmentItems)
	if !ok {
		t.Fatalf("Segment(SegmentItems) not found")
	}
	if rows := p.SegmentRows(items); len(rows) != 2 {
		t.Errorf("SegmentRows(items) returned %d rows, want 2", len(rows))
	}

	if _, ok := (Page{}).Segment(SegmentFooter); ok {
		t.Errorf("Segment lookup on an empty page unexpectedly found one")
	}
}

func TestSegmentRowsOutOfRangeReturnsNil(t *testing.T) {
	p := Page{Rows: []Row{{}, {}}}
	bad := Segment{RowStart: 1, RowEnd: 5}
	if rows := p.SegmentRows(bad); rows != nil {
		t.Errorf("SegmentRows with RowEnd past len(Rows) = %v, want nil", rows)
	}
}

// TestRowTextJoinsTokensWithSpaces exercises the glue code
// (row->text->normalize) that every extractor depends on to hand a raw
// string to NormalizeAmount, so every exposed amount stays a Decimal
// end to end from a Row.
func TestRowTextJoinsTokensWithSpaces(t *testing.T) {
	r := Row{Tokens: []Token{{Text: "1"}, {Text: "234,00"}, {Text: "kr"}}}
	if got, want := r.Text(), "1 234,00 kr"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}

	amount, err := NormalizeAmount(r.Text())
	if err != nil {
		t.Fatalf("NormalizeAmount(%q): %v", r.Text(), err)
	}
	if want := decimal.RequireFromString("1234.00"); !amount.Equal(want) {
		t.Errorf("NormalizeAmount(%q) = %s, want %s", r.Text(), amount, want)
	}
}

func TestDocumentPageCount(t *testing.T) {
	d := &Document{Pages: []Page{{}, {}, {}}}
	if got := d.PageCount(); got != 3 {
		t.Errorf("PageCount() = %d, want 3", got)
	}
}
