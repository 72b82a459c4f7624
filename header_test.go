package fakturaextrakt

import (
	"testing"

	"github.com/shopspring/decimal"
)

func headerPage(rows ...Row) Page {
	return Page{
		Rows:     rows,
		Segments: []Segment{{Kind: SegmentHeader, RowStart: 0, RowEnd: len(rows)}},
	}
}

func TestExtractHeaderTotalTrailingTextAfterLabel(t *testing.T) {
	p := headerPage(rowOf("Totalt", "inkl", "moms", "25%", "999,50"))

	h := ExtractHeader(p, InvoiceGroup{}, DefaultProfile())

	if h.TotalAmount == nil {
		t.Fatal("TotalAmount = nil, want a match")
	}
	if !h.TotalAmount.Equal(decimal.RequireFromString("999.50")) {
		t.Errorf("TotalAmount = %s, want 999.50", h.TotalAmount)
	}
}

func TestExtractHeaderTotalOnNextRow(t *testing.T) {
	p := headerPage(
		rowOf("Fakturabelopp"),
		rowOf("999,50"),
	)

	h := ExtractHeader(p, InvoiceGroup{}, DefaultProfile())

	if h.TotalAmount == nil {
		t.Fatal("TotalAmount = nil, want a match on the row below the anchor")
	}
	if !h.TotalAmount.Equal(decimal.RequireFromString("999.50")) {
		t.Errorf("TotalAmount = %s, want 999.50", h.TotalAmount)
	}
	if h.Confidences[HeaderFieldTotalAmount] != 0.6 {
		t.Errorf("Confidence = %v, want 0.6 for a next-row match", h.Confidences[HeaderFieldTotalAmount])
	}
}
