package openai

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func TestParseConfidenceHandlesStringAndFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
	}{
		{0.75, 0.75},
		{"0.6", 0.6},
		{"not a number", 0},
		{nil, 0},
		{42, 0},
	}
	for _, c := range cases {
		if got := parseConfidence(c.in); got != c.want {
			t.Errorf("parseConfidence(%v) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestDecodeModelResponseExtractsKnownFields(t *testing.T) {
	raw := map[string]any{
		"invoice_number": "INV-1",
		"supplier":       "Acme AB",
		"total_amount":   "1 234,00",
		"notes":          []any{"low confidence on date", 5},
		"confidences":    map[string]any{"supplier": 0.9, "total_amount": "0.8"},
	}

	mr := decodeModelResponse(raw)

	if mr.InvoiceNumber != "INV-1" {
		t.Errorf("InvoiceNumber = %q, want INV-1", mr.InvoiceNumber)
	}
	if mr.Supplier != "Acme AB" {
		t.Errorf("Supplier = %q, want Acme AB", mr.Supplier)
	}
	if len(mr.Notes) != 1 || mr.Notes[0] != "low confidence on date" {
		t.Errorf("Notes = %v, want exactly the one string entry (non-string entries skipped)", mr.Notes)
	}
	if len(mr.Confidences) != 2 {
		t.Errorf("Confidences = %v, want 2 entries", mr.Confidences)
	}
}

func TestToConsultResultNormalizesAmountAndFiltersLowConfidence(t *testing.T) {
	p := &Provider{config: Config{MinConfidence: 0.5}, logger: zerolog.Nop()}
	mr := modelResponse{
		InvoiceNumber: "INV-1",
		TotalAmount:   "1 234,50",
		Confidences: map[string]any{
			"invoice_number": 0.9,
			"total_amount":   0.4, // below MinConfidence, dropped
		},
	}

	res, err := p.toConsultResult(mr)
	if err != nil {
		t.Fatalf("toConsultResult: %v", err)
	}
	if res.Header.TotalAmount == nil {
		t.Fatalf("Header.TotalAmount is nil, want a normalized decimal")
	}
	if want := decimal.RequireFromString("1234.50"); !res.Header.TotalAmount.Equal(want) {
		t.Errorf("TotalAmount = %s, want %s", res.Header.TotalAmount.String(), want)
	}
	if _, ok := res.Confidences["total_amount"]; ok {
		t.Errorf("expected total_amount confidence (0.4) to be filtered below MinConfidence (0.5)")
	}
	if c, ok := res.Confidences["invoice_number"]; !ok || c != 0.9 {
		t.Errorf("expected invoice_number confidence 0.9 to survive, got %v (ok=%v)", c, ok)
	}
}

func TestToConsultResultMalformedAmountLeavesTotalNil(t *testing.T) {
	p := &Provider{config: Config{MinConfidence: 0}, logger: zerolog.Nop()}
	mr := modelResponse{TotalAmount: "not an amount"}

	res, err := p.toConsultResult(mr)
	if err != nil {
		t.Fatalf("toConsultResult: %v", err)
	}
	if res.Header.TotalAmount != nil {
		t.Errorf("expected nil TotalAmount for an unparseable amount string, got %v", res.Header.TotalAmount)
	}
}
