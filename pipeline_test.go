package fakturaextrakt

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

// recordingProvider counts Consult calls and always fails, so tests can
// assert both that the gate consulted AI and that a failed consult
// leaves the deterministic result in place.
type recordingProvider struct {
	calls int
}

func (r *recordingProvider) Consult(ctx context.Context, req AIConsultRequest) (AIConsultResult, error) {
	r.calls++
	return AIConsultResult{}, errors.New("provider unavailable")
}

type placed struct {
	text string
	x    float64
}

func addRow(toks *[]Token, y float64, cells ...placed) {
	for _, c := range cells {
		*toks = append(*toks, Token{
			Text:   c.text,
			X:      c.x,
			Y:      y,
			Width:  float64(len([]rune(c.text))) * 6,
			Height: 10,
		})
	}
}

func tokenPage(index int, toks []Token) Page {
	for i := range toks {
		toks[i].PageIndex = index
	}
	return Page{Index: index, Tokens: toks, TextLayerUsed: true, TextQuality: 1.0}
}

// twoPageInvoice lays out a synthetic two-page invoice: header, page
// numbering and two item rows on the first page, a continuation item on
// the second, and (unless declaredTotal is empty) an "Att betala" footer
// on the last page. Items sum to 75.00.
func twoPageInvoice(startIdx int, invNo, declaredTotal string) []Page {
	var p1 []Token
	addRow(&p1, 800, placed{"Fakturanr:", 40}, placed{invNo, 110})
	addRow(&p1, 785, placed{"Leverantör:", 40}, placed{"Acme", 130}, placed{"AB", 165})
	addRow(&p1, 770, placed{"Fakturadatum:", 40}, placed{"2024-03-01", 130})
	addRow(&p1, 755, placed{"Sida", 40}, placed{"1", 70}, placed{"av", 80}, placed{"2", 95})
	addRow(&p1, 700, placed{"Beskrivning", 40}, placed{"Antal", 300}, placed{"a-pris", 380}, placed{"Summa", 460})
	addRow(&p1, 685, placed{"Widget", 40}, placed{"2", 310}, placed{"10,00", 385}, placed{"20,00", 465})
	addRow(&p1, 670, placed{"Gadget", 40}, placed{"1", 310}, placed{"30,00", 385}, placed{"30,00", 465})

	var p2 []Token
	addRow(&p2, 800, placed{"Sida", 40}, placed{"2", 70}, placed{"av", 80}, placed{"2", 95})
	addRow(&p2, 700, placed{"Beskrivning", 40}, placed{"Antal", 300}, placed{"a-pris", 380}, placed{"Summa", 460})
	addRow(&p2, 685, placed{"Frakt", 40}, placed{"1", 310}, placed{"25,00", 385}, placed{"25,00", 465})
	if declaredTotal != "" {
		addRow(&p2, 600, placed{"Att", 40}, placed{"betala", 70}, placed{declaredTotal, 465})
	}

	return []Page{tokenPage(startIdx, p1), tokenPage(startIdx+1, p2)}
}

// singlePageInvoice is a one-page invoice whose items sum to 50.00, with
// declaredTotal printed in the footer.
func singlePageInvoice(idx int, invNo, declaredTotal string) Page {
	var toks []Token
	addRow(&toks, 800, placed{"Fakturanr:", 40}, placed{invNo, 110})
	addRow(&toks, 785, placed{"Leverantör:", 40}, placed{"Acme", 130}, placed{"AB", 165})
	addRow(&toks, 770, placed{"Fakturadatum:", 40}, placed{"2024-03-01", 130})
	addRow(&toks, 700, placed{"Beskrivning", 40}, placed{"Antal", 300}, placed{"a-pris", 380}, placed{"Summa", 460})
	addRow(&toks, 685, placed{"Widget", 40}, placed{"2", 310}, placed{"10,00", 385}, placed{"20,00", 465})
	addRow(&toks, 670, placed{"Gadget", 40}, placed{"1", 310}, placed{"30,00", 385}, placed{"30,00", 465})
	addRow(&toks, 600, placed{"Att", 40}, placed{"betala", 70}, placed{declaredTotal, 465})
	return tokenPage(idx, toks)
}

// pagesCovered collects the page indices a result's boundary decision
// log covers, the per-invoice view of the document partition.
func pagesCovered(r InvoiceResult) []int {
	var pages []int
	for _, d := range r.ExtractionDetail.BoundaryDecisionLog {
		pages = append(pages, d.Page)
	}
	return pages
}

// TestExtractDocumentTwoInvoicesEndToEnd drives the whole pipeline over
// a four-page document holding two two-page invoices: both must come
// back as their own reconciled group, with AI never consulted.
func TestExtractDocumentTwoInvoicesEndToEnd(t *testing.T) {
	pages := append(twoPageInvoice(0, "INV-001", "75,00"), twoPageInvoice(2, "INV-002", "75,00")...)
	doc := &Document{Pages: pages}
	provider := &recordingProvider{}

	results, err := ExtractDocument(context.Background(), doc, nil, DefaultProfile(), provider, nil)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 invoices", len(results))
	}
	wantNos := []string{"INV-001", "INV-002"}
	wantPages := [][]int{{0, 1}, {2, 3}}
	seen := make(map[int]bool)
	for i, r := range results {
		if r.Header.InvoiceNumber != wantNos[i] {
			t.Errorf("results[%d].InvoiceNumber = %q, want %q", i, r.Header.InvoiceNumber, wantNos[i])
		}
		if r.Validation.Status != StatusOK {
			t.Errorf("results[%d].Status = %s, want OK (errors=%v warnings=%v)",
				i, r.Validation.Status, r.Validation.Errors, r.Validation.Warnings)
		}
		if r.Header.TotalAmount == nil || !r.Header.TotalAmount.Equal(decimal.RequireFromString("75.00")) {
			t.Errorf("results[%d].TotalAmount = %v, want 75.00 (footer on the last group page)", i, r.Header.TotalAmount)
		}
		if !r.Validation.LinesSum.Equal(decimal.RequireFromString("75.00")) {
			t.Errorf("results[%d].LinesSum = %s, want 75.00 across both pages", i, r.Validation.LinesSum)
		}
		got := pagesCovered(r)
		if len(got) != 2 || got[0] != wantPages[i][0] || got[1] != wantPages[i][1] {
			t.Errorf("results[%d] boundary log covers pages %v, want %v", i, got, wantPages[i])
		}
		for _, pg := range got {
			if seen[pg] {
				t.Errorf("page %d appears in more than one invoice", pg)
			}
			seen[pg] = true
		}
		if r.ExtractionDetail.AIPolicy == nil {
			t.Fatalf("results[%d] has no AI policy block", i)
		}
		if r.ExtractionDetail.AIPolicy.AllowAI {
			t.Errorf("results[%d] AllowAI = true, want false for a clean validation", i)
		}
		if !hasFlag(r.ExtractionDetail.AIPolicy.ReasonFlags, ReasonValidationOK) {
			t.Errorf("results[%d] ReasonFlags = %v, want to contain %s", i, r.ExtractionDetail.AIPolicy.ReasonFlags, ReasonValidationOK)
		}
	}
	for pg := 0; pg < len(pages); pg++ {
		if !seen[pg] {
			t.Errorf("page %d missing from every invoice", pg)
		}
	}
	if provider.calls != 0 {
		t.Errorf("provider consulted %d times, want 0", provider.calls)
	}
}

// TestExtractDocumentRedactedTotalsKeepGrouping removes every declared
// total from the same document: the groups must not change (boundary
// detection never consults totals), and each invoice degrades to
// PARTIAL with no AI call.
func TestExtractDocumentRedactedTotalsKeepGrouping(t *testing.T) {
	pages := append(twoPageInvoice(0, "INV-001", ""), twoPageInvoice(2, "INV-002", "")...)
	doc := &Document{Pages: pages}
	provider := &recordingProvider{}

	results, err := ExtractDocument(context.Background(), doc, nil, DefaultProfile(), provider, nil)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want the same 2 groups as with totals present", len(results))
	}
	wantPages := [][]int{{0, 1}, {2, 3}}
	for i, r := range results {
		got := pagesCovered(r)
		if len(got) != 2 || got[0] != wantPages[i][0] || got[1] != wantPages[i][1] {
			t.Errorf("results[%d] boundary log covers pages %v, want %v (grouping must not depend on totals)", i, got, wantPages[i])
		}
		if r.Validation.Status != StatusPartial {
			t.Errorf("results[%d].Status = %s, want PARTIAL with the total redacted (errors=%v warnings=%v)",
				i, r.Validation.Status, r.Validation.Errors, r.Validation.Warnings)
		}
		if r.ExtractionDetail.AIPolicy.AllowAI {
			t.Errorf("results[%d] AllowAI = true, want false (a missing total alone is no AI trigger)", i)
		}
	}
	if provider.calls != 0 {
		t.Errorf("provider consulted %d times, want 0", provider.calls)
	}
}

// TestExtractDocumentFallbackRunsBeforeAI uses an invoice whose declared
// total contradicts its lines: the deterministic fallback must run (and
// fail) before the provider is consulted, and the failed consult leaves
// the deterministic result standing.
func TestExtractDocumentFallbackRunsBeforeAI(t *testing.T) {
	doc := &Document{Pages: []Page{singlePageInvoice(0, "INV-003", "99,00")}}
	provider := &recordingProvider{}

	results, err := ExtractDocument(context.Background(), doc, nil, DefaultProfile(), provider, nil)
	if err != nil {
		t.Fatalf("ExtractDocument: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	r := results[0]

	if r.Validation.Status != StatusReview {
		t.Errorf("Status = %s, want REVIEW for a 49.00 reconciliation gap", r.Validation.Status)
	}
	policy := r.ExtractionDetail.AIPolicy
	if policy == nil {
		t.Fatal("missing AI policy block")
	}
	if !policy.AllowAI {
		t.Errorf("AllowAI = false, want true after deterministic stages failed")
	}
	if !hasFlag(policy.ReasonFlags, ReasonFallbackFailed) {
		t.Errorf("ReasonFlags = %v, want to contain %s: the fallback must have been attempted before AI", policy.ReasonFlags, ReasonFallbackFailed)
	}
	if provider.calls != 1 {
		t.Errorf("provider consulted %d times, want exactly 1", provider.calls)
	}
	warned := false
	for _, w := range r.Validation.Warnings {
		if len(w) >= 17 && w[:17] == "ai consult failed" {
			warned = true
		}
	}
	if !warned {
		t.Errorf("Warnings = %v, want an ai-consult-failed warning after the provider errored", r.Validation.Warnings)
	}
}

// TestExtractDocumentEmptyDocument covers the structural error surface.
func TestExtractDocumentEmptyDocument(t *testing.T) {
	_, err := ExtractDocument(context.Background(), &Document{}, nil, DefaultProfile(), nil, nil)
	if !IsKind(err, KindEmptyDocument) {
		t.Errorf("err = %v, want EmptyDocument", err)
	}
}
