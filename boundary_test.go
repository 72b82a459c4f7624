package fakturaextrakt

import "testing"

func indexedHeaderPage(index int, headerRows ...Row) Page {
	return Page{
		Index:    index,
		Rows:     headerRows,
		Segments: []Segment{{Kind: SegmentHeader, RowStart: 0, RowEnd: len(headerRows), PageIndex: index}},
	}
}

// TestDetectBoundariesInvoiceNumberChangeStartsNewGroup: every page
// belongs to exactly one group, and a new invoice number starts a new
// one.
func TestDetectBoundariesInvoiceNumberChangeStartsNewGroup(t *testing.T) {
	doc := &Document{Pages: []Page{
		indexedHeaderPage(0, rowOf("Fakturanr:", "2024-001")),
		indexedHeaderPage(1, rowOf("Fakturanr:", "2024-002")),
	}}

	groups, log := DetectBoundaries(doc, DefaultProfile())

	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if len(log) != 2 {
		t.Fatalf("len(log) = %d, want one BoundaryDecision per page", len(log))
	}
	if got := normalizeInvoiceNo(groups[0].InvoiceNo); got != "2024001" {
		t.Errorf("groups[0].InvoiceNo normalized = %q, want 2024001", got)
	}
	if got := normalizeInvoiceNo(groups[1].InvoiceNo); got != "2024002" {
		t.Errorf("groups[1].InvoiceNo normalized = %q, want 2024002", got)
	}
}

func TestDetectBoundariesSameInvoiceNumberContinuesGroup(t *testing.T) {
	doc := &Document{Pages: []Page{
		indexedHeaderPage(0, rowOf("Fakturanr:", "2024-001")),
		indexedHeaderPage(1, rowOf("Fakturanr:", "2024-001")),
	}}

	groups, _ := DetectBoundaries(doc, DefaultProfile())

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if len(groups[0].PageIndices) != 2 {
		t.Errorf("PageIndices = %v, want both pages in one group", groups[0].PageIndices)
	}
}

// TestDetectBoundariesOCRConfusableInvoiceNumberContinuesGroup: the
// comparison is OCR-robust, so a confused O on the continuation page
// does not split the invoice in two.
func TestDetectBoundariesOCRConfusableInvoiceNumberContinuesGroup(t *testing.T) {
	doc := &Document{Pages: []Page{
		indexedHeaderPage(0, rowOf("Fakturanr:", "INV-2024-001")),
		indexedHeaderPage(1, rowOf("Fakturanr:", "INV-2024-O01")),
	}}

	groups, _ := DetectBoundaries(doc, DefaultProfile())

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1 (O and 0 are OCR confusables)", len(groups))
	}
}

// TestDetectBoundariesBlacklistedLabelIgnored: a page showing both
// "Ordernr 12345" and "Fakturanr 6789" must pick 6789 — order and
// customer numbers are never invoice-number evidence.
func TestDetectBoundariesBlacklistedLabelIgnored(t *testing.T) {
	doc := &Document{Pages: []Page{
		indexedHeaderPage(0, rowOf("Ordernr", "12345"), rowOf("Fakturanr", "6789")),
	}}

	groups, _ := DetectBoundaries(doc, DefaultProfile())

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1", len(groups))
	}
	if groups[0].InvoiceNo != "6789" {
		t.Errorf("InvoiceNo = %q, want 6789 (Ordernr row is blacklisted)", groups[0].InvoiceNo)
	}
}

func TestSameInvoiceNo(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"INV-001", "INV-O01", true},   // O read as 0
		{"FAK-I23", "FAK-123", true},   // I read as 1
		{"INV-001", "INV-002", false},  // consecutive numbers stay distinct
		{"INV-001", "INV-0122", false}, // extra char plus a different digit
		{"INV-001", "INV-0011", true},  // one dropped character
		{"inv 2024 001", "INV-2024/001", true},
	}
	for _, c := range cases {
		if got := sameInvoiceNo(c.a, c.b); got != c.want {
			t.Errorf("sameInvoiceNo(%q, %q) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

// TestDetectBoundariesPageNumberingContinuityWithoutInvoiceNumber covers
// step 3 of the decision tree: no invoice-number anchor on the second
// page, but "Sida 2 av 2" continues the prior page's numbering scheme.
func TestDetectBoundariesPageNumberingContinuityWithoutInvoiceNumber(t *testing.T) {
	doc := &Document{Pages: []Page{
		{Index: 0, Rows: []Row{rowOf("Sida", "1", "av", "2")}},
		{Index: 1, Rows: []Row{rowOf("Sida", "2", "av", "2")}},
	}}

	groups, log := DetectBoundaries(doc, DefaultProfile())

	if len(groups) != 1 {
		t.Fatalf("len(groups) = %d, want 1 (page numbering continuation)", len(groups))
	}
	if log[1].Decision != "continue_group" {
		t.Errorf("page 1 decision = %q, want continue_group", log[1].Decision)
	}
}

// TestDetectBoundariesPageNumberResetStartsNewGroup covers step 4: no
// invoice number and page numbering resets to 1/N, signalling a new
// invoice started.
func TestDetectBoundariesPageNumberResetStartsNewGroup(t *testing.T) {
	doc := &Document{Pages: []Page{
		{Index: 0, Rows: []Row{rowOf("Sida", "1", "av", "1")}},
		{Index: 1, Rows: []Row{rowOf("Sida", "1", "av", "1")}},
	}}

	groups, log := DetectBoundaries(doc, DefaultProfile())

	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2 (page_no_reset_to_1)", len(groups))
	}
	if log[1].Decision != "new_group" {
		t.Errorf("page 1 decision = %q, want new_group", log[1].Decision)
	}
}

// TestDetectBoundariesEveryPageGetsExactlyOneDecision: the boundary log
// always has one entry per page, regardless of which rule fired, and
// every page index appears in exactly one group.
func TestDetectBoundariesEveryPageGetsExactlyOneDecision(t *testing.T) {
	doc := &Document{Pages: []Page{
		indexedHeaderPage(0, rowOf("Fakturanr:", "A-1")),
		{Index: 1, Rows: []Row{rowOf("some", "continuation", "text")}},
		indexedHeaderPage(2, rowOf("Fakturanr:", "A-2")),
	}}

	groups, log := DetectBoundaries(doc, DefaultProfile())

	if len(log) != 3 {
		t.Fatalf("len(log) = %d, want 3", len(log))
	}
	seen := make(map[int]bool)
	for _, g := range groups {
		for _, idx := range g.PageIndices {
			if seen[idx] {
				t.Errorf("page %d appears in more than one group", idx)
			}
			seen[idx] = true
		}
	}
	for i := 0; i < 3; i++ {
		if !seen[i] {
			t.Errorf("page %d missing from every group", i)
		}
	}
}
