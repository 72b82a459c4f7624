package fakturaextrakt

import "testing"

func TestSegmentPageAnchorLabelRow(t *testing.T) {
	doc := &Document{Pages: []Page{{Rows: []Row{
		rowOf("Faktura"),
		rowOf("Artikel", "Antal", "a-pris", "Summa"),
		rowOf("Widget", "A", "3", "10,00", "30,00"),
		rowOf("Att betala", "30,00"),
	}}}}
	SegmentPages(doc, DefaultProfile())

	p := doc.Pages[0]
	items, ok := p.Segment(SegmentItems)
	if !ok {
		t.Fatal("expected an items segment")
	}
	if items.RowStart != 2 || items.RowEnd != 3 {
		t.Errorf("items segment = [%d,%d), want [2,3) (label row excluded, data row included)", items.RowStart, items.RowEnd)
	}
}

func TestSegmentPageNumericAlignmentWithoutAnchorLabels(t *testing.T) {
	doc := &Document{Pages: []Page{{Rows: []Row{
		rowOf("Faktura"),
		rowOf("Widget", "A", "3", "10,00", "30,00"),
		rowOf("Att betala", "30,00"),
	}}}}
	SegmentPages(doc, DefaultProfile())

	p := doc.Pages[0]
	items, ok := p.Segment(SegmentItems)
	if !ok {
		t.Fatal("expected an items segment")
	}
	if items.RowStart != 1 || items.RowEnd != 2 {
		t.Errorf("items segment = [%d,%d), want [1,2) (the numeric row itself starts items)", items.RowStart, items.RowEnd)
	}
	header, ok := p.Segment(SegmentHeader)
	if !ok || header.RowEnd != 1 {
		t.Errorf("header segment = %+v, want RowEnd 1", header)
	}
}

func TestSegmentPageNoBoundaryFound(t *testing.T) {
	doc := &Document{Pages: []Page{{Rows: []Row{
		rowOf("Faktura"),
		rowOf("Tack för ditt köp"),
	}}}}
	SegmentPages(doc, DefaultProfile())

	p := doc.Pages[0]
	items, ok := p.Segment(SegmentItems)
	if !ok || !items.Empty {
		t.Errorf("items segment = %+v, want Empty", items)
	}
}
