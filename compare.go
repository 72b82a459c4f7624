package fakturaextrakt

import (
	"bytes"
	"strings"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"github.com/speedata/cxpath"
)

// CompareCandidate is one source's extraction result, scored for the
// Compare Path's winner selection.
type CompareCandidate struct {
	Source     string
	Header     InvoiceHeader
	Lines      []InvoiceLine
	Validation ValidationResult
	Score      float64
}

// RunComparePath runs extraction twice — once from the page's own
// tokens, once from a second, independently derived source — and scores
// each candidate so the winner can be chosen without running the AI
// policy gate more than once. The second source is either the invoice's
// embedded XML attachment, walked with cxpath/etree, or, absent one, a
// whitespace/ligature-normalized retokenization of the same page.
func RunComparePath(p Page, g InvoiceGroup, rawPDF []byte, profile Profile) (CompareCandidate, CompareCandidate, CompareCandidate) {
	primary := buildCandidate("primary", p, g, profile)

	var secondary CompareCandidate
	if xmlBytes, err := ExtractEmbeddedXML(rawPDF); err == nil && len(xmlBytes) > 0 {
		if h, lines, ok := extractFromEmbeddedXML(xmlBytes); ok {
			v := Validate(h, lines, profile)
			secondary = CompareCandidate{Source: "embedded_xml", Header: h, Lines: lines, Validation: v, Score: scoreCandidate(h, lines, v)}
		}
	}
	if secondary.Source == "" {
		cleanedPage := cleanedRetokenization(p, profile)
		h := ExtractHeader(cleanedPage, g, profile)
		lines, lineWarnings := ExtractLines(cleanedPage, LineExtractionOptions{})
		v := Validate(h, lines, profile)
		v.Warnings = append(v.Warnings, lineWarnings...)
		secondary = CompareCandidate{Source: "cleaned_retokenize", Header: h, Lines: lines, Validation: v, Score: scoreCandidate(h, lines, v)}
	}

	winner := primary
	if secondary.Score > primary.Score {
		winner = secondary
	}
	return primary, secondary, winner
}

func buildCandidate(source string, p Page, g InvoiceGroup, profile Profile) CompareCandidate {
	h := ExtractHeader(p, g, profile)
	lines, lineWarnings := ExtractLines(p, LineExtractionOptions{})
	v := Validate(h, lines, profile)
	v.Warnings = append(v.Warnings, lineWarnings...)
	return CompareCandidate{Source: source, Header: h, Lines: lines, Validation: v, Score: scoreCandidate(h, lines, v)}
}

// scoreCandidate combines validation status, header field confidence
// average and whether any lines were extracted into a single comparable
// score, highest wins.
func scoreCandidate(h InvoiceHeader, lines []InvoiceLine, v ValidationResult) float64 {
	statusScore := map[ValidationStatus]float64{
		StatusOK:      1.0,
		StatusPartial: 0.6,
		StatusReview:  0.3,
		StatusFailed:  0.0,
	}[v.Status]

	var confSum float64
	var confN int
	for _, c := range h.Confidences {
		confSum += c
		confN++
	}
	avgConf := 0.0
	if confN > 0 {
		avgConf = confSum / float64(confN)
	}

	lineScore := 0.0
	if len(lines) > 0 {
		lineScore = 1.0
	}

	return 0.5*statusScore + 0.3*avgConf + 0.2*lineScore
}

// extractFromEmbeddedXML parses a ZUGFeRD/Factur-X CII XML attachment
// with cxpath, set up with the standard rsm:/ram: namespace prefixes,
// pulling the handful of fields that also appear in
// InvoiceHeader/InvoiceLine, as high-confidence (1.0) ground truth.
func extractFromEmbeddedXML(xmlBytes []byte) (InvoiceHeader, []InvoiceLine, bool) {
	// Cheap format detection before setting up XPath: only CII-rooted
	// attachments are worth walking (UBL attachments use a different tree
	// entirely and would just produce an empty candidate).
	probe := etree.NewDocument()
	if err := probe.ReadFromBytes(xmlBytes); err != nil {
		return InvoiceHeader{}, nil, false
	}
	if root := probe.Root(); root == nil || root.Tag != "CrossIndustryInvoice" {
		return InvoiceHeader{}, nil, false
	}

	ctx, err := cxpath.NewFromReader(bytes.NewReader(xmlBytes))
	if err != nil {
		return InvoiceHeader{}, nil, false
	}
	ctx.SetNamespace("rsm", "urn:un:unece:uncefact:data:standard:CrossIndustryInvoice:100")
	ctx.SetNamespace("ram", "urn:un:unece:uncefact:data:standard:ReusableAggregateBusinessInformationEntity:100")
	ctx.SetNamespace("udt", "urn:un:unece:uncefact:data:standard:UnqualifiedDataType:100")
	root := ctx.Root()

	h := InvoiceHeader{
		Confidences: make(map[string]float64),
		Traces:      make(map[string]FieldTrace),
	}

	if v := root.Eval("rsm:ExchangedDocument/ram:ID").String(); v != "" {
		h.InvoiceNumber = strings.TrimSpace(v)
		h.Confidences[HeaderFieldInvoiceNumber] = 1.0
	}
	settlement := root.Eval("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeSettlement")
	if v := settlement.Eval("ram:SpecifiedTradeSettlementHeaderMonetarySummation/ram:GrandTotalAmount").String(); v != "" {
		if amt, err := NormalizeAmount(v); err == nil {
			h.TotalAmount = &amt
			h.Confidences[HeaderFieldTotalAmount] = 1.0
		}
	}
	agreement := root.Eval("rsm:SupplyChainTradeTransaction/ram:ApplicableHeaderTradeAgreement")
	if v := agreement.Eval("ram:SellerTradeParty/ram:Name").String(); v != "" {
		h.Supplier = strings.TrimSpace(v)
		h.Confidences[HeaderFieldSupplier] = 1.0
	}

	var lines []InvoiceLine
	transaction := root.Eval("rsm:SupplyChainTradeTransaction")
	for item := range transaction.Each("ram:IncludedSupplyChainTradeLineItem") {
		desc := item.Eval("ram:SpecifiedTradeProduct/ram:Name").String()
		qtyStr := item.Eval("ram:SpecifiedLineTradeDelivery/ram:BilledQuantity").String()
		priceStr := item.Eval("ram:SpecifiedLineTradeAgreement/ram:NetPriceProductTradePrice/ram:ChargeAmount").String()
		totalStr := item.Eval("ram:SpecifiedLineTradeSettlement/ram:SpecifiedTradeSettlementLineMonetarySummation/ram:LineTotalAmount").String()
		if desc == "" && qtyStr == "" {
			continue
		}
		qty, _ := NormalizeAmount(qtyStr)
		price, _ := NormalizeAmount(priceStr)
		total, _ := NormalizeAmount(totalStr)
		if qty.IsZero() {
			qty = decimal.NewFromInt(1)
		}
		lines = append(lines, InvoiceLine{
			Description: strings.TrimSpace(desc),
			Quantity:    qty,
			UnitPrice:   price,
			LineTotal:   total,
			Confidence:  1.0,
		})
	}

	return h, lines, h.InvoiceNumber != "" || len(lines) > 0
}

// cleanedRetokenization produces the "second, independently derived
// source" the Compare Path needs when no embedded XML exists: it
// collapses runs of whitespace and common PDF ligature artifacts (ﬁ, ﬂ)
// in every token's text before re-running row grouping, which shakes out
// a different set of row/column splits than the primary pass without
// requiring a second PDF render.
func cleanedRetokenization(p Page, profile Profile) Page {
	cleaned := make([]Token, len(p.Tokens))
	for i, t := range p.Tokens {
		text := strings.ReplaceAll(t.Text, "ﬁ", "fi")
		text = strings.ReplaceAll(text, "ﬂ", "fl")
		text = strings.Join(strings.Fields(text), " ")
		cleaned[i] = t
		cleaned[i].Text = text
	}
	cp := p
	cp.Tokens = cleaned
	pages := []Page{cp}
	_ = buildRows(pages, profile)
	doc := &Document{Pages: pages}
	SegmentPages(doc, profile)
	return doc.Pages[0]
}
