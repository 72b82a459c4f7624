// Package anchors holds the label/pattern catalogs the extraction core
// matches against row text: invoice-number labels, total labels, page
// numbering patterns and header column anchors. Keeping these as named,
// documented catalogs rather than inline literals keeps the string
// literals themselves out of extraction logic.
package anchors

import "regexp"

// Rule is one named, documented catalog entry: a label or pattern plus
// the field(s) it is evidence for.
type Rule struct {
	Code        string
	Labels      []string
	Description string
}

// InvoiceNoLabels are row-label tokens (Swedish-locale first, with common
// English/EDI variants) that anchor the invoice-number field in a header
// segment.
var InvoiceNoLabels = Rule{
	Code:        "ANCHOR-INV-NO",
	Labels:      []string{"fakturanummer", "fakturanr", "faktura nr", "invoice no", "invoice number", "invoice #", "inv no"},
	Description: "Labels preceding the invoice number field in a header segment.",
}

// TotalLabels anchor the declared total amount, wherever it appears
// (header or footer segment).
var TotalLabels = Rule{
	Code:        "ANCHOR-TOTAL",
	Labels:      []string{"att betala", "summa", "totalt", "total", "netto", "fakturabelopp", "amount due", "grand total"},
	Description: "Labels preceding the declared total amount.",
}

// SupplierLabels anchor the supplier/seller name field.
var SupplierLabels = Rule{
	Code:        "ANCHOR-SUPPLIER",
	Labels:      []string{"säljare", "leverantör", "från", "seller", "supplier", "from"},
	Description: "Labels preceding the supplier name field.",
}

// DateLabels anchor the invoice date field.
var DateLabels = Rule{
	Code:        "ANCHOR-DATE",
	Labels:      []string{"fakturadatum", "datum", "invoice date", "date"},
	Description: "Labels preceding the invoice date field.",
}

// CurrencyLabels anchor an explicit currency code/symbol field, distinct
// from a currency suffix embedded directly in an amount token.
var CurrencyLabels = Rule{
	Code:        "ANCHOR-CURRENCY",
	Labels:      []string{"valuta", "currency"},
	Description: "Labels preceding an explicit currency code field.",
}

// BlacklistLabels are row-label tokens that must never be mistaken for an
// invoice-number anchor even though they share the word "nummer" —
// e.g. a customer number or order number column.
var BlacklistLabels = Rule{
	Code:        "ANCHOR-BLACKLIST",
	Labels:      []string{"ordernr", "order nr", "ordernummer", "kundnr", "kund nr", "kundnummer", "ocr-nr", "ocr nr", "referensnummer", "your reference", "er referens", "vår referens"},
	Description: "Labels that resemble an invoice-number anchor but denote an unrelated identifier.",
}

// HeaderColumnAnchors are the item-table column header labels the
// Segmenter and Line Extractor use to locate the items zone and its
// column boundaries.
var HeaderColumnAnchors = Rule{
	Code:        "ANCHOR-COLUMNS",
	Labels:      []string{"beskrivning", "antal", "á-pris", "a-pris", "pris", "rabatt", "summa", "description", "qty", "quantity", "unit price", "discount", "amount"},
	Description: "Item-table column header labels.",
}

// PageNoPattern is one compiled regular expression recognizing a "page X
// of Y" style footer/header fragment, plus a human name for logging.
type PageNoPattern struct {
	Name    string
	Pattern *regexp.Regexp
}

// PageNoPatterns recognizes the page-numbering fragments the Boundary
// Detector looks for, both Swedish and English phrasing, and a bare
// "N/M" form common in EDI-generated layouts.
var PageNoPatterns = []PageNoPattern{
	{Name: "sv_sida_av", Pattern: regexp.MustCompile(`(?i)sida\s+(\d+)\s*(?:av|/)\s*(\d+)`)},
	{Name: "en_page_of", Pattern: regexp.MustCompile(`(?i)page\s+(\d+)\s+of\s+(\d+)`)},
	{Name: "bare_fraction", Pattern: regexp.MustCompile(`^\s*(\d+)\s*/\s*(\d+)\s*$`)},
}
