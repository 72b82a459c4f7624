package fakturaextrakt

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/kvitto/fakturaextrakt/anchors"
)

var invoiceNoNormalizer = regexp.MustCompile(`[^A-Za-z0-9]`)

// invoiceNoPlausible is the shape an invoice-number candidate must have:
// 4-20 alphanumeric characters, hyphens and slashes allowed.
var invoiceNoPlausible = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9/-]{2,18}[A-Za-z0-9]$`)

// normalizeInvoiceNo strips punctuation/whitespace and upcases, so OCR
// noise ("INV-2024/001" vs "inv 2024 001") doesn't split one invoice
// across two groups.
func normalizeInvoiceNo(s string) string {
	return strings.ToUpper(invoiceNoNormalizer.ReplaceAllString(s, ""))
}

// ocrCanonical maps the glyph pairs OCR most commonly swaps (O↔0, I↔1)
// onto one canonical form, so "INV-O01" and "INV-001" compare equal.
func ocrCanonical(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case 'O':
			return '0'
		case 'I':
			return '1'
		}
		return r
	}, s)
}

// sameInvoiceNo compares two invoice-number candidates OCR-robustly:
// equal after normalization and confusable-glyph mapping, or one
// character dropped/inserted (edit distance 1 with differing lengths).
// A same-length single-character substitution is NOT accepted — that is
// exactly how two consecutive invoice numbers ("INV-001" vs "INV-002")
// differ, and merging those would violate the boundary partition.
func sameInvoiceNo(a, b string) bool {
	na := ocrCanonical(normalizeInvoiceNo(a))
	nb := ocrCanonical(normalizeInvoiceNo(b))
	if na == nb {
		return true
	}
	if len(na) == len(nb) {
		return false
	}
	return oneCharIndel(na, nb)
}

// oneCharIndel reports whether the shorter of a, b becomes the longer by
// inserting exactly one character.
func oneCharIndel(a, b string) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	if len(b)-len(a) != 1 {
		return false
	}
	for i := 0; i < len(a); i++ {
		if a[i] != b[i] {
			return a[i:] == b[i+1:]
		}
	}
	return true
}

// DetectBoundaries groups a Document's pages into InvoiceGroups: explicit
// invoice-number anchor first, page numbering continuity/reset second,
// header fingerprint similarity as the last resort. Every page gets
// exactly one BoundaryDecision entry in the returned log, appended in
// page order, regardless of which rule fired. Declared totals are never
// consulted, so redacting every total leaves the grouping unchanged.
func DetectBoundaries(doc *Document, profile Profile) ([]InvoiceGroup, []BoundaryDecision) {
	var groups []InvoiceGroup
	var log []BoundaryDecision
	var current *InvoiceGroup

	var havePrevPageNo bool
	var prevPageNo, prevPageTotal int
	var prevScheme string

	closeAndStart := func(i int, invNo string, pageNumbering string) {
		if current != nil {
			groups = append(groups, *current)
		}
		current = &InvoiceGroup{PageIndices: []int{i}, InvoiceNo: invNo, Source: BoundarySource{InvoiceNo: invNo, PageNumbering: pageNumbering}}
	}

	for i, p := range doc.Pages {
		invNo, invConf := findInvoiceNumber(p, profile)
		pageNo, pageTotal, scheme, pageNoMatched := findPageNumbering(p)
		fingerprint := headerFingerprint(p)
		strongInvNo := invConf > 0 && normalizeInvoiceNo(invNo) != ""

		sequentialContinuation := pageNoMatched && havePrevPageNo &&
			pageNo == prevPageNo+1 && pageTotal == prevPageTotal && scheme == prevScheme

		switch {
		case current == nil:
			closeAndStart(i, invNo, "")
			log = append(log, BoundaryDecision{Page: i, Decision: "start_group", Reasons: []string{"first page"}})

		// A continuation page that names an invoice number the group's
		// first page never did: adopt it rather than treating "something"
		// vs "nothing" as a number change.
		case strongInvNo && current.InvoiceNo == "" && sequentialContinuation:
			current.InvoiceNo = invNo
			current.Source.InvoiceNo = invNo
			current.PageIndices = append(current.PageIndices, i)
			log = append(log, BoundaryDecision{Page: i, Decision: "continue_group", Reasons: []string{"invoice_no_adopted", "page_numbering_continuity"}})

		// Step 1: strong invoice_no differs from the active group.
		case strongInvNo && !sameInvoiceNo(invNo, current.InvoiceNo):
			reasons := []string{"invoice_no_change"}
			if sequentialContinuation {
				reasons = append(reasons, "risk: page_no_conflict")
			}
			closeAndStart(i, invNo, "")
			log = append(log, BoundaryDecision{Page: i, Decision: "new_group", Reasons: reasons})

		// Step 2: strong invoice_no equals the active group, up to OCR
		// confusables and a single dropped character.
		case strongInvNo && sameInvoiceNo(invNo, current.InvoiceNo):
			current.PageIndices = append(current.PageIndices, i)
			log = append(log, BoundaryDecision{Page: i, Decision: "continue_group", Reasons: []string{"invoice number matches"}})

		// Step 3: no invoice_no, but page numbering continues the
		// previous page's sequence on the same scheme.
		case !strongInvNo && sequentialContinuation:
			current.PageIndices = append(current.PageIndices, i)
			log = append(log, BoundaryDecision{Page: i, Decision: "continue_group", Reasons: []string{"page_numbering_continuity"}})

		// Step 4: no invoice_no, and page numbering resets to 1.
		case !strongInvNo && pageNoMatched && pageNo == 1:
			closeAndStart(i, invNo, fmt.Sprintf("%d/%d", pageNo, pageTotal))
			log = append(log, BoundaryDecision{Page: i, Decision: "new_group", Reasons: []string{"page_no_reset_to_1"}})

		// All signals absent, or inconclusive: fall back to header
		// fingerprint similarity. Continuation requires the fingerprint
		// to match; a present-but-different fingerprint means two
		// distinct invoices, not a continuation.
		case fingerprint != "" && fingerprint == current.Source.HeaderFingerprint:
			current.PageIndices = append(current.PageIndices, i)
			log = append(log, BoundaryDecision{Page: i, Decision: "continue_group", Reasons: []string{"header_fingerprint_match"}})

		case fingerprint != "" && fingerprint != current.Source.HeaderFingerprint:
			closeAndStart(i, invNo, "")
			log = append(log, BoundaryDecision{Page: i, Decision: "new_group", Reasons: []string{"header_fingerprint_mismatch"}})

		default:
			current.PageIndices = append(current.PageIndices, i)
			log = append(log, BoundaryDecision{Page: i, Decision: "continue_group", Reasons: []string{"no contrary signal; default to continuation"}})
		}

		if current.Source.HeaderFingerprint == "" {
			current.Source.HeaderFingerprint = fingerprint
		}
		if pageNoMatched {
			havePrevPageNo = true
			prevPageNo, prevPageTotal, prevScheme = pageNo, pageTotal, scheme
		} else {
			havePrevPageNo = false
		}
	}
	if current != nil {
		groups = append(groups, *current)
	}
	return groups, log
}

// findInvoiceNumber looks for an InvoiceNoLabels anchor in a page's
// header segment and returns the token(s) that follow it on the same
// row, plus a confidence derived from the boundary weights. It never
// matches a row also containing a BlacklistLabels term.
func findInvoiceNumber(p Page, profile Profile) (string, float64) {
	header, ok := p.Segment(SegmentHeader)
	if !ok {
		return "", 0
	}
	for _, r := range p.SegmentRows(header) {
		text := r.Text()
		lower := strings.ToLower(text)
		if containsAnyLabel(lower, anchors.BlacklistLabels.Labels) {
			continue
		}
		for _, label := range anchors.InvoiceNoLabels.Labels {
			idx := strings.Index(lower, label)
			if idx < 0 {
				continue
			}
			rest := strings.TrimSpace(text[idx+len(label):])
			rest = strings.TrimLeft(rest, ":#- ")
			value := strings.TrimRight(firstWord(rest), ".,;:")
			if value == "" {
				continue
			}
			conf := profile.Boundary.LabelProximity + profile.Boundary.PositionInHeader
			if invoiceNoPlausible.MatchString(value) {
				conf += profile.Boundary.CharPlausibility
			}
			if conf > 1 {
				conf = 1
			}
			return value, conf
		}
	}
	return "", 0
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// findPageNumbering scans every row on the page for the first
// anchors.PageNoPatterns match, returning (pageNo, totalPages, scheme
// name, matched). The scheme name lets DetectBoundaries require the same
// numbering scheme rather than accepting a sequential match across two
// unrelated numbering conventions.
func findPageNumbering(p Page) (int, int, string, bool) {
	for _, r := range p.Rows {
		text := r.Text()
		for _, pat := range anchors.PageNoPatterns {
			m := pat.Pattern.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			a, err1 := strconv.Atoi(m[1])
			b, err2 := strconv.Atoi(m[2])
			if err1 == nil && err2 == nil {
				return a, b, pat.Name, true
			}
		}
	}
	return 0, 0, "", false
}

// headerFingerprint is a cheap layout signature: the first header row's
// normalized text, used as a tie-breaker when neither page numbering nor
// an invoice number anchor fired.
func headerFingerprint(p Page) string {
	header, ok := p.Segment(SegmentHeader)
	if !ok {
		return ""
	}
	rows := p.SegmentRows(header)
	if len(rows) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(rows[0].Text()))
}
