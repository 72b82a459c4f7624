// Package fakturaextrakt turns a PDF invoice (typically a Swedish commercial
// invoice, often EDI-origin) into validated InvoiceHeader and InvoiceLine
// records suitable for spreadsheet export and downstream querying.
//
// The package is the extraction core only: it consumes a byte stream plus a
// Profile and returns an in-memory result graph. I/O, progress reporting and
// serialization are the caller's responsibility.
package fakturaextrakt

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Token is a single positioned glyph run from a page's text layer.
// Coordinates are in PDF units with the origin at the page's lower-left
// corner, as github.com/ledongthuc/pdf's Content() reports them.
type Token struct {
	Text      string
	X, Y      float64
	Width     float64
	Height    float64
	PageIndex int
}

// Row is an ordered, baseline-aligned run of tokens built by the row
// grouper. Tokens are X-sorted; BaselineY is the row's representative Y
// coordinate (the median of its tokens' Y).
type Row struct {
	Tokens    []Token
	BaselineY float64
	PageIndex int
}

// Text concatenates a row's token text, space-separated, in X-order.
func (r Row) Text() string {
	var out string
	for i, t := range r.Tokens {
		if i > 0 {
			out += " "
		}
		out += t.Text
	}
	return out
}

// SegmentKind labels the zone a contiguous row range belongs to.
type SegmentKind int

const (
	SegmentHeader SegmentKind = iota
	SegmentItems
	SegmentFooter
)

func (k SegmentKind) String() string {
	switch k {
	case SegmentHeader:
		return "header"
	case SegmentItems:
		return "items"
	case SegmentFooter:
		return "footer"
	default:
		return "unknown"
	}
}

// Segment is a contiguous row range [RowStart, RowEnd) on one page tagged
// with a kind. Segments on a page are non-overlapping.
type Segment struct {
	Kind      SegmentKind
	RowStart  int
	RowEnd    int
	PageIndex int
	// Empty is set when the items zone contained no parseable rows.
	Empty bool
}

// Page is one document page: its raw tokens, the rows built from them, and
// the segments the Segmenter derived. A page is immutable once built.
type Page struct {
	Index         int
	Width, Height float64
	Tokens        []Token
	Rows          []Row
	Segments      []Segment
	TextLayerUsed bool
	RequiresOCR   bool
	// TextQuality is the fraction of tokens that are non-empty and carry
	// neither the U+FFFD replacement character nor a control rune below
	// U+0009, in [0,1]. Baseline order and the glyphs' character range
	// are not checked.
	TextQuality float64
}

// Segment returns the first segment of the given kind on the page, and
// whether one was found.
func (p Page) Segment(kind SegmentKind) (Segment, bool) {
	for _, s := range p.Segments {
		if s.Kind == kind {
			return s, true
		}
	}
	return Segment{}, false
}

// SegmentRows returns the rows covered by a segment.
func (p Page) SegmentRows(s Segment) []Row {
	if s.RowStart < 0 || s.RowEnd > len(p.Rows) || s.RowStart > s.RowEnd {
		return nil
	}
	return p.Rows[s.RowStart:s.RowEnd]
}

// Document is the immutable result of the PDF Loader: a page list plus
// per-page token/row/segment data. Tokens and Rows are referenced by index
// from downstream stages, never duplicated.
type Document struct {
	Pages []Page
}

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int {
	return len(d.Pages)
}

// BoundarySource records which signal(s) decided a page's group membership.
type BoundarySource struct {
	InvoiceNo         string
	PageNumbering     string
	HeaderFingerprint string
}

// InvoiceGroup is a contiguous run of page indices the Boundary Detector
// believes belong to one invoice.
type InvoiceGroup struct {
	PageIndices []int
	InvoiceNo   string
	Source      BoundarySource
}

// BoundaryDecision is one entry of the Boundary Detector's audit trail,
// appended in page order regardless of the rule that fired.
type BoundaryDecision struct {
	Page     int
	Decision string
	Reasons  []string
}

// BBox is a weak traceability reference to the source evidence for one
// extracted field: a page index plus a bounding box in PDF units. It
// requires no ownership of the underlying Token/Row.
type BBox struct {
	Page                 int
	X, Y, Width, Height float64
}

// FieldTrace pairs a bounding box with the row text it was read from, for
// human review.
type FieldTrace struct {
	BBox       BBox
	SourceText string
}

// InvoiceHeader holds the fields pulled from a header segment. TotalAmount
// is optional because some invoices only declare a total in the footer.
// Confidences and Traces are keyed by field name (HeaderFieldInvoiceNumber
// etc.) rather than being open maps of arbitrary shape.
type InvoiceHeader struct {
	InvoiceNumber string
	Supplier      string
	Date          time.Time
	Currency      string
	TotalAmount   *decimal.Decimal

	Confidences map[string]float64
	Traces      map[string]FieldTrace
}

// Header field names used as Confidences/Traces map keys.
const (
	HeaderFieldInvoiceNumber = "invoice_number"
	HeaderFieldSupplier      = "supplier"
	HeaderFieldDate          = "date"
	HeaderFieldCurrency      = "currency"
	HeaderFieldTotalAmount   = "total_amount"
)

// Confidence returns the recorded confidence for a header field, or 0 if
// the field was never populated.
func (h InvoiceHeader) Confidence(field string) float64 {
	if h.Confidences == nil {
		return 0
	}
	return h.Confidences[field]
}

// InvoiceLine is one parsed item row. LineTotal must satisfy
// LineTotal ≈ Quantity·UnitPrice·(1−Discount) within the configured
// amount tolerance; the Validator does not enforce this per-line. When the
// Line Extractor detects a gross mismatch it lowers the line's Confidence,
// and the Validator reports a line below 0.5 confidence as a warning.
type InvoiceLine struct {
	Description string
	Quantity    decimal.Decimal
	Unit        string
	UnitPrice   decimal.Decimal
	Discount    *decimal.Decimal
	LineTotal   decimal.Decimal
	Confidence  float64
	// SourceRows are the row indices (within the items segment's page)
	// this line was built from; more than one when a wrapped description
	// merged a continuation row into the line.
	SourceRows []int
	PageIndex  int
}

// ValidationStatus is the outcome of reconciling lines against the
// declared total, plus critical-field presence.
type ValidationStatus int

const (
	StatusOK ValidationStatus = iota
	StatusPartial
	StatusReview
	StatusFailed
)

func (s ValidationStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusPartial:
		return "PARTIAL"
	case StatusReview:
		return "REVIEW"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// ValidationResult is a pure function of lines, declared total, critical
// field presence and the profile's thresholds.
type ValidationResult struct {
	Status        ValidationStatus
	LinesSum      decimal.Decimal
	DeclaredTotal *decimal.Decimal
	Diff          decimal.Decimal
	Errors        []string
	Warnings      []string
}

// EDISignals is the traceable evidence behind an edi_like determination:
// every matched anchor/pattern is echoed back, never just a boolean.
type EDISignals struct {
	MatchedAnchors  []string
	MatchedPatterns []string
	TextQuality     float64
	// tableRowCount is the number of rows matching a table pattern
	// (currently numeric-row density). Unexported: it is evaluation
	// plumbing for IsEDILike, not part of the field's traceability
	// contract, which is the named anchors/patterns above.
	tableRowCount int
}

// Reason flags returned by EvaluateAIPolicy. These are the only valid
// values; the gate never invents a flag outside this set.
const (
	ReasonValidationOK          = "validation_ok"
	ReasonEDILikeBlocked        = "edi_like_blocked"
	ReasonForceReview           = "force_review"
	ReasonFallbackOK            = "fallback_ok"
	ReasonFallbackFailed        = "fallback_failed"
	ReasonLowTextQuality        = "low_text_quality"
	ReasonMissingCriticalFields = "missing_critical_fields"
	ReasonNoTrigger             = "no_trigger"
)

// PolicyVersion is bumped whenever the rule order or semantics of
// EvaluateAIPolicy change, so a caller can detect drift between what a
// stored decision meant and what the gate means today.
const PolicyVersion = "ai-policy/1"

// AIPolicyDecision is the pure output of EvaluateAIPolicy.
type AIPolicyDecision struct {
	AllowAI       bool
	ReasonFlags   []string
	EDILike       bool
	EDISignals    EDISignals
	PolicyVersion string
}

// ExtractionDetail is the per-invoice audit trail attached to every result.
type ExtractionDetail struct {
	MethodUsed          string
	TextLayerUsed       bool
	TextQuality         float64
	AIPolicy            *AIPolicyDecision
	BoundaryDecisionLog []BoundaryDecision
}

// InvoiceResult is the core's output unit: one detected invoice's header,
// lines, validation outcome and audit trail. It exclusively owns these
// substructures.
type InvoiceResult struct {
	RunID            uuid.UUID
	Header           InvoiceHeader
	Lines            []InvoiceLine
	Validation       ValidationResult
	ExtractionDetail ExtractionDetail
}
