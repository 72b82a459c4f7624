package fakturaextrakt

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kvitto/fakturaextrakt/calibration"
)

// defaultAITimeout bounds a single AI consult call. The consult is the
// pipeline's only blocking external call, so it carries its own absolute
// timeout on top of the caller's context.
const defaultAITimeout = 30 * time.Second

// ProgressEvent is one checkpoint the pipeline reports through an
// optional callback: which stage just finished, and for which page, so a
// caller can drive a progress bar without polling.
type ProgressEvent struct {
	RunID      uuid.UUID
	Stage      string
	PageIndex  int
	TotalPages int
}

// ProgressFunc receives ProgressEvents. A nil ProgressFunc is valid and
// simply means no progress reporting.
type ProgressFunc func(ProgressEvent)

func report(fn ProgressFunc, ev ProgressEvent) {
	if fn != nil {
		fn(ev)
	}
}

// Extract runs the full pipeline over raw PDF bytes: load,
// tokenize, segment, detect invoice boundaries, extract header/lines per
// group, reconcile, run deterministic fallback, evaluate the AI policy
// gate and, if AllowAI and a provider is supplied, consult it — returning
// one InvoiceResult per detected invoice group.
func Extract(ctx context.Context, raw []byte, profile Profile, ai AIProvider, onProgress ProgressFunc) ([]InvoiceResult, error) {
	runID := uuid.New()

	doc, err := Load(ctx, raw, profile)
	if err != nil {
		return nil, err
	}
	report(onProgress, ProgressEvent{RunID: runID, Stage: "load", TotalPages: doc.PageCount()})

	return extractDocument(ctx, runID, doc, raw, profile, ai, onProgress)
}

// ExtractDocument runs the pipeline over an already-loaded Document —
// the entry point for a caller that owns its loader (or an OCR engine)
// and supplies Token geometry itself. Pages need only carry Tokens;
// rows and segments are derived here. raw may be nil when the original
// PDF bytes are unavailable, in which case the Compare Path has no
// embedded-XML source to draw on.
func ExtractDocument(ctx context.Context, doc *Document, raw []byte, profile Profile, ai AIProvider, onProgress ProgressFunc) ([]InvoiceResult, error) {
	return extractDocument(ctx, uuid.New(), doc, raw, profile, ai, onProgress)
}

func extractDocument(ctx context.Context, runID uuid.UUID, doc *Document, raw []byte, profile Profile, ai AIProvider, onProgress ProgressFunc) ([]InvoiceResult, error) {
	logger := stageLogger(profile.Logger, runID.String(), "extract")

	if doc == nil || doc.PageCount() == 0 {
		return nil, New(KindEmptyDocument, "document has zero pages")
	}
	if err := buildRows(doc.Pages, profile); err != nil {
		return nil, err
	}
	SegmentPages(doc, profile)
	report(onProgress, ProgressEvent{RunID: runID, Stage: "segment", TotalPages: doc.PageCount()})

	groups, boundaryLog := DetectBoundaries(doc, profile)
	report(onProgress, ProgressEvent{RunID: runID, Stage: "boundary", TotalPages: doc.PageCount()})

	results := make([]InvoiceResult, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return results, New(KindCancelled, "extraction cancelled mid-run")
		}
		res, err := extractGroup(ctx, doc, g, raw, profile, ai, runID, boundaryLog)
		if err != nil {
			if e, ok := err.(*Error); ok && e.Kind.Fatal() {
				return results, err
			}
			logger.Warn().Err(err).Msg("group extraction recovered with degraded result")
		}
		results = append(results, res)
		report(onProgress, ProgressEvent{RunID: runID, Stage: "invoice_complete", PageIndex: g.PageIndices[0], TotalPages: doc.PageCount()})
	}

	return results, nil
}

func extractGroup(ctx context.Context, doc *Document, g InvoiceGroup, raw []byte, profile Profile, ai AIProvider, runID uuid.UUID, boundaryLog []BoundaryDecision) (InvoiceResult, error) {
	firstPage := doc.Pages[g.PageIndices[0]]

	header := ExtractHeader(firstPage, g, profile)
	if header.TotalAmount == nil {
		// The declared total lives in a footer, and on a multi-page
		// invoice that footer is usually on the last page.
		for i := len(g.PageIndices) - 1; i >= 0; i-- {
			ft, err := ExtractFooterTotal(doc.Pages[g.PageIndices[i]])
			if err != nil || ft == nil {
				continue
			}
			header.TotalAmount = &ft.Value
			header.Confidences[HeaderFieldTotalAmount] = ft.Confidence
			header.Traces[HeaderFieldTotalAmount] = ft.Trace
			break
		}
	}

	firstPageLines, lineWarnings := ExtractLines(firstPage, LineExtractionOptions{})
	lines := append([]InvoiceLine{}, firstPageLines...)
	for _, pageIdx := range g.PageIndices[1:] {
		pageLines, pageWarnings := ExtractLines(doc.Pages[pageIdx], LineExtractionOptions{})
		lines = append(lines, pageLines...)
		lineWarnings = append(lineWarnings, pageWarnings...)
	}

	methodUsed := "deterministic"
	header, lines, validation, fallbackStrategy, fallbackAttempted := runFallbackAcrossGroup(firstPage, header, lines, len(firstPageLines), profile)
	validation.Warnings = append(validation.Warnings, lineWarnings...)
	fallbackPassed := fallbackStrategy != "" && validation.Status == StatusOK
	if fallbackStrategy != "" {
		methodUsed = "deterministic_fallback:" + string(fallbackStrategy)
	}

	if profile.Compare.Enabled {
		_, _, winner := RunComparePath(firstPage, g, raw, profile)
		if winner.Score > scoreCandidate(header, lines, validation) {
			header, lines, validation = winner.Header, winner.Lines, winner.Validation
			methodUsed = "compare_path:" + winner.Source
			fallbackPassed = false
		}
	}

	groupPages := make([]Page, len(g.PageIndices))
	for i, idx := range g.PageIndices {
		groupPages[i] = doc.Pages[idx]
	}
	sig := EvaluateEDISignals(groupPages, profile.EDIAnchors)
	ediLike := IsEDILike(groupPages, sig, profile.EDIAnchors)
	policy := EvaluateAIPolicy(firstPage.TextLayerUsed, sig.TextQuality, validation, ediLike, sig, profile.AIPolicy, fallbackAttempted, fallbackPassed)
	if ediLike && !profile.AIPolicy.AllowAIForEDI && profile.AIPolicy.ForceReviewOnEDIFail && validation.Status != StatusOK {
		validation.Status = StatusReview
	}

	if policy.AllowAI && ai != nil {
		req := AIConsultRequest{
			RunID:         runID.String(),
			HeaderRowText: rowTexts(firstPage, SegmentHeader),
			ItemRowText:   rowTexts(firstPage, SegmentItems),
			MissingFields: validation.Errors,
			PartialHeader: header,
		}
		consultCtx, cancel := context.WithTimeout(ctx, defaultAITimeout)
		res, err := ai.Consult(consultCtx, req)
		cancel()
		if err != nil {
			profile.Logger.Warn().Err(err).Msg("ai consult failed, keeping deterministic result")
			validation.Warnings = append(validation.Warnings, "ai consult failed: "+err.Error())
		} else {
			header, lines = ApplyAIResult(header, lines, res)
			validation = Validate(header, lines, profile)
			methodUsed = "ai_assisted"
		}
	}

	if profile.Calibration.Enabled && profile.Calibration.Registry != nil {
		applyCalibration(&header, profile.Calibration.Registry)
	}

	return InvoiceResult{
		RunID:      runID,
		Header:     header,
		Lines:      lines,
		Validation: validation,
		ExtractionDetail: ExtractionDetail{
			MethodUsed:          methodUsed,
			TextLayerUsed:       firstPage.TextLayerUsed,
			TextQuality:         firstPage.TextQuality,
			AIPolicy:            &policy,
			BoundaryDecisionLog: filterBoundaryLog(boundaryLog, g.PageIndices),
		},
	}, nil
}

// runFallbackAcrossGroup runs RunFallback scoped to the group's first
// page (where the header lives) but validates against the group's full
// line set, re-extracting the first page's lines only when a fallback
// strategy actually improves reconciliation — continuation pages keep
// their original lines either way. The returned bool reports whether a
// fallback attempt was made at all (the first return's validation was
// not already OK), independent of whether any strategy improved on it —
// EvaluateAIPolicy's fallbackAttempted/fallbackPassed inputs need to
// distinguish "never tried" from "tried and failed".
func runFallbackAcrossGroup(firstPage Page, header InvoiceHeader, lines []InvoiceLine, firstPageLineCount int, profile Profile) (InvoiceHeader, []InvoiceLine, ValidationResult, FallbackStrategy, bool) {
	result := Validate(header, lines, profile)
	if result.Status == StatusOK {
		return header, lines, result, "", false
	}
	_, retriedFirstPageLines, _, strategy := RunFallback(firstPage, header, lines, profile)
	if strategy == "" {
		return header, lines, result, "", true
	}
	retried := append(append([]InvoiceLine{}, retriedFirstPageLines...), lines[firstPageLineCount:]...)
	retriedResult := Validate(header, retried, profile)
	if betterValidation(retriedResult, result) {
		return header, retried, retriedResult, strategy, true
	}
	return header, lines, result, "", true
}

func rowTexts(p Page, kind SegmentKind) []string {
	seg, ok := p.Segment(kind)
	if !ok {
		return nil
	}
	rows := p.SegmentRows(seg)
	texts := make([]string, len(rows))
	for i, r := range rows {
		texts[i] = r.Text()
	}
	return texts
}

func filterBoundaryLog(log []BoundaryDecision, pages []int) []BoundaryDecision {
	set := make(map[int]bool, len(pages))
	for _, p := range pages {
		set[p] = true
	}
	var out []BoundaryDecision
	for _, d := range log {
		if set[d.Page] {
			out = append(out, d)
		}
	}
	return out
}

// supplierModels is the supplier-aware lookup a calibration.Registry may
// additionally implement (calibration.SupplierFieldRegistry does); when
// present, the extracted supplier name keys the full
// (supplier, field) → (supplier, *) → (*, field) → (*, *) fallback chain.
type supplierModels interface {
	ModelForSupplier(supplier, field string) *calibration.Model
}

// applyCalibration overwrites each populated header field's confidence
// with its calibrated counterpart, when the registry holds a fit model
// for that field. Fields the registry has no model for are left at their
// raw confidence; calibration only ever adjusts fields it has evidence
// for.
func applyCalibration(h *InvoiceHeader, registry calibration.Registry) {
	bySupplier, _ := registry.(supplierModels)
	for field, raw := range h.Confidences {
		var model *calibration.Model
		if bySupplier != nil {
			model = bySupplier.ModelForSupplier(h.Supplier, field)
		} else {
			model = registry.ModelFor(field)
		}
		if model == nil {
			continue
		}
		h.Confidences[field] = model.Calibrate(raw)
	}
}
