package fakturaextrakt

import (
	"context"
)

// AIConsultRequest is everything the AI fallback stage hands to an
// AIProvider: the raw row text it extracted (so the provider can ground
// its answer in the same evidence the deterministic path saw) plus which
// fields are missing or low-confidence.
type AIConsultRequest struct {
	RunID         string
	HeaderRowText []string
	ItemRowText   []string
	MissingFields []string
	PartialHeader InvoiceHeader
}

// AIConsultResult is the provider's answer: a possibly-partial header
// correction plus a confidence per field it touched. The core never
// trusts a field the provider didn't explicitly return a confidence for.
type AIConsultResult struct {
	Header      InvoiceHeader
	Lines       []InvoiceLine
	Confidences map[string]float64
	Notes       []string
}

// AIProvider is the opaque handle the core accepts for AI-assisted
// extraction. The core never imports a concrete AI SDK; aiprovider/openai
// supplies one concrete implementation.
type AIProvider interface {
	Consult(ctx context.Context, req AIConsultRequest) (AIConsultResult, error)
}

// ApplyAIResult merges a provider's result into a header/lines pair,
// only overwriting a field when the provider's confidence for it exceeds
// what the deterministic extractor already had — the AI path augments,
// it never silently downgrades an existing high-confidence field.
func ApplyAIResult(h InvoiceHeader, lines []InvoiceLine, res AIConsultResult) (InvoiceHeader, []InvoiceLine) {
	merged := h
	if merged.Confidences == nil {
		merged.Confidences = make(map[string]float64)
	}
	if merged.Traces == nil {
		merged.Traces = make(map[string]FieldTrace)
	}

	for field, conf := range res.Confidences {
		if conf <= merged.Confidence(field) {
			continue
		}
		switch field {
		case HeaderFieldInvoiceNumber:
			merged.InvoiceNumber = res.Header.InvoiceNumber
		case HeaderFieldSupplier:
			merged.Supplier = res.Header.Supplier
		case HeaderFieldDate:
			merged.Date = res.Header.Date
		case HeaderFieldCurrency:
			merged.Currency = res.Header.Currency
		case HeaderFieldTotalAmount:
			if res.Header.TotalAmount != nil {
				v := *res.Header.TotalAmount
				merged.TotalAmount = &v
			}
		default:
			continue
		}
		merged.Confidences[field] = conf
	}

	if len(lines) == 0 && len(res.Lines) > 0 {
		lines = res.Lines
	}

	return merged, lines
}
