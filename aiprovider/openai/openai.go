// Package openai implements fakturaextrakt.AIProvider against
// github.com/openai/openai-go: a retry loop around a JSON-constrained
// chat completion, flexible parsing of the model's reply, and a
// confidence floor before any field is trusted. The core package never
// imports this package or openai-go directly; it only sees the
// fakturaextrakt.AIProvider interface.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/kvitto/fakturaextrakt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config tunes the adapter's model choice, retry budget and the minimum
// confidence the model must self-report before a field is trusted at all
// (a floor applied before fakturaextrakt.ApplyAIResult's own
// higher-confidence-wins merge).
type Config struct {
	Model          string
	MaxRetries     int
	Temperature    float64
	MinConfidence  float64
	CompanyContext string
}

// DefaultConfig: three attempts in all (MaxRetries counts every request,
// the first included), a low temperature for a
// deterministic-leaning extraction task, gpt-4o-mini as a
// cost-appropriate default model.
func DefaultConfig() Config {
	return Config{
		Model:         "gpt-4o-mini",
		MaxRetries:    3,
		Temperature:   0.1,
		MinConfidence: 0.3,
	}
}

// Provider adapts an openai-go client to fakturaextrakt.AIProvider.
type Provider struct {
	client openai.Client
	config Config
	logger zerolog.Logger
}

// New builds a Provider from an API key and optional overrides. A zero
// Config is replaced with DefaultConfig's values field by field.
func New(apiKey string, cfg Config, logger zerolog.Logger) *Provider {
	if cfg.Model == "" {
		cfg.Model = DefaultConfig().Model
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultConfig().MaxRetries
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultConfig().MinConfidence
	}
	return &Provider{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		config: cfg,
		logger: logger,
	}
}

// modelResponse is the JSON shape the system prompt constrains the
// model's reply to. Confidences arrive as a nested object rather than
// one-field-per-confidence so a partially-populated answer (the model
// only filled in what it was asked about) still parses.
type modelResponse struct {
	InvoiceNumber string          `json:"invoice_number"`
	Supplier      string          `json:"supplier"`
	Date          string          `json:"date"`
	Currency      string          `json:"currency"`
	TotalAmount   string          `json:"total_amount"`
	Confidences   map[string]any  `json:"confidences"`
	Notes         []string        `json:"notes"`
	LineItems     []modelLineItem `json:"line_items"`
}

type modelLineItem struct {
	Description string `json:"description"`
	Quantity    string `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	LineTotal   string `json:"line_total"`
}

// Consult implements fakturaextrakt.AIProvider.
func (p *Provider) Consult(ctx context.Context, req fakturaextrakt.AIConsultRequest) (fakturaextrakt.AIConsultResult, error) {
	prompt := p.buildPrompt(req)

	var lastErr error
	for attempt := 1; attempt <= p.config.MaxRetries; attempt++ {
		resp, err := p.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:       openai.ChatModel(p.config.Model),
			Temperature: openai.Float(p.config.Temperature),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(p.systemPrompt()),
				openai.UserMessage(prompt),
			},
			ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
				OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
			},
		})
		if err != nil {
			lastErr = err
			p.logger.Warn().Err(err).Int("attempt", attempt).Str("run_id", req.RunID).Msg("ai consult request failed, retrying")
			continue
		}
		if len(resp.Choices) == 0 {
			lastErr = fmt.Errorf("openai: empty choices in response")
			continue
		}

		content := resp.Choices[0].Message.Content
		var raw map[string]any
		if err := json.Unmarshal([]byte(content), &raw); err != nil {
			lastErr = fmt.Errorf("openai: parsing model response: %w", err)
			p.logger.Warn().Err(err).Int("attempt", attempt).Msg("model returned non-JSON, retrying")
			continue
		}

		mr := decodeModelResponse(raw)
		result, err := p.toConsultResult(mr)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}

	return fakturaextrakt.AIConsultResult{}, fmt.Errorf("openai: all %d attempts failed: %w", p.config.MaxRetries, lastErr)
}

func decodeModelResponse(raw map[string]any) modelResponse {
	var mr modelResponse
	mr.InvoiceNumber = getString(raw, "invoice_number")
	mr.Supplier = getString(raw, "supplier")
	mr.Date = getString(raw, "date")
	mr.Currency = getString(raw, "currency")
	mr.TotalAmount = getString(raw, "total_amount")
	if notes, ok := raw["notes"].([]any); ok {
		for _, n := range notes {
			if s, ok := n.(string); ok {
				mr.Notes = append(mr.Notes, s)
			}
		}
	}
	if conf, ok := raw["confidences"].(map[string]any); ok {
		mr.Confidences = conf
	}
	if items, ok := raw["line_items"].([]any); ok {
		for _, it := range items {
			m, ok := it.(map[string]any)
			if !ok {
				continue
			}
			mr.LineItems = append(mr.LineItems, modelLineItem{
				Description: getString(m, "description"),
				Quantity:    getString(m, "quantity"),
				UnitPrice:   getString(m, "unit_price"),
				LineTotal:   getString(m, "line_total"),
			})
		}
	}
	return mr
}

// toConsultResult converts the flexibly-parsed modelResponse into an
// AIConsultResult, normalizing amount strings through
// fakturaextrakt.NormalizeAmount the same way the deterministic path
// does, so an AI-sourced total is never a bare float.
func (p *Provider) toConsultResult(mr modelResponse) (fakturaextrakt.AIConsultResult, error) {
	header := fakturaextrakt.InvoiceHeader{
		InvoiceNumber: mr.InvoiceNumber,
		Supplier:      mr.Supplier,
		Currency:      mr.Currency,
	}
	dateParsed := false
	if mr.Date != "" {
		if d, err := time.Parse("2006-01-02", mr.Date); err == nil {
			header.Date = d
			dateParsed = true
		}
	}
	if mr.TotalAmount != "" {
		if amount, err := fakturaextrakt.NormalizeAmount(mr.TotalAmount); err == nil {
			header.TotalAmount = &amount
		}
	}

	confidences := make(map[string]float64, len(mr.Confidences))
	for field, raw := range mr.Confidences {
		if field == fakturaextrakt.HeaderFieldDate && !dateParsed {
			continue
		}
		c := parseConfidence(raw)
		if c < p.config.MinConfidence {
			continue
		}
		confidences[field] = c
	}

	// Model-supplied line items are only adopted when the deterministic
	// pass produced none at all, so their confidence stays modest.
	var lines []fakturaextrakt.InvoiceLine
	for _, li := range mr.LineItems {
		total, err := fakturaextrakt.NormalizeAmount(li.LineTotal)
		if err != nil {
			continue
		}
		qty, err := fakturaextrakt.NormalizeAmount(li.Quantity)
		if err != nil {
			qty = decimal.NewFromInt(1)
		}
		price, _ := fakturaextrakt.NormalizeAmount(li.UnitPrice)
		lines = append(lines, fakturaextrakt.InvoiceLine{
			Description: li.Description,
			Quantity:    qty,
			UnitPrice:   price,
			LineTotal:   total,
			Confidence:  0.5,
		})
	}

	return fakturaextrakt.AIConsultResult{
		Header:      header,
		Lines:       lines,
		Confidences: confidences,
		Notes:       mr.Notes,
	}, nil
}

// parseConfidence handles confidence arriving as a JSON string or
// float, since models are inconsistent about quoting numbers.
func parseConfidence(v any) float64 {
	switch c := v.(type) {
	case float64:
		return c
	case string:
		f, err := strconv.ParseFloat(c, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func (p *Provider) systemPrompt() string {
	company := p.config.CompanyContext
	if company == "" {
		company = "en svensk redovisningsbyrå"
	}
	return fmt.Sprintf(`Du granskar en svensk leverantörsfaktura åt %s. Du får OCR-extraherad
text rad för rad och en lista med fält som den deterministiska extraktionen inte
kunde fastställa med tillräcklig säkerhet.

Svara ENDAST med ett JSON-objekt med nycklarna invoice_number, supplier, date
(ISO 8601), currency (ISO 4217), total_amount (decimaltal som sträng, punkt som
decimaltecken), notes (lista med strängar), line_items (lista med objekt med
nycklarna description, quantity, unit_price, line_total) och confidences (ett
objekt där varje fält du fyllt i får ett konfidensvärde 0.0-1.0). Fyll bara i fält du
faktiskt kan utläsa av den bifogade texten; lämna okända fält som tomma
strängar och uteslut dem ur confidences.`, company)
}

func (p *Provider) buildPrompt(req fakturaextrakt.AIConsultRequest) string {
	prompt := fmt.Sprintf("Saknade eller osäkra fält: %v\n\n", req.MissingFields)
	prompt += "Befintlig partiell header:\n"
	prompt += fmt.Sprintf("  invoice_number: %q\n", req.PartialHeader.InvoiceNumber)
	prompt += fmt.Sprintf("  supplier: %q\n", req.PartialHeader.Supplier)
	date := ""
	if !req.PartialHeader.Date.IsZero() {
		date = req.PartialHeader.Date.Format("2006-01-02")
	}
	prompt += fmt.Sprintf("  date: %q\n", date)
	prompt += fmt.Sprintf("  currency: %q\n", req.PartialHeader.Currency)
	prompt += "\nHeader-rader:\n"
	for _, row := range req.HeaderRowText {
		prompt += "  " + row + "\n"
	}
	prompt += "\nRadposter:\n"
	for _, row := range req.ItemRowText {
		prompt += "  " + row + "\n"
	}
	return prompt
}
