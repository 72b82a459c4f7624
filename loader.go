package fakturaextrakt

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// Load parses raw into a Document: one Page per PDF page, each carrying
// its positioned Tokens. Pages come from github.com/ledongthuc/pdf,
// whose Content() exposes each shown text run with its X/Y position and
// width; tokensFromPage groups those runs into word Tokens. pdfcpu is
// kept for what ledongthuc/pdf does not cover: embedded-file attachment
// access (ExtractEmbeddedXML below).
func Load(ctx context.Context, raw []byte, profile Profile) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, New(KindCancelled, "load cancelled before start")
	}

	reader, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, Wrap(KindPdfUnreadable, err, "reading PDF container")
	}
	pageCount := reader.NumPage()
	if pageCount == 0 {
		return nil, New(KindEmptyDocument, "document has zero pages")
	}

	pages := make([]Page, 0, pageCount)
	for i := 0; i < pageCount; i++ {
		if err := ctx.Err(); err != nil {
			return nil, New(KindCancelled, fmt.Sprintf("load cancelled at page %d", i))
		}

		tokens := tokensFromPage(reader.Page(i+1), i)
		sortTokensReadingOrder(tokens)
		textLayerUsed := len(tokens) > 0
		if !textLayerUsed {
			profile.Logger.Debug().Int("page", i).Msg("no extractable text content")
		}

		quality := textQualityOf(tokens)
		if len(tokens) < profile.Loader.MinTokens {
			textLayerUsed = false
		}
		requiresOCR := !textLayerUsed || quality < profile.Loader.MinTextQuality

		// A4 portrait in PDF points; the page's own media box is not
		// wired here because token X/Y are already stored in the page's
		// own PDF coordinate space and downstream stages never need the
		// page's Width/Height to interpret them.
		pages = append(pages, Page{
			Index:         i,
			Width:         595.28,
			Height:        841.89,
			Tokens:        tokens,
			TextLayerUsed: textLayerUsed,
			RequiresOCR:   requiresOCR,
			TextQuality:   quality,
		})
	}

	if err := buildRows(pages, profile); err != nil {
		return nil, err
	}

	return &Document{Pages: pages}, nil
}

// textQualityOf estimates the fraction of tokens that look like
// plausible, well-formed text: non-empty and free of the replacement
// character and of control runes below U+0009 (tab, newline and the
// higher control runes are accepted). The result feeds both the requires-OCR decision
// and the AI policy gate's text-quality threshold.
func textQualityOf(tokens []Token) float64 {
	if len(tokens) == 0 {
		return 0
	}
	good := 0
	for _, t := range tokens {
		if t.Text == "" {
			continue
		}
		plausible := true
		for _, r := range t.Text {
			if r == '�' || r < 0x09 {
				plausible = false
				break
			}
		}
		if plausible {
			good++
		}
	}
	return float64(good) / float64(len(tokens))
}

// sortTokensReadingOrder sorts tokens top-to-bottom (descending Y, PDF
// coordinates have the origin at the bottom) then left-to-right, the
// order the row grouper expects to consume them in.
func sortTokensReadingOrder(tokens []Token) {
	sort.SliceStable(tokens, func(i, j int) bool {
		if tokens[i].Y != tokens[j].Y {
			return tokens[i].Y > tokens[j].Y
		}
		return tokens[i].X < tokens[j].X
	})
}

// ExtractEmbeddedXML returns the bytes of the first ZUGFeRD/Factur-X-style
// XML attachment found in raw, or nil if the PDF carries none. This is
// the Compare Path's second source when one exists.
func ExtractEmbeddedXML(raw []byte) ([]byte, error) {
	attachments, err := api.ExtractAttachmentsRaw(bytes.NewReader(raw), "", nil, nil)
	if err != nil {
		return nil, Wrap(KindPdfUnreadable, err, "reading PDF attachments")
	}

	knownNames := []string{"factur-x.xml", "ZUGFeRD-invoice.xml", "zugferd-invoice.xml", "xrechnung.xml"}
	for _, a := range attachments {
		for _, known := range knownNames {
			if a.FileName == known {
				return readAttachment(a)
			}
		}
	}
	for _, a := range attachments {
		if strings.HasSuffix(strings.ToLower(a.FileName), ".xml") {
			return readAttachment(a)
		}
	}
	return nil, nil
}

func readAttachment(a model.Attachment) ([]byte, error) {
	data, err := io.ReadAll(a)
	if err != nil {
		return nil, Wrap(KindPdfUnreadable, err, "reading attachment "+a.FileName)
	}
	return data, nil
}
