package fakturaextrakt

import (
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// tokensFromPage turns a page's positioned text elements into word-level
// Tokens. The library reports one element per shown text run, often a
// single glyph, so elements on a shared baseline are merged back into
// words whenever the horizontal gap between them is smaller than a
// fraction of the font size. The library can panic on malformed content
// streams; that degrades the page to no tokens (requires OCR) instead of
// failing the document.
func tokensFromPage(page pdf.Page, pageIndex int) (tokens []Token) {
	defer func() {
		if r := recover(); r != nil {
			tokens = nil
		}
	}()
	if page.V.IsNull() {
		return nil
	}

	content := page.Content()
	texts := make([]pdf.Text, 0, len(content.Text))
	for _, t := range content.Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		texts = append(texts, t)
	}
	if len(texts) == 0 {
		return nil
	}
	sort.SliceStable(texts, func(i, j int) bool {
		if texts[i].Y != texts[j].Y {
			return texts[i].Y > texts[j].Y
		}
		return texts[i].X < texts[j].X
	})

	var out []Token
	cur := tokenFromText(texts[0], pageIndex)
	for _, t := range texts[1:] {
		if sameBaseline(cur, t) && t.X-(cur.X+cur.Width) <= wordJoinGap(t.FontSize) {
			cur.Text += t.S
			cur.Width = t.X + t.W - cur.X
			if t.FontSize > cur.Height {
				cur.Height = t.FontSize
			}
			continue
		}
		out = append(out, cur)
		cur = tokenFromText(t, pageIndex)
	}
	out = append(out, cur)
	return out
}

func tokenFromText(t pdf.Text, pageIndex int) Token {
	height := t.FontSize
	if height <= 0 {
		height = 10
	}
	return Token{Text: t.S, X: t.X, Y: t.Y, Width: t.W, Height: height, PageIndex: pageIndex}
}

// sameBaseline: runs of one word share their Y exactly, but allow a
// small drift for superscripts and slightly skewed scans.
func sameBaseline(cur Token, t pdf.Text) bool {
	tol := 0.2 * cur.Height
	if t.FontSize > cur.Height {
		tol = 0.2 * t.FontSize
	}
	return math.Abs(t.Y-cur.Y) <= tol
}

// wordJoinGap is the widest horizontal gap still considered intra-word.
// An inter-word space at invoice font sizes is at least a quarter em, so
// anything under a fifth of the font size joins.
func wordJoinGap(fontSize float64) float64 {
	if fontSize <= 0 {
		fontSize = 10
	}
	return 0.2 * fontSize
}
