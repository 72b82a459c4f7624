package fakturaextrakt

import (
	"sort"
)

// buildRows groups each page's tokens into Rows by Y-proximity clustering:
// tokens within ε_y of the running cluster baseline join the same row,
// where ε_y = 0.4 * median token height on the page. Rows are
// stored back onto the page in top-to-bottom order, tokens X-sorted
// within each row.
func buildRows(pages []Page, profile Profile) error {
	for i := range pages {
		p := &pages[i]
		if len(p.Tokens) == 0 {
			continue
		}
		epsilon := 0.4 * medianHeight(p.Tokens)
		if epsilon <= 0 {
			epsilon = 1.0
		}

		sorted := make([]Token, len(p.Tokens))
		copy(sorted, p.Tokens)
		sort.SliceStable(sorted, func(a, b int) bool {
			return sorted[a].Y > sorted[b].Y
		})

		var rows []Row
		var current []Token
		baseline := sorted[0].Y
		for _, t := range sorted {
			if len(current) > 0 && baseline-t.Y > epsilon {
				rows = append(rows, finishRow(current, p.Index))
				current = nil
			}
			current = append(current, t)
			baseline = medianY(current)
		}
		if len(current) > 0 {
			rows = append(rows, finishRow(current, p.Index))
		}

		p.Rows = rows
	}
	return nil
}

func finishRow(tokens []Token, pageIndex int) Row {
	sort.SliceStable(tokens, func(i, j int) bool { return tokens[i].X < tokens[j].X })
	cp := make([]Token, len(tokens))
	copy(cp, tokens)
	return Row{Tokens: cp, BaselineY: medianY(cp), PageIndex: pageIndex}
}

func medianHeight(tokens []Token) float64 {
	heights := make([]float64, 0, len(tokens))
	for _, t := range tokens {
		if t.Height > 0 {
			heights = append(heights, t.Height)
		}
	}
	return median(heights)
}

func medianY(tokens []Token) float64 {
	ys := make([]float64, len(tokens))
	for i, t := range tokens {
		ys[i] = t.Y
	}
	return median(ys)
}

func median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
