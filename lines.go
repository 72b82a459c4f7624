package fakturaextrakt

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// LineExtractionOptions selects the alternate parsing behaviors the
// Deterministic Fallback's strategies toggle. The zero value is the
// strict first-pass configuration.
type LineExtractionOptions struct {
	// WidenColumnTolerance doubles the X-cluster merge tolerance, for
	// tables whose numeric columns drift enough that the strict pass
	// splits one column in two.
	WidenColumnTolerance bool
	// MergeShortRows treats a row whose numeric run cannot supply
	// line_total plus quantity/unit_price as a description continuation
	// of the prior line instead of dropping it with a warning.
	MergeShortRows bool
	// LooseNumbers parses amounts with NormalizeAmountLoose, accepting
	// inconsistent digit grouping the strict parser rejects.
	LooseNumbers bool
}

func (o LineExtractionOptions) relaxed() bool {
	return o.WidenColumnTolerance || o.MergeShortRows || o.LooseNumbers
}

// ExtractLines reads InvoiceLine records out of a page's items segment.
// Column roles (quantity, unit_price, discount, line_total) are inferred
// by clustering the X-centers of numeric tokens across all items rows,
// then reading each row's own numbers against those shared clusters —
// not by guessing from a single row's numeric token count in isolation,
// which misassigns columns as soon as one row's count drifts from the
// invoice's modal layout.
//
// A row with no trailing numeric run is treated as a wrapped
// continuation of the previous line's description. A row whose numeric
// run is too short to supply both line_total and one of
// {quantity, unit_price} is neither a valid line nor a continuation: it
// is dropped and reported in the returned warnings (or merged as a
// continuation when opts.MergeShortRows is set). A line is emitted only
// if line_total parses and at least one of quantity and unit_price
// parses.
func ExtractLines(p Page, opts LineExtractionOptions) ([]InvoiceLine, []string) {
	items, ok := p.Segment(SegmentItems)
	if !ok || items.Empty {
		return nil, nil
	}
	rows := p.SegmentRows(items)

	runs := make([][]numericCell, len(rows))
	for i, r := range rows {
		runs[i] = trailingNumericCells(r.Tokens, opts.LooseNumbers)
	}
	layout := columnLayout(runs, opts)

	var lines []InvoiceLine
	var warnings []string
	for rowIdx, r := range rows {
		cells := runs[rowIdx]

		if len(cells) == 0 {
			if len(lines) > 0 {
				mergeContinuation(&lines[len(lines)-1], r, items.RowStart+rowIdx)
			}
			continue
		}

		assigned := assignColumns(cells, layout)
		if assigned.LineTotal == nil || (assigned.Quantity == nil && assigned.UnitPrice == nil) {
			if opts.MergeShortRows && len(lines) > 0 {
				mergeContinuation(&lines[len(lines)-1], r, items.RowStart+rowIdx)
				continue
			}
			warnings = append(warnings, Newf(KindLineParseFailed,
				"row %d: numeric run too short to supply line_total and quantity/unit_price", items.RowStart+rowIdx).OnPage(p.Index).Error())
			continue
		}

		desc := describeRow(r.Tokens, cells[0].tokenIdx)
		line := InvoiceLine{
			Description: desc,
			PageIndex:   p.Index,
			SourceRows:  []int{items.RowStart + rowIdx},
			LineTotal:   *assigned.LineTotal,
		}
		if assigned.Quantity != nil {
			line.Quantity = *assigned.Quantity
		} else {
			line.Quantity = decimal.NewFromInt(1)
		}
		if assigned.UnitPrice != nil {
			line.UnitPrice = *assigned.UnitPrice
		} else {
			line.UnitPrice = line.LineTotal.DivRound(line.Quantity, 8)
		}
		line.Discount = assigned.Discount

		line.Confidence = lineConfidence(line, opts.relaxed())
		lines = append(lines, line)
	}
	return lines, warnings
}

func mergeContinuation(last *InvoiceLine, r Row, rowIdx int) {
	last.Description = strings.TrimSpace(last.Description + " " + r.Text())
	last.SourceRows = append(last.SourceRows, rowIdx)
}

// numericCell is one trailing numeric token of a row, before column roles
// are assigned.
type numericCell struct {
	value    decimal.Decimal
	tokenIdx int
	x        float64 // X-center of the source token
	width    float64
}

// trailingNumericCells scans a row's tokens right-to-left, collecting the
// contiguous run of numeric tokens at the row's end, and returns them
// restored to left-to-right order.
func trailingNumericCells(tokens []Token, loose bool) []numericCell {
	parse := NormalizeAmount
	if loose {
		parse = NormalizeAmountLoose
	}
	var cells []numericCell
	for i := len(tokens) - 1; i >= 0; i-- {
		d, err := parse(tokens[i].Text)
		if err != nil {
			break
		}
		cells = append(cells, numericCell{
			value:    d,
			tokenIdx: i,
			x:        tokens[i].X + tokens[i].Width/2,
			width:    tokens[i].Width,
		})
	}
	for l, r := 0, len(cells)-1; l < r; l, r = l+1, r-1 {
		cells[l], cells[r] = cells[r], cells[l]
	}
	return cells
}

// columnRole names a slot in the items table's column layout.
type columnRole int

const (
	roleIgnored columnRole = iota
	roleQuantity
	roleUnitPrice
	roleDiscount
	roleLineTotal
)

// columnCluster is one X-position cluster of numeric tokens, spanning
// every items row, with the role assigned to that column.
type columnCluster struct {
	center float64
	role   columnRole
}

// tableLayout is the inferred column structure of one items table:
// X-center clusters with a role each, or, when the token stream carries
// no usable geometry (every numeric token at the same X, e.g. synthetic
// token sources), a right-aligned role list derived from the modal
// numeric-run width.
type tableLayout struct {
	clusters []columnCluster
	byRank   []columnRole
}

// columnLayout derives the items segment's column structure by
// single-linkage clustering of every numeric cell's X-center across all
// rows: cells whose centers sit within the cluster tolerance of their
// left neighbor share a column. Roles are then read off the clusters
// left to right (assignRoles). A table whose tokens carry no X spread at
// all cannot be clustered; it falls back to right-aligned rank
// assignment against the modal run width.
func columnLayout(runs [][]numericCell, opts LineExtractionOptions) tableLayout {
	var all []numericCell
	for _, r := range runs {
		all = append(all, r...)
	}
	if len(all) == 0 {
		return tableLayout{}
	}

	minX, maxX := all[0].x, all[0].x
	for _, c := range all {
		if c.x < minX {
			minX = c.x
		}
		if c.x > maxX {
			maxX = c.x
		}
	}
	if maxX-minX < 1 {
		return tableLayout{byRank: rolesByRank(runs)}
	}

	sort.Slice(all, func(i, j int) bool { return all[i].x < all[j].x })
	tol := clusterTolerance(all)
	if opts.WidenColumnTolerance {
		tol *= 2
	}

	var clusters []columnCluster
	var members [][]numericCell
	start := 0
	for i := 1; i <= len(all); i++ {
		if i == len(all) || all[i].x-all[i-1].x > tol {
			group := all[start:i]
			clusters = append(clusters, columnCluster{center: meanX(group)})
			members = append(members, group)
			start = i
		}
	}
	assignRoles(clusters, members)
	return tableLayout{clusters: clusters}
}

// clusterTolerance is the widest X-center gap still treated as
// intra-column: numeric tokens in one right-aligned column drift by
// roughly their own width as digit counts vary, while adjacent columns
// sit further apart than any single amount is wide.
func clusterTolerance(cells []numericCell) float64 {
	widths := make([]float64, 0, len(cells))
	for _, c := range cells {
		if c.width > 0 {
			widths = append(widths, c.width)
		}
	}
	tol := 0.75 * median(widths)
	if tol < 6 {
		tol = 6
	}
	return tol
}

func meanX(cells []numericCell) float64 {
	var sum float64
	for _, c := range cells {
		sum += c.x
	}
	return sum / float64(len(cells))
}

// assignRoles labels clusters left to right: the rightmost cluster is
// line_total, the next-left is unit_price, quantity is the leftmost
// remaining cluster whose values look like quantities rather than money
// (quantityLike), and one leftover cluster between those becomes
// discount. Clusters further left are stray numerics inside the
// description zone and stay ignored.
func assignRoles(clusters []columnCluster, members [][]numericCell) {
	k := len(clusters)
	clusters[k-1].role = roleLineTotal
	if k >= 2 {
		clusters[k-2].role = roleUnitPrice
	}
	qty := -1
	for i := 0; i < k-2; i++ {
		if quantityLike(members[i]) {
			clusters[i].role = roleQuantity
			qty = i
			break
		}
	}
	for i := qty + 1; i >= 0 && i < k-2; i++ {
		if clusters[i].role == roleIgnored {
			clusters[i].role = roleDiscount
			break
		}
	}
}

// quantityLike reports whether a column's values are integer-like or
// small decimals — quantities rather than money amounts.
func quantityLike(cells []numericCell) bool {
	if len(cells) == 0 {
		return false
	}
	integers := 0
	small := true
	hundred := decimal.NewFromInt(100)
	for _, c := range cells {
		if c.value.IsInteger() {
			integers++
		}
		if c.value.Abs().GreaterThanOrEqual(hundred) {
			small = false
		}
	}
	return integers*2 >= len(cells) || small
}

// rolesByRank is the geometry-free fallback: the most common numeric-run
// length across the segment decides how many roles the table has, read
// right to left as line_total, unit_price, then quantity (and discount
// when four columns print).
func rolesByRank(runs [][]numericCell) []columnRole {
	counts := make(map[int]int)
	for _, r := range runs {
		if len(r) > 0 {
			counts[len(r)]++
		}
	}
	width := 0
	best := 0
	for n, c := range counts {
		if c > best || (c == best && n > width) {
			width, best = n, c
		}
	}
	switch {
	case width >= 4:
		return []columnRole{roleQuantity, roleUnitPrice, roleDiscount, roleLineTotal}
	case width == 3:
		return []columnRole{roleQuantity, roleUnitPrice, roleLineTotal}
	default:
		return []columnRole{roleUnitPrice, roleLineTotal}
	}
}

// assignedColumns is the per-row result of reading a numeric run against
// the segment's tableLayout. Any field may be nil when the row printed
// no value in that column.
type assignedColumns struct {
	Quantity  *decimal.Decimal
	UnitPrice *decimal.Decimal
	Discount  *decimal.Decimal
	LineTotal *decimal.Decimal
}

// assignColumns maps each of a row's numeric cells onto the cluster
// whose center is nearest its own X-center and takes that cluster's
// role; when two cells land on the same cluster the closer one wins. A
// row that printed nothing in some column simply leaves that role unset
// rather than misreading a neighboring column's value into it.
func assignColumns(cells []numericCell, layout tableLayout) assignedColumns {
	if len(layout.clusters) == 0 {
		return assignByRank(cells, layout.byRank)
	}
	var out assignedColumns
	bestDist := make(map[columnRole]float64, 4)
	for _, c := range cells {
		idx := nearestCluster(layout.clusters, c.x)
		role := layout.clusters[idx].role
		if role == roleIgnored {
			continue
		}
		d := math.Abs(c.x - layout.clusters[idx].center)
		if prev, ok := bestDist[role]; ok && prev <= d {
			continue
		}
		bestDist[role] = d
		setRole(&out, role, c.value)
	}
	return out
}

func nearestCluster(clusters []columnCluster, x float64) int {
	best := 0
	bestDist := math.Abs(x - clusters[0].center)
	for i := 1; i < len(clusters); i++ {
		if d := math.Abs(x - clusters[i].center); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// assignByRank right-aligns a row's numeric cells against the rank role
// list: the last cell always fills the rightmost role (line_total), the
// second-to-last the next role left, and so on. Extra cells beyond the
// role list are ignored.
func assignByRank(cells []numericCell, roles []columnRole) assignedColumns {
	var out assignedColumns
	n := len(cells)
	for i := 0; i < len(roles) && i < n; i++ {
		role := roles[len(roles)-1-i]
		setRole(&out, role, cells[n-1-i].value)
	}
	return out
}

func setRole(out *assignedColumns, role columnRole, value decimal.Decimal) {
	v := value
	switch role {
	case roleQuantity:
		out.Quantity = &v
	case roleUnitPrice:
		out.UnitPrice = &v
	case roleDiscount:
		out.Discount = &v
	case roleLineTotal:
		out.LineTotal = &v
	}
}

func describeRow(tokens []Token, numericStart int) string {
	if numericStart <= 0 {
		return ""
	}
	var sb strings.Builder
	for i := 0; i < numericStart; i++ {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(tokens[i].Text)
	}
	return strings.TrimSpace(sb.String())
}

// lineConfidence scores how well a parsed line fits the expected
// Quantity*UnitPrice*(1-Discount) ≈ LineTotal relationship.
// A gross mismatch halves the confidence rather than discarding the
// line; the Validator surfaces it as a warning.
func lineConfidence(l InvoiceLine, relaxed bool) float64 {
	base := 0.8
	if relaxed {
		base = 0.6
	}
	expected := l.Quantity.Mul(l.UnitPrice)
	if l.Discount != nil {
		one := decimal.NewFromInt(1)
		expected = expected.Mul(one.Sub(*l.Discount))
	}
	tolerance := decimal.NewFromFloat(0.05).Mul(expected.Abs())
	if tolerance.LessThan(decimal.NewFromFloat(0.01)) {
		tolerance = decimal.NewFromFloat(0.01)
	}
	if expected.Sub(l.LineTotal).Abs().GreaterThan(tolerance) {
		return base / 2
	}
	return base
}
