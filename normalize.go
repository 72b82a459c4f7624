package fakturaextrakt

import (
	"strings"

	"github.com/shopspring/decimal"
)

// currencyTokens are stripped from the head/tail of an amount string
// before any separator analysis. Matched case-insensitively.
var currencyTokens = []string{"kr", "sek", "eur", "€", "usd", "$"}

func init() {
	decimal.DivisionPrecision = 16
}

// thousandsSpaceReplacer removes the space characters Swedish layouts
// render between digit groups: the plain space, the non-breaking space
// (U+00A0) and the thin space (U+2009).
var thousandsSpaceReplacer = strings.NewReplacer(" ", "", "\u00a0", "", "\u2009", "")

// stripCurrencyTokens removes a leading and/or trailing currency token,
// case-insensitively, along with the whitespace around it.
func stripCurrencyTokens(s string) string {
	lower := strings.ToLower(s)
	for _, tok := range currencyTokens {
		if strings.HasPrefix(lower, tok) {
			s = strings.TrimSpace(s[len(tok):])
			lower = strings.ToLower(s)
		}
		if strings.HasSuffix(lower, tok) {
			s = strings.TrimSpace(s[:len(s)-len(tok)])
			lower = strings.ToLower(s)
		}
	}
	return s
}

// NormalizeAmount converts a Swedish-locale (or plain) amount string into
// a decimal.Decimal, applying these rules in order:
//  1. strip currency tokens
//  2. remove thousands-separator spaces (incl. NBSP)
//  3. remove thousands-dots (dots followed by exactly three digits then
//     a non-digit or end of string)
//  4. replace the first remaining comma with a dot
//  5. normalize a leading/trailing sign
//  6. reject strings that still contain more than one dot or any
//     non-numeric character
//  7. parse with precision sufficient for HALF_EVEN rounding
//
// It never returns a float64-derived value; the result is built purely
// from decimal.NewFromString over the cleaned string.
func NormalizeAmount(raw string) (decimal.Decimal, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, New(KindNumberFormat, "empty amount string")
	}

	// Step 1: strip currency tokens (both prefix and suffix position).
	s = stripCurrencyTokens(s)
	if s == "" {
		return decimal.Decimal{}, New(KindNumberFormat, "amount string was only a currency token")
	}

	// Step 2: remove thousands-separator whitespace, including the
	// non-breaking space (U+00A0) and thin space (U+2009) Swedish layouts
	// commonly render between digit groups.
	s = thousandsSpaceReplacer.Replace(s)

	// Step 3: remove thousands-dots (a dot followed by exactly three
	// digits and then a non-digit or end of string). Go's RE2-based
	// regexp package has no lookahead support, so this is a manual scan
	// rather than `\.(?=\d{3}(\D|$))`.
	var ok bool
	s, ok = stripThousandsDots(s)
	if !ok {
		return decimal.Decimal{}, Newf(KindNumberFormat, "malformed amount %q: inconsistent digit grouping", raw)
	}

	// Step 4: replace the first remaining comma with a dot, drop any
	// further commas (defensive — step 6 will reject if this leaves the
	// string malformed).
	if idx := strings.IndexByte(s, ','); idx >= 0 {
		s = s[:idx] + "." + strings.ReplaceAll(s[idx+1:], ",", "")
	}

	// Step 5: normalize sign placement — a trailing '-' (common in
	// ledger-style exports) moves to the front.
	neg := false
	if strings.HasSuffix(s, "-") {
		neg = true
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	// Step 6: reject anything left with more than one dot or any
	// character outside [0-9.].
	if strings.Count(s, ".") > 1 {
		return decimal.Decimal{}, Newf(KindNumberFormat, "malformed amount %q: multiple decimal points", raw)
	}
	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Decimal{}, Newf(KindNumberFormat, "malformed amount %q: unexpected character %q", raw, r)
		}
	}
	if s == "" || s == "." {
		return decimal.Decimal{}, Newf(KindNumberFormat, "malformed amount %q: no digits remain", raw)
	}

	// Step 7: parse.
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, Wrap(KindNumberFormat, err, "parsing normalized amount "+s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

// NormalizeAmountLoose parses amount strings NormalizeAmount rejects
// for inconsistent digit grouping: the last '.' or ',' is taken as the
// decimal separator and every separator before it as grouping noise, so
// an OCR artifact like "12.34.567" still yields a value (1234.567)
// instead of failing the whole line. Strict parsing is always tried
// first; this is the Deterministic Fallback's loose_number_format
// behavior, never the default.
func NormalizeAmountLoose(raw string) (decimal.Decimal, error) {
	if d, err := NormalizeAmount(raw); err == nil {
		return d, nil
	}
	s := stripCurrencyTokens(strings.TrimSpace(raw))
	s = thousandsSpaceReplacer.Replace(s)

	neg := false
	if strings.HasSuffix(s, "-") {
		neg = true
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		neg = true
		s = strings.TrimPrefix(s, "-")
	}
	s = strings.TrimPrefix(s, "+")

	if idx := strings.LastIndexAny(s, ".,"); idx >= 0 {
		head := strings.Map(dropSeparators, s[:idx])
		s = head + "." + s[idx+1:]
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Decimal{}, Newf(KindNumberFormat, "malformed amount %q: unexpected character %q", raw, r)
		}
	}
	if s == "" || s == "." {
		return decimal.Decimal{}, Newf(KindNumberFormat, "malformed amount %q: no digits remain", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, Wrap(KindNumberFormat, err, "parsing normalized amount "+s)
	}
	if neg {
		d = d.Neg()
	}
	return d, nil
}

func dropSeparators(r rune) rune {
	if r == '.' || r == ',' {
		return -1
	}
	return r
}

// stripThousandsDots removes dots used as thousands separators. A dot
// qualifies when it is followed by exactly three digits and then a
// non-digit character or the end of the string — the rule
// `\.(?=\d{3}(\D|$))`, reimplemented by hand since RE2 has no lookahead.
//
// When a string carries more than one dot, every dot must qualify or the
// string is rejected: a lone non-qualifying dot sitting among others is
// not a decimal point, it is a sign the digit grouping is inconsistent
// (e.g. "12.34.567", a malformed middle group of only two digits).
func stripThousandsDots(s string) (string, bool) {
	if strings.Count(s, ".") == 0 {
		return s, true
	}
	multi := strings.Count(s, ".") > 1
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '.' {
			b.WriteByte(c)
			continue
		}
		if isThousandsDot(s, i) {
			continue
		}
		if multi {
			return "", false
		}
		b.WriteByte(c)
	}
	return b.String(), true
}

// isThousandsDot reports whether the dot at byte index i in s is followed
// by exactly three digits and then a non-digit or the end of the string.
func isThousandsDot(s string, i int) bool {
	for k := 1; k <= 3; k++ {
		if i+k >= len(s) || s[i+k] < '0' || s[i+k] > '9' {
			return false
		}
	}
	if i+4 == len(s) {
		return true
	}
	return s[i+4] < '0' || s[i+4] > '9'
}

// RoundHalfEven rounds d to places decimal places using banker's
// rounding, the monetary convention amount comparisons use throughout.
func RoundHalfEven(d decimal.Decimal, places int32) decimal.Decimal {
	return d.RoundBank(places)
}

// AmountsEqual reports whether a and b are equal once both are rounded to
// places decimal places with HALF_EVEN rounding — the comparison the
// Validator's reconciliation step relies on.
func AmountsEqual(a, b decimal.Decimal, places int32) bool {
	return RoundHalfEven(a, places).Equal(RoundHalfEven(b, places))
}
