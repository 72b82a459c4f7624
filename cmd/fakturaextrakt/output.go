package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/kvitto/fakturaextrakt"
	"golang.org/x/term"
)

// detectTerminalWidth tries the real terminal size, falls back to
// $COLUMNS, then a sensible default, so the text summary never produces
// a line wider than what the caller's terminal can actually show.
func detectTerminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	if c := os.Getenv("COLUMNS"); c != "" {
		if n, err := strconv.Atoi(c); err == nil && n > 0 {
			return n
		}
	}
	return 80
}

func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputText renders one summary line per invoice result, truncating the
// supplier/invoice-number columns to fit the detected terminal width
// rather than wrapping.
func outputText(results []fakturaextrakt.InvoiceResult) {
	width := detectTerminalWidth()
	for i, r := range results {
		status := r.Validation.Status.String()
		line := fmt.Sprintf("[%d] %-8s invoice=%-20s supplier=%-30s total=%s method=%s",
			i, status,
			truncate(r.Header.InvoiceNumber, 20),
			truncate(r.Header.Supplier, 30),
			formatTotal(r),
			r.ExtractionDetail.MethodUsed,
		)
		if len(line) > width && width > 10 {
			line = line[:width-3] + "..."
		}
		fmt.Println(line)
		for _, e := range r.Validation.Errors {
			fmt.Printf("    ! %s\n", e)
		}
		for _, w := range r.Validation.Warnings {
			fmt.Printf("    - %s\n", w)
		}
	}
}

func formatTotal(r fakturaextrakt.InvoiceResult) string {
	if r.Header.TotalAmount == nil {
		return "?"
	}
	return r.Header.TotalAmount.String() + " " + r.Header.Currency
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}

// worstStatus reduces a batch of results to the single exit code the
// process should return: exitOK when every result is OK, exitReview when
// any result is PARTIAL or REVIEW (the two share one exit code), and
// exitViolations when any result is FAILED.
func worstStatus(results []fakturaextrakt.InvoiceResult) int {
	code := exitOK
	for _, r := range results {
		switch r.Validation.Status {
		case fakturaextrakt.StatusOK:
		case fakturaextrakt.StatusPartial, fakturaextrakt.StatusReview:
			if code < exitReview {
				code = exitReview
			}
		case fakturaextrakt.StatusFailed:
			code = exitViolations
		}
	}
	return code
}
