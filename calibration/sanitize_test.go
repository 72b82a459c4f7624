package calibration

import (
	"strings"
	"testing"
)

func TestSanitizeArtefactNameReplacesUnsafeChars(t *testing.T) {
	got := SanitizeArtefactName("Total Amount / v2 (final)!")
	if strings.ContainsAny(got, " /()!") {
		t.Errorf("SanitizeArtefactName left unsafe characters in %q", got)
	}
	if got != strings.ToLower(got) {
		t.Errorf("SanitizeArtefactName did not lowercase: %q", got)
	}
}

func TestSanitizeArtefactNameEmptyBecomesUnnamed(t *testing.T) {
	for _, in := range []string{"", "   ", "...", "___"} {
		if got := SanitizeArtefactName(in); got != "unnamed" {
			t.Errorf("SanitizeArtefactName(%q) = %q, want unnamed", in, got)
		}
	}
}

func TestSanitizeArtefactNameCapsLength(t *testing.T) {
	long := strings.Repeat("a", 500)
	got := SanitizeArtefactName(long)
	if len(got) > 120 {
		t.Errorf("SanitizeArtefactName returned %d runes, want <= 120", len(got))
	}
}

func TestSanitizeArtefactNameTruncationNeverLeavesTrailingSeparator(t *testing.T) {
	// An underscore sits exactly at the 120-rune truncation boundary, so
	// a naive slice would return a name ending in "_".
	in := strings.Repeat("a", 119) + "_" + strings.Repeat("b", 10)
	got := SanitizeArtefactName(in)
	if strings.HasSuffix(got, ".") || strings.HasSuffix(got, "_") {
		t.Errorf("SanitizeArtefactName(%q) = %q, ends in a separator after truncation", in, got)
	}
}

func TestSanitizeArtefactNameIdempotent(t *testing.T) {
	in := "Some Field / Name"
	once := SanitizeArtefactName(in)
	twice := SanitizeArtefactName(once)
	if once != twice {
		t.Errorf("SanitizeArtefactName not idempotent: once=%q twice=%q", once, twice)
	}
}
