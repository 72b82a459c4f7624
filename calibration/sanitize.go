package calibration

import (
	"regexp"
	"strings"
)

var unsafeArtefactChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// maxArtefactNameLen caps a sanitized artefact filename, applied after
// unsafe-character replacement so truncation never reintroduces a
// character outside [A-Za-z0-9._-].
const maxArtefactNameLen = 120

// SanitizeArtefactName turns an arbitrary field or model name into a safe
// filesystem/object-key segment: lowercased, unsafe characters replaced
// with underscores, length-capped at 120 runes, so a caller persisting
// calibration artefacts to disk or blob storage never writes outside its
// target directory or collides on case alone.
func SanitizeArtefactName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	safe := unsafeArtefactChars.ReplaceAllString(lower, "_")
	safe = strings.Trim(safe, "_.")
	if safe == "" {
		return "unnamed"
	}
	if len(safe) > maxArtefactNameLen {
		safe = strings.Trim(safe[:maxArtefactNameLen], "_.")
	}
	if safe == "" {
		return "unnamed"
	}
	return safe
}
