// Package sanitize strips markup and control characters from raw field
// values before they enter any downstream structure.
package sanitize

import (
	"regexp"
	"strings"
)

var (
	reScriptBlock = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	reTag         = regexp.MustCompile(`(?s)<[^>]*>`)
	reSpace       = regexp.MustCompile(`\s+`)
)

// Field removes angle-bracket markup and non-printable characters from a raw
// field value and collapses runs of whitespace. Markup is stripped, not
// rejected; the surrounding text survives.
func Field(raw string) string {
	clean := reScriptBlock.ReplaceAllString(raw, " ")
	clean = reTag.ReplaceAllString(clean, " ")
	clean = strings.Map(func(r rune) rune {
		if r == '\t' || r == '\n' || r == '\r' || r == ' ' {
			return ' '
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, clean)
	clean = reSpace.ReplaceAllString(clean, " ")
	return strings.TrimSpace(clean)
}
