// Package parser turns pasted or exported clinic schedule text into
// normalized appointment records. Detection picks a strategy, the strategy
// parses, and malformed pieces are logged and skipped without failing the
// batch.
package parser

import "strings"

// Format is the parse strategy chosen once by Detect and dispatched on.
type Format int

const (
	// FormatUnknown still runs the multi-line path as a conservative default.
	FormatUnknown Format = iota
	// FormatTabular is delimiter-separated rows under a header line.
	FormatTabular
	// FormatAdvanced is the multi-line practice-management report layout with
	// arbitrary hard line wraps inside logical fields.
	FormatAdvanced
)

func (f Format) String() string {
	switch f {
	case FormatTabular:
		return "tabular"
	case FormatAdvanced:
		return "advanced"
	default:
		return "unknown"
	}
}

// headerTokens are column names that identify a schedule header in either
// layout.
var headerTokens = []string{
	"resource", "provider", "time", "status", "patient", "name",
	"dob", "date of birth", "contact", "phone", "insurance", "notes", "reason",
}

// bannerTokens identify the report banner a practice-management export puts
// above the table.
var bannerTokens = []string{"clinic", "medical", "health center", "schedule", "daily report"}

// Detect classifies raw input. It never rejects: unrecognized text comes back
// FormatUnknown and downstream parsing still runs.
func Detect(text string) Format {
	lines := nonEmptyLines(text)
	if len(lines) == 0 {
		return FormatUnknown
	}

	// A delimited header-like first line wins.
	if strings.Count(lines[0], "\t") >= 2 && countHeaderTokens(lines[0]) >= 2 {
		return FormatTabular
	}

	// Banner line or a multi-line table header anywhere near the top.
	limit := len(lines)
	if limit > 8 {
		limit = 8
	}
	for _, line := range lines[:limit] {
		lower := strings.ToLower(line)
		for _, tok := range bannerTokens {
			if strings.Contains(lower, tok) {
				return FormatAdvanced
			}
		}
		if countHeaderTokens(line) >= 3 {
			return FormatAdvanced
		}
	}
	return FormatUnknown
}

func countHeaderTokens(line string) int {
	lower := strings.ToLower(line)
	n := 0
	for _, tok := range headerTokens {
		if strings.Contains(lower, tok) {
			n++
		}
	}
	return n
}

func nonEmptyLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			out = append(out, strings.TrimSpace(strings.TrimSuffix(line, "\r")))
		}
	}
	return out
}
