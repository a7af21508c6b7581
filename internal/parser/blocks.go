package parser

import (
	"regexp"
	"strings"
)

// reAnchor recognizes the provider/resource title that opens an appointment
// block in the multi-line report layout. The source application wraps lines
// anywhere inside a block but always starts one at the resource column.
var reAnchor = regexp.MustCompile(`(?i)^(dr\.?|np|pa(?:-c)?|rn|nurse)\b`)

// extractBlocks regroups an arbitrarily line-wrapped stream into one logical
// string per appointment. Everything before the first anchor line (clinic
// banner, address, column header row) is discarded.
func extractBlocks(text string) []string {
	lines := nonEmptyLines(text)

	var blocks []string
	var current []string
	for _, line := range lines {
		if reAnchor.MatchString(line) {
			if len(current) > 0 {
				blocks = append(blocks, strings.Join(current, " "))
			}
			current = []string{line}
			continue
		}
		if len(current) > 0 {
			current = append(current, line)
		}
		// lines before the first anchor are banner/header, dropped
	}
	if len(current) > 0 {
		blocks = append(blocks, strings.Join(current, " "))
	}
	return blocks
}
