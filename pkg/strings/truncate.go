// Package strings holds small text helpers shared by the reporters.
package strings

import (
	"strings"
)

// DefaultReasonMaxLen is the cell width reporters use for failure
// reasons. Shared so the terminal table and the progress lines truncate
// consistently.
const DefaultReasonMaxLen = 48

// MinTruncateLen is the smallest usable maxLen for OneLine. Anything
// shorter would not leave room for content plus "...".
const MinTruncateLen = 4

// OneLine collapses s to a single line and truncates it to maxLen runes,
// ellipsis included. Failure reasons arrive with embedded newlines and
// tool stack fragments; table cells need one line. Truncation slices
// runes, not bytes, so multi-byte characters survive intact. A maxLen
// below MinTruncateLen is clamped.
func OneLine(s string, maxLen int) string {
	if maxLen < MinTruncateLen {
		maxLen = MinTruncateLen
	}

	// Fields splits on any whitespace run, so newlines, tabs and repeated
	// spaces all collapse in one pass.
	s = strings.Join(strings.Fields(s), " ")

	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen-3]) + "..."
	}
	return s
}
