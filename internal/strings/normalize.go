package strings

import (
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeWhitespace collapses runs of whitespace into single spaces.
func NormalizeWhitespace(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " ")
}

// NormalizeNewlines replaces CRLF and CR with LF.
func NormalizeNewlines(value string) string {
	if value == "" {
		return value
	}
	value = strings.ReplaceAll(value, "\r\n", "\n")
	return strings.ReplaceAll(value, "\r", "\n")
}

// TrimTrailingNewlines removes trailing CR/LF characters.
func TrimTrailingNewlines(value string) string {
	return strings.TrimRight(value, "\r\n")
}

// Fold returns the Unicode case-folded form of value.
// A Caser is stateful, so each call gets its own.
func Fold(value string) string {
	return cases.Fold().String(value)
}

// ContainsFold reports whether substr appears in value, ignoring case.
// An empty substr matches everything.
func ContainsFold(value, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(Fold(value), Fold(substr))
}
