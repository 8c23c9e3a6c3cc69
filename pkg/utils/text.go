// Package utils provides shared utilities for text and logging.
package utils

import "strings"

// Truncate returns s cut to at most maxLen characters, with "..." appended if it was cut.
// If maxLen is 0 or negative, s is returned unchanged.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return strings.TrimRight(string(runes[:maxLen]), " \t\n") + "..."
}

// SingleLine collapses all whitespace runs, newlines included, into single spaces.
func SingleLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
