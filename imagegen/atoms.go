package imagegen

import (
	"strconv"
	"unicode/utf8"
)

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}

// formatGuidance prints guidance without trailing zeros ("7.5", "12").
func formatGuidance(g float64) string {
	return strconv.FormatFloat(g, 'f', -1, 64)
}
