package utils

import "strings"

// Truncate shortens s to at most max runes, appending an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= 1 {
		return string(runes[:max])
	}
	return string(runes[:max-1]) + "…"
}

// StripZeroWidth removes zero-width and BOM characters that some models leak
// into string arguments (they cause duplicate folders and broken URLs).
func StripZeroWidth(s string) string {
	replacer := strings.NewReplacer(
		"\u200b", "",
		"\u200c", "",
		"\u200d", "",
		"\ufeff", "",
	)
	return replacer.Replace(s)
}

// CountWhitespaceTokens approximates output size by whitespace-separated tokens.
func CountWhitespaceTokens(s string) int {
	return len(strings.Fields(s))
}
