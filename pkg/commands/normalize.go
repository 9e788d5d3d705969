// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package commands

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// Normalization is a sequence of ordered, pure text repairs applied before
// the first JSON parse attempt. Order matters: fences hide comments, comments
// hide quotes, and trailing-comma removal must come last.

var (
	fenceOpen  = regexp.MustCompile("^\\s*```(?:json)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```\\s*$")

	lineComment  = regexp.MustCompile(`(?m)^\s*//[^\n]*$|([,{[\s])//[^\n]*`)
	blockComment = regexp.MustCompile(`/\*[\s\S]*?\*/`)

	// Spurious backslashes the producer emits before quotes adjacent to
	// structural characters, e.g. {\"key\": \"v\"} outside any string.
	strayBackslashOpen  = regexp.MustCompile(`([{,[]\s*)\\+"`)
	strayBackslashColon = regexp.MustCompile(`\\+"\s*:`)
	strayBackslashClose = regexp.MustCompile(`\\+"(\s*[,}\]])`)
	strayBackslashValue = regexp.MustCompile(`:\s*\\+"`)

	trailingComma = regexp.MustCompile(`,(\s*[}\]])`)

	bareUndefined = regexp.MustCompile(`([:,[]\s*)(?:undefined|NaN)(\s*[,}\]])`)
	unquotedKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
)

var quoteStraightener = strings.NewReplacer(
	"“", `"`, // left double
	"”", `"`, // right double
	"„", `"`, // low double
	"«", `"`, // left guillemet
	"»", `"`, // right guillemet
	"‘", "'", // left single
	"’", "'", // right single
	"‚", "'", // low single
)

func stripCodeFence(s string) string {
	s = fenceOpen.ReplaceAllString(s, "")
	return fenceClose.ReplaceAllString(s, "")
}

func stripComments(s string) string {
	s = blockComment.ReplaceAllString(s, "")
	return lineComment.ReplaceAllString(s, "$1")
}

func straightenQuotes(s string) string {
	return quoteStraightener.Replace(s)
}

func stripStrayBackslashes(s string) string {
	s = strayBackslashOpen.ReplaceAllString(s, `$1"`)
	s = strayBackslashColon.ReplaceAllString(s, `":`)
	s = strayBackslashClose.ReplaceAllString(s, `"$1`)
	return strayBackslashValue.ReplaceAllString(s, `: "`)
}

func stripTrailingCommas(s string) string {
	return trailingComma.ReplaceAllString(s, "$1")
}

// Normalize applies the standard repair pipeline. It is idempotent on
// already-valid JSON and never errors.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = stripCodeFence(s)
	s = stripComments(s)
	s = straightenQuotes(s)
	s = stripStrayBackslashes(s)
	s = stripTrailingCommas(s)
	return strings.TrimSpace(s)
}

// NormalizeExtended layers heavier repairs on top of Normalize for the tool
// call path, where argument objects arrive most mangled: JS literals, bare
// keys, raw newlines inside string values, and a second object appended
// after the first.
func NormalizeExtended(s string) string {
	s = Normalize(s)
	s = bareUndefined.ReplaceAllString(s, "${1}null${2}")
	s = unquotedKey.ReplaceAllString(s, `$1"$2"$3`)
	s = escapeNewlinesInStrings(s)
	s = firstObject(s)
	return strings.TrimSpace(s)
}

// escapeNewlinesInStrings rewrites literal newlines occurring inside
// double-quoted strings as \n escapes.
func escapeNewlinesInStrings(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inString := false
	escape := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escape {
			b.WriteByte(c)
			escape = false
			continue
		}
		switch {
		case c == '\\' && inString:
			b.WriteByte(c)
			escape = true
		case c == '"':
			b.WriteByte(c)
			inString = !inString
		case c == '\n' && inString:
			b.WriteString(`\n`)
		case c == '\r' && inString:
			// dropped; the \n branch handles the pair
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// firstObject truncates input to the first balanced top-level object when the
// producer concatenated several.
func firstObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return s
	}
	if end, ok := scanBalanced(s, start); ok && end < len(s) {
		if strings.TrimSpace(s[end:]) != "" {
			return s[start:end]
		}
	}
	return s
}

// Decode parses a raw block into a generic object. It normalizes first, then
// tries strict JSON, then structural repair. ok=false means the block is
// unusable and the caller should treat it as absent; Decode itself never
// errors.
func Decode(raw string) (map[string]interface{}, bool) {
	return decode(Normalize(raw))
}

// DecodeExtended is Decode with the extended normalization pass, used for
// tool call arguments.
func DecodeExtended(raw string) (map[string]interface{}, bool) {
	return decode(NormalizeExtended(raw))
}

func decode(norm string) (map[string]interface{}, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(norm), &obj); err == nil {
		return obj, true
	}
	repaired, err := jsonrepair.JSONRepair(norm)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &obj); err != nil {
		return nil, false
	}
	return obj, true
}
