// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package commands extracts and repairs the semi-structured command blocks
// (KEYWORD = { ... }) that the model embeds in its free-text output. The
// producer is unreliable: keywords vary in case, code fences wrap the object,
// quoting and escaping break mid-block. Extraction is therefore best-effort
// and never fails; unmatched input just yields no blocks.
package commands

import (
	"regexp"
	"sort"
	"strings"
	"sync"
)

// Block is one raw command occurrence found in generated text.
// Raw holds the brace-balanced object text; Start/End index into the scanned
// text (Start points at the keyword, End one past the closing brace).
type Block struct {
	Keyword string
	Raw     string
	Start   int
	End     int
}

// fallbackWindow bounds how far past "KEYWORD =" we look for the opening
// brace when the anchored pattern does not match (extra prose between "="
// and "{").
const fallbackWindow = 400

// braceScanner finds the end of a balanced-brace span starting at an opening
// brace. Implementations differ in how much they trust the producer's string
// quoting; both are pure and independently testable.
type braceScanner interface {
	// Scan returns the index one past the matching close brace for the "{"
	// at start, or ok=false when no balanced close exists.
	Scan(s string, start int) (end int, ok bool)
}

// stringAwareScanner tracks quoted strings (with escape handling) so braces
// inside string values do not affect depth.
type stringAwareScanner struct{}

func (stringAwareScanner) Scan(s string, start int) (int, bool) {
	if start < 0 || start >= len(s) || s[start] != '{' {
		return 0, false
	}
	depth := 0
	var inString byte
	escape := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escape {
			escape = false
			continue
		}
		if c == '\\' && inString != 0 {
			escape = true
			continue
		}
		if inString != 0 {
			if c == inString {
				inString = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			inString = c
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// naiveScanner counts braces only. Used when broken escaping defeats the
// string-aware scan.
type naiveScanner struct{}

func (naiveScanner) Scan(s string, start int) (int, bool) {
	if start < 0 || start >= len(s) || s[start] != '{' {
		return 0, false
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, true
			}
		}
	}
	return 0, false
}

var (
	patternMu sync.Mutex
	anchored  = map[string]*regexp.Regexp{}
	loose     = map[string]*regexp.Regexp{}
)

// anchoredPattern matches `KEYWORD = {` with optional whitespace and an
// optional markdown fence between "=" and "{".
func anchoredPattern(keyword string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	key := strings.ToUpper(keyword)
	if re, ok := anchored[key]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword) + "\\s*=\\s*(?:```(?:json)?\\s*)?\\{")
	anchored[key] = re
	return re
}

func loosePattern(keyword string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	key := strings.ToUpper(keyword)
	if re, ok := loose[key]; ok {
		return re
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword) + `\s*=`)
	loose[key] = re
	return re
}

func scanBalanced(text string, braceStart int) (int, bool) {
	if end, ok := (stringAwareScanner{}).Scan(text, braceStart); ok {
		return end, ok
	}
	return (naiveScanner{}).Scan(text, braceStart)
}

// FindBlocks returns every `keyword = { ... }` occurrence in text, in order.
// Keyword matching is case-insensitive.
func FindBlocks(text, keyword string) []Block {
	var blocks []Block
	for _, m := range anchoredPattern(keyword).FindAllStringIndex(text, -1) {
		braceStart := m[1] - 1
		end, ok := scanBalanced(text, braceStart)
		if !ok {
			continue
		}
		blocks = append(blocks, Block{
			Keyword: keyword,
			Raw:     text[braceStart:end],
			Start:   m[0],
			End:     end,
		})
	}
	return blocks
}

// FindBlocksFallback recovers blocks where extra text separates "=" from the
// opening brace: it matches `keyword =`, then scans up to fallbackWindow
// characters forward for the first "{" and naive-balances from there.
func FindBlocksFallback(text, keyword string) []Block {
	var blocks []Block
	re := loosePattern(keyword)
	idx := 0
	for idx < len(text) {
		loc := re.FindStringIndex(text[idx:])
		if loc == nil {
			break
		}
		start := idx + loc[1]
		window := text[start:min(start+fallbackWindow, len(text))]
		rel := strings.IndexByte(window, '{')
		if rel == -1 {
			idx = start + 1
			continue
		}
		brace := start + rel
		if end, ok := (naiveScanner{}).Scan(text, brace); ok {
			blocks = append(blocks, Block{
				Keyword: keyword,
				Raw:     text[brace:end],
				Start:   idx + loc[0],
				End:     end,
			})
		}
		idx = start + 1
	}
	return blocks
}

// Extract finds all blocks for keyword, trying the anchored pattern first and
// the loose fallback only when nothing anchored matched.
func Extract(text, keyword string) []Block {
	if blocks := FindBlocks(text, keyword); len(blocks) > 0 {
		return blocks
	}
	return FindBlocksFallback(text, keyword)
}

// StripBlocks removes every block for the given keywords from text so the
// user sees only prose and tool results, not the raw command JSON. Overlapping
// and nested ranges are merged before removal.
func StripBlocks(text string, keywords ...string) string {
	type span struct{ start, end int }
	var all []span
	for _, kw := range keywords {
		for _, b := range FindBlocks(text, kw) {
			all = append(all, span{b.Start, b.End})
		}
	}
	if len(all) == 0 {
		return text
	}
	sort.Slice(all, func(i, j int) bool { return all[i].start < all[j].start })

	merged := all[:1]
	for _, s := range all[1:] {
		last := &merged[len(merged)-1]
		if s.start <= last.end {
			if s.end > last.end {
				last.end = s.end
			}
			continue
		}
		merged = append(merged, s)
	}

	var out []string
	pos := 0
	for _, s := range merged {
		chunk := strings.TrimRight(text[pos:s.start], " \t\n")
		if chunk != "" {
			out = append(out, chunk)
		}
		pos = s.end
	}
	if rest := strings.TrimSpace(text[pos:]); rest != "" {
		out = append(out, rest)
	}
	if len(out) == 0 {
		return strings.TrimSpace(text[:merged[0].start])
	}
	return strings.Join(out, "\n")
}
