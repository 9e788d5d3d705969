// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package search

import (
	"regexp"
	"strings"
	"unicode"
)

var techIndicators = []string{
	"mac", "iphone", "ipad", "studio", "ultra", "pro", "max", "mini",
	"specifications", "specs", "product", "release", "upcoming", "cpu",
	"gpu", "ram", "storage", "chip", "processor", "apple", "computer",
}

var (
	pecsTypo   = regexp.MustCompile(`(?i)\bpecs\b`)
	fillerWord = regexp.MustCompile(`(?i)\b(the|latest|upcoming|on|for|what|are|going|to|be|and|see|if|you|can|get|information|about|look|search|internet|web)\b`)
	spaces     = regexp.MustCompile(`\s+`)
)

// CorrectQuery fixes common typos in tech-flavored queries, e.g. pecs->specs.
func CorrectQuery(query string) string {
	if len(query) < 3 {
		return query
	}
	lower := strings.ToLower(query)
	if strings.Contains(lower, "pecs") {
		for _, ind := range techIndicators {
			if strings.Contains(lower, ind) {
				return pecsTypo.ReplaceAllString(query, "specs")
			}
		}
	}
	return query
}

// SimplifyQuery drops filler words so over-specific queries still match.
// The simplified form is used only when it is genuinely shorter and still
// long enough to mean something.
func SimplifyQuery(query string) string {
	if len(query) <= 10 {
		return query
	}
	simplified := fillerWord.ReplaceAllString(query, " ")
	simplified = strings.TrimSpace(spaces.ReplaceAllString(simplified, " "))
	if simplified != "" && len(simplified) < len(query) && len(simplified) >= 10 {
		return simplified
	}
	return query
}

// SimplifyQueryRetry is the aggressive second pass for when the first search
// came back empty: keep product-looking tokens, or the first few significant
// words.
func SimplifyQueryRetry(query string) string {
	simplified := SimplifyQuery(query)
	if len(simplified) <= 30 {
		return simplified
	}

	words := strings.Fields(simplified)
	productNames := map[string]bool{
		"Mac": true, "Studio": true, "Ultra": true, "Pro": true,
		"Max": true, "iPhone": true, "iPad": true,
	}
	stop := map[string]bool{"the": true, "and": true, "for": true}

	var product []string
	for _, w := range words {
		switch {
		case hasDigit(w) || productNames[w]:
			product = append(product, w)
		case len(product) > 0 && !stop[strings.ToLower(w)]:
			product = append(product, w)
		}
	}
	if len(product) > 0 {
		if retry := strings.Join(product, " "); len(retry) >= 10 {
			return retry
		}
	}

	stopW := map[string]bool{"the": true, "for": true, "and": true, "are": true}
	var significant []string
	for _, w := range words {
		if len(w) > 2 && !stopW[strings.ToLower(w)] {
			significant = append(significant, w)
		}
	}
	if len(significant) == 0 {
		return simplified
	}
	if len(significant) > 5 {
		significant = significant[:5]
	}
	return strings.Join(significant, " ")
}

func hasDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
