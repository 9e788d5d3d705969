// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package search detects when a user asked for a web search the model
// ignored, and shapes queries so the search backend actually returns results.
package search

import "strings"

// shortResponseLimit is the size under which a first-round reply counts as a
// non-answer worth rescuing with a proactive search.
const shortResponseLimit = 50

var triggers = []string{
	"search", "internet", "web", "look for", "find information", "look on", "search the",
}

// stripPhrases are tried in order; the first one present splits the message
// and everything after it becomes the query. Longest, most specific first.
var stripPhrases = []string{
	"look on the internet for",
	"search the internet for",
	"search the internet and see if you can get",
	"search the internet and see if",
	"search the internet and",
	"search for",
	"look for",
	"find information on",
	"find information about",
	"search the web for",
	"look up",
	"information on",
	"information about",
}

// IntentDetector decides whether a turn should fall back to a synthesized
// web search call.
type IntentDetector struct{}

// WantsSearch reports whether the user message asks for a web search.
func (IntentDetector) WantsSearch(message string) bool {
	lower := strings.ToLower(strings.TrimSpace(message))
	for _, t := range triggers {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// ShouldTrigger reports whether the proactive fallback fires: first round
// only, user asked for a search, no command blocks emitted, and the response
// is too short to be an answer.
func (d IntentDetector) ShouldTrigger(message, response string, round, blockCount int) bool {
	return round == 0 &&
		blockCount == 0 &&
		len(strings.TrimSpace(response)) < shortResponseLimit &&
		d.WantsSearch(message)
}

// Query derives the search query from the user message by stripping the
// request phrasing. Falls back to the first 100 characters of the raw
// message when stripping leaves nothing usable.
func (IntentDetector) Query(message string) string {
	query := strings.ToLower(strings.TrimSpace(message))
	for _, phrase := range stripPhrases {
		if idx := strings.Index(query, phrase); idx != -1 {
			query = strings.TrimSpace(query[idx+len(phrase):])
			break
		}
	}
	if len(query) < 2 {
		query = strings.TrimSpace(message)
		if len(query) > 100 {
			query = query[:100]
		}
	}
	query = CorrectQuery(query)
	return SimplifyQuery(query)
}
