// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package session

import "strings"

// priorityMarkers flag messages worth keeping past the recency window:
// tool activity, command blocks, and tool-result displays.
var priorityMarkers = []string{
	"[Tool result",
	"TOOL_CALL",
	"BROWSER_ACTION",
	"SCHEDULE_TASK",
	"MEMORY_SAVE",
	"EXEC_COMMAND",
	"⚒",
}

// HasPriorityContent reports whether a message carries tool calls, results,
// or other high-value context. Multi-part bodies are scanned across all
// text parts.
func HasPriorityContent(m Message) bool {
	text := m.Text()
	for _, marker := range priorityMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}

// Trim bounds history to maxMessages. The most recent messages are always
// kept; remaining slots go to the most recent older messages with priority
// content, preserved in their original relative order ahead of the recent
// block.
func Trim(messages []Message, maxMessages int) []Message {
	if maxMessages <= 0 || len(messages) <= maxMessages {
		return messages
	}

	recentCount := maxMessages - 4
	if half := maxMessages / 2; half > recentCount {
		recentCount = half
	}

	recent := messages[len(messages)-recentCount:]
	older := messages[:len(messages)-recentCount]

	prioritySlots := maxMessages - len(recent)
	if prioritySlots <= 0 {
		return recent
	}

	var priority []Message
	for _, m := range older {
		if HasPriorityContent(m) {
			priority = append(priority, m)
		}
	}
	if len(priority) > prioritySlots {
		priority = priority[len(priority)-prioritySlots:]
	}

	out := make([]Message, 0, len(priority)+len(recent))
	out = append(out, priority...)
	out = append(out, recent...)
	return out
}
