// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package session holds per-conversation message history with bounded growth:
// histories are trimmed to a configured ceiling, preferring recent turns and
// older turns that carry tool activity.
package session

import (
	"strings"
	"sync"
	"time"
)

// Part is one fragment of a multi-part message body. Only text parts
// contribute to prompt assembly; other types ride along untouched.
type Part struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// Message is one conversation turn. Content holds plain string bodies;
// Parts holds structured multi-part bodies. At most one of the two is set.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	Parts   []Part `json:"parts,omitempty"`
}

// Text flattens the message body, joining text parts with spaces.
func (m Message) Text() string {
	if len(m.Parts) == 0 {
		return m.Content
	}
	var texts []string
	for _, p := range m.Parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, " ")
}

// Session is one conversation's state.
type Session struct {
	Key       string    `json:"key"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// turn serializes processing: at most one in-flight turn per session.
	// A second concurrent turn is rejected, not queued.
	turn sync.Mutex
}

// BeginTurn claims the session for one turn. It returns false when another
// turn is already in flight.
func (s *Session) BeginTurn() bool {
	return s.turn.TryLock()
}

// EndTurn releases the claim taken by BeginTurn.
func (s *Session) EndTurn() {
	s.turn.Unlock()
}

// Append adds a turn and bumps the update time.
func (s *Session) Append(msg Message) {
	s.Messages = append(s.Messages, msg)
	s.UpdatedAt = time.Now()
}

// AppendText adds a plain string turn.
func (s *Session) AppendText(role, content string) {
	s.Append(Message{Role: role, Content: content})
}

// SetMessages replaces the history wholesale, as after a trim pass.
func (s *Session) SetMessages(msgs []Message) {
	s.Messages = msgs
	s.UpdatedAt = time.Now()
}

// History returns a copy of the messages so callers can build prompts
// without racing appends.
func (s *Session) History() []Message {
	out := make([]Message, len(s.Messages))
	copy(out, s.Messages)
	return out
}

// Clear drops all messages, keeping the session itself.
func (s *Session) Clear() {
	s.Messages = nil
	s.UpdatedAt = time.Now()
}
