// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package providers talks to LLM backends over the chat-completions wire
// format and routes generation across them with retry and fallback.
package providers

import "context"

// Message is one prompt message in provider wire format.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ModelInfo describes one model a backend advertises.
type ModelInfo struct {
	ID       string `json:"id"`
	Provider string `json:"provider,omitempty"`
}

// LLMProvider is a single generation backend. Generate streams text chunks
// to onChunk as they arrive and returns once the stream completes.
type LLMProvider interface {
	Name() string
	Generate(ctx context.Context, messages []Message, model string, options map[string]interface{}, onChunk func(string)) error
	HealthCheck(ctx context.Context) error
	ListModels(ctx context.Context) ([]ModelInfo, error)
	DefaultModel() string
}

// Request is one routed generation call. Provider and Model are optional
// overrides; empty values resolve to the router default and the provider's
// default model.
type Request struct {
	Messages []Message
	Provider string
	Model    string
	Options  map[string]interface{}
}
