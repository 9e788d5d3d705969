// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package memory persists long-term notes the agent saves across
// conversations: user facts, preferences, and scheduled reminder payloads.
package memory

import (
	"context"
	"time"
)

// Item is one saved memory.
type Item struct {
	ID        string
	Content   string
	Source    string
	Tags      []string
	CreatedAt time.Time
}

// Store is the persistence contract for long-term memory.
type Store interface {
	Save(ctx context.Context, content, source string, tags []string) (Item, error)
	Recent(ctx context.Context, limit int) ([]Item, error)
	Search(ctx context.Context, query string, limit int) ([]Item, error)
	Delete(ctx context.Context, id string) error
	Close() error
}
