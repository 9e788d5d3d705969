// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package browser drives a real browser for the agent's page actions. Each
// action sequence acquires a fresh handle and must release it; handles are
// never shared or reused across turns.
package browser

import "context"

// Link is one anchor found on a page.
type Link struct {
	Text string
	Href string
}

// Handle is one live browser session.
type Handle interface {
	Navigate(ctx context.Context, url string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	Text(ctx context.Context) (string, error)
	Links(ctx context.Context) ([]Link, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, value string) error
	Scroll(ctx context.Context, down bool) error
	URL() string
	Close() error
}

// Controller creates browser handles.
type Controller interface {
	Acquire(ctx context.Context) (Handle, error)
}
