// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
)

const component = "browser"

// RodController launches a fresh headless Chrome per acquire. Launching per
// call is slower than pooling but leaves nothing running between turns.
type RodController struct {
	headless   bool
	navTimeout time.Duration
}

func NewRodController(headless bool, navTimeout time.Duration) *RodController {
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	return &RodController{headless: headless, navTimeout: navTimeout}
}

func (c *RodController) Acquire(ctx context.Context) (Handle, error) {
	l := launcher.New().Headless(c.headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	b := rod.New().ControlURL(controlURL).Context(ctx)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}

	page, err := b.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = b.Close()
		l.Cleanup()
		return nil, fmt.Errorf("open page: %w", err)
	}

	logger.DebugC(component, "browser session acquired")
	return &rodHandle{
		launcher:   l,
		browser:    b,
		page:       page,
		navTimeout: c.navTimeout,
	}, nil
}

type rodHandle struct {
	launcher   *launcher.Launcher
	browser    *rod.Browser
	page       *rod.Page
	navTimeout time.Duration
	currentURL string
}

func (h *rodHandle) Navigate(ctx context.Context, url string) error {
	page := h.page.Context(ctx).Timeout(h.navTimeout)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	h.currentURL = url
	return nil
}

func (h *rodHandle) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	return h.page.Context(ctx).Screenshot(fullPage, nil)
}

func (h *rodHandle) Text(ctx context.Context) (string, error) {
	res, err := h.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `() => document.body ? document.body.innerText : ""`,
	})
	if err != nil {
		return "", fmt.Errorf("read page text: %w", err)
	}
	return res.Value.Str(), nil
}

func (h *rodHandle) Links(ctx context.Context) ([]Link, error) {
	res, err := h.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS: `() => Array.from(document.querySelectorAll('a[href]')).slice(0, 100).map(a => ({
			text: (a.innerText || '').trim().slice(0, 200),
			href: a.href
		}))`,
	})
	if err != nil {
		return nil, fmt.Errorf("collect links: %w", err)
	}

	var links []Link
	for _, item := range res.Value.Arr() {
		links = append(links, Link{
			Text: item.Get("text").Str(),
			Href: item.Get("href").Str(),
		})
	}
	return links, nil
}

func (h *rodHandle) Click(ctx context.Context, selector string) error {
	el, err := h.page.Context(ctx).Timeout(h.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (h *rodHandle) Fill(ctx context.Context, selector, value string) error {
	el, err := h.page.Context(ctx).Timeout(h.navTimeout).Element(selector)
	if err != nil {
		return fmt.Errorf("find %q: %w", selector, err)
	}
	return el.Input(value)
}

func (h *rodHandle) Scroll(ctx context.Context, down bool) error {
	delta := 600.0
	if !down {
		delta = -600.0
	}
	_, err := h.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      `(dy) => window.scrollBy(0, dy)`,
		JSArgs:  []interface{}{delta},
		ByValue: true,
	})
	if err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (h *rodHandle) URL() string { return h.currentURL }

// Close tears the whole session down: page, browser, launched process.
func (h *rodHandle) Close() error {
	var firstErr error
	if err := h.page.Close(); err != nil {
		firstErr = err
	}
	if err := h.browser.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	h.launcher.Cleanup()
	logger.DebugC(component, "browser session released")
	return firstErr
}
