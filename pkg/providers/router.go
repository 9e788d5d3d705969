// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package providers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
	"github.com/grizzyclaw/grizzyclaw/pkg/utils"
)

const (
	defaultMaxRetries = 3
	initialBackoff    = time.Second
	maxBackoff        = 60 * time.Second
)

const routerComponent = "router"

// Metrics is the slice of the metrics collector the router needs.
// Recording is fire-and-forget.
type Metrics interface {
	ObserveGeneration(provider, model string, latency time.Duration, tokens int)
}

// Router fans generation calls out to registered providers: retry the chosen
// provider with exponential backoff, then sweep the others as fallbacks.
type Router struct {
	mu          sync.RWMutex
	providers   map[string]LLMProvider
	order       []string
	defaultName string

	maxRetries int
	metrics    Metrics

	// sleep is replaceable in tests
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRouter(maxRetries int, collector Metrics) *Router {
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	return &Router{
		providers:  make(map[string]LLMProvider),
		maxRetries: maxRetries,
		metrics:    collector,
		sleep:      ctxSleep,
	}
}

// AddProvider registers a backend. Only an explicit default wins; otherwise
// the first added provider becomes the default.
func (r *Router) AddProvider(name string, provider LLMProvider, isDefault bool) {
	name = NormalizeProviderName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider
	if isDefault || r.defaultName == "" {
		r.defaultName = name
	}
}

// Providers lists registered provider names in registration order.
func (r *Router) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// DefaultProvider returns the primary provider name.
func (r *Router) DefaultProvider() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultName
}

// Generate runs one routed generation call, streaming chunks to onChunk.
// The chosen provider is retried with doubling backoff on retryable errors;
// auth errors stop retries immediately. When the primary is exhausted, other
// healthy providers are tried in registration order. A model-not-found error
// is terminal: no retry, no fallback, since the request itself is wrong.
func (r *Router) Generate(ctx context.Context, req Request, onChunk func(string)) error {
	name := req.Provider
	if name == "" {
		name = r.DefaultProvider()
	}
	name = NormalizeProviderName(name)

	r.mu.RLock()
	primary, ok := r.providers[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("provider %q not available", name)
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = primary.DefaultModel()
	}

	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		err := r.attempt(ctx, primary, model, req, onChunk)
		if err == nil {
			return nil
		}
		lastErr = err

		if errors.Is(err, ErrModelNotFound) {
			return fmt.Errorf("model %q rejected by %s: %w", model, name, err)
		}
		if errors.Is(err, ErrAuth) || !IsRetryable(err) || attempt >= r.maxRetries {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		wait := backoff
		if wait > maxBackoff {
			wait = maxBackoff
		}
		logger.WarnCF(routerComponent, "generation failed, retrying", map[string]interface{}{
			"provider": name,
			"attempt":  attempt + 1,
			"retries":  r.maxRetries,
			"wait":     wait.String(),
			"error":    err.Error(),
		})
		if err := r.sleep(ctx, wait); err != nil {
			return err
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	// The aggregated error reports why the requested provider failed, not
	// whatever the last fallback happened to return.
	firstErr := lastErr

	logger.WarnCF(routerComponent, "provider exhausted, trying fallbacks", map[string]interface{}{
		"provider": name,
		"error":    firstErr.Error(),
	})

	for _, fbName := range r.Providers() {
		if fbName == name {
			continue
		}
		r.mu.RLock()
		fallback := r.providers[fbName]
		r.mu.RUnlock()

		if err := fallback.HealthCheck(ctx); err != nil {
			logger.DebugCF(routerComponent, "fallback unhealthy", map[string]interface{}{
				"provider": fbName, "error": err.Error(),
			})
			continue
		}
		logger.InfoCF(routerComponent, "falling back", map[string]interface{}{"provider": fbName})
		if err := r.attempt(ctx, fallback, req.Model, req, onChunk); err != nil {
			logger.DebugCF(routerComponent, "fallback failed", map[string]interface{}{
				"provider": fbName, "error": err.Error(),
			})
			continue
		}
		return nil
	}

	return fmt.Errorf("no providers available: %s failed: %w", name, firstErr)
}

// attempt runs one provider call, timing it and counting output tokens.
func (r *Router) attempt(ctx context.Context, p LLMProvider, model string, req Request, onChunk func(string)) error {
	start := time.Now()
	tokens := 0
	counting := func(chunk string) {
		tokens += utils.CountWhitespaceTokens(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}

	err := p.Generate(ctx, req.Messages, model, req.Options, counting)

	if r.metrics != nil {
		r.metrics.ObserveGeneration(p.Name(), model, time.Since(start), tokens)
	}
	return err
}

// HealthCheck probes every provider.
func (r *Router) HealthCheck(ctx context.Context) map[string]error {
	results := make(map[string]error)
	for _, name := range r.Providers() {
		r.mu.RLock()
		p := r.providers[name]
		r.mu.RUnlock()
		results[name] = p.HealthCheck(ctx)
	}
	return results
}

// ListModels aggregates models across providers, skipping failures.
func (r *Router) ListModels(ctx context.Context) []ModelInfo {
	var all []ModelInfo
	for _, name := range r.Providers() {
		r.mu.RLock()
		p := r.providers[name]
		r.mu.RUnlock()

		models, err := p.ListModels(ctx)
		if err != nil {
			logger.DebugCF(routerComponent, "list models failed", map[string]interface{}{
				"provider": name, "error": err.Error(),
			})
			continue
		}
		all = append(all, models...)
	}
	return all
}

func ctxSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
