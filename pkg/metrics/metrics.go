// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

// Package metrics records generation latency and throughput. Recording is
// fire-and-forget; callers never block or fail on instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/grizzyclaw/grizzyclaw/pkg/logger"
)

// Collector receives generation and tool activity measurements.
type Collector interface {
	ObserveGeneration(provider, model string, latency time.Duration, tokens int)
	CountToolCall(mcp, tool string, failed bool)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) ObserveGeneration(string, string, time.Duration, int) {}
func (Nop) CountToolCall(string, string, bool)                   {}

// Prometheus exposes measurements on a scrape endpoint.
type Prometheus struct {
	registry  *prometheus.Registry
	latency   *prometheus.HistogramVec
	tokens    *prometheus.CounterVec
	toolCalls *prometheus.CounterVec
}

func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grizzyclaw_generation_latency_seconds",
			Help:    "Wall time of each provider generation attempt.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}, []string{"provider", "model"}),
		tokens: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grizzyclaw_generation_tokens_total",
			Help: "Approximate tokens produced, counted as whitespace-separated words.",
		}, []string{"provider", "model"}),
		toolCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "grizzyclaw_tool_calls_total",
			Help: "Dispatched tool calls by outcome.",
		}, []string{"mcp", "tool", "outcome"}),
	}
}

func (p *Prometheus) ObserveGeneration(provider, model string, latency time.Duration, tokens int) {
	p.latency.WithLabelValues(provider, model).Observe(latency.Seconds())
	if tokens > 0 {
		p.tokens.WithLabelValues(provider, model).Add(float64(tokens))
	}
}

func (p *Prometheus) CountToolCall(mcp, tool string, failed bool) {
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	p.toolCalls.WithLabelValues(mcp, tool, outcome).Inc()
}

// Serve exposes /metrics on listen until the server fails. Runs in its own
// goroutine; errors are logged, not returned.
func (p *Prometheus) Serve(listen string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	go func() {
		logger.InfoCF("metrics", "scrape endpoint listening", map[string]interface{}{"listen": listen})
		if err := http.ListenAndServe(listen, mux); err != nil {
			logger.ErrorCF("metrics", "scrape endpoint stopped", map[string]interface{}{"error": err.Error()})
		}
	}()
}
