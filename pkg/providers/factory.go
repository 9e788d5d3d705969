// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package providers

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/grizzyclaw/grizzyclaw/pkg/config"
)

const (
	ProviderOpenRouter = "openrouter"
	ProviderOpenAI     = "openai"
	ProviderAnthropic  = "anthropic"
	ProviderOllama     = "ollama"
	ProviderLMStudio   = "lmstudio"
)

type providerFactory struct {
	build      func(cfg *config.Config) (LLMProvider, error)
	configured func(cfg *config.Config) bool
}

var (
	factoryMu       sync.RWMutex
	factories       = map[string]providerFactory{}
	registrationErr error
)

func RegisterFactory(name string, build func(cfg *config.Config) (LLMProvider, error), configured func(cfg *config.Config) bool) {
	name = NormalizeProviderName(name)
	factoryMu.Lock()
	defer factoryMu.Unlock()
	if name == "" {
		registrationErr = errors.Join(registrationErr, fmt.Errorf("providers: factory name is required"))
		return
	}
	if build == nil {
		registrationErr = errors.Join(registrationErr, fmt.Errorf("providers: factory build func is required"))
		return
	}
	factories[name] = providerFactory{build: build, configured: configured}
}

func SupportedProviders() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	providers := make([]string, 0, len(factories))
	for name := range factories {
		providers = append(providers, name)
	}
	sort.Strings(providers)
	return providers
}

func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ProviderOpenRouter
	}
	return name
}

// New builds a single named provider from config.
func New(name string, cfg *config.Config) (LLMProvider, error) {
	name = NormalizeProviderName(name)

	factoryMu.RLock()
	if registrationErr != nil {
		err := registrationErr
		factoryMu.RUnlock()
		return nil, fmt.Errorf("provider registration failed: %w", err)
	}
	factory, ok := factories[name]
	factoryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q: supported providers are %s", name, strings.Join(SupportedProviders(), ", "))
	}
	return factory.build(cfg)
}

// NewRouterFromConfig builds every configured provider and registers them
// with a router, the configured default marked as primary.
func NewRouterFromConfig(cfg *config.Config, collector Metrics) (*Router, error) {
	router := NewRouter(cfg.Providers.MaxRetries, collector)
	def := NormalizeProviderName(cfg.Providers.Default)

	factoryMu.RLock()
	regErr := registrationErr
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	factoryMu.RUnlock()
	if regErr != nil {
		return nil, fmt.Errorf("provider registration failed: %w", regErr)
	}
	sort.Strings(names)

	for _, name := range names {
		factoryMu.RLock()
		factory := factories[name]
		factoryMu.RUnlock()

		if factory.configured != nil && !factory.configured(cfg) {
			continue
		}
		provider, err := factory.build(cfg)
		if err != nil {
			return nil, fmt.Errorf("build provider %s: %w", name, err)
		}
		router.AddProvider(name, provider, name == def)
	}

	if len(router.Providers()) == 0 {
		return nil, fmt.Errorf("no providers configured: set an API key or a local backend base URL")
	}
	return router, nil
}
