// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package providers

import (
	"strings"

	"github.com/grizzyclaw/grizzyclaw/pkg/config"
)

const defaultOpenRouterModel = "openai/gpt-5.2"

func init() {
	RegisterFactory(ProviderOpenRouter, newOpenRouterProvider, openRouterConfigured)
}

func openRouterConfigured(cfg *config.Config) bool {
	return cfg != nil && strings.TrimSpace(cfg.Providers.OpenRouter.APIKey) != ""
}

func newOpenRouterProvider(cfg *config.Config) (LLMProvider, error) {
	pc := cfg.Provider(ProviderOpenRouter)
	model := pc.Model
	if model == "" {
		model = defaultOpenRouterModel
	}
	return newChatCompletionsProvider(
		ProviderOpenRouter,
		pc.APIBase,
		model,
		pc.APIKey,
		pc.Proxy,
		map[string]string{
			"HTTP-Referer": "https://github.com/grizzyclaw/grizzyclaw",
			"X-Title":      "GrizzyClaw",
		},
	)
}
