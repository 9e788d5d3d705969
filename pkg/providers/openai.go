// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package providers

import (
	"strings"

	"github.com/grizzyclaw/grizzyclaw/pkg/config"
)

const defaultOpenAIModel = "gpt-5-mini"

func init() {
	RegisterFactory(ProviderOpenAI, newOpenAIProvider, openAIConfigured)
}

func openAIConfigured(cfg *config.Config) bool {
	return cfg != nil && strings.TrimSpace(cfg.Providers.OpenAI.APIKey) != ""
}

func newOpenAIProvider(cfg *config.Config) (LLMProvider, error) {
	pc := cfg.Provider(ProviderOpenAI)
	model := pc.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	return newChatCompletionsProvider(ProviderOpenAI, pc.APIBase, model, pc.APIKey, pc.Proxy, nil)
}
