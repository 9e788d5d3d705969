// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package providers

import (
	"strings"

	"github.com/grizzyclaw/grizzyclaw/pkg/config"
)

// Local backends (Ollama, LM Studio) expose the same chat-completions
// surface without credentials; a reachable base URL is the only requirement.

const (
	defaultOllamaModel   = "llama3.2"
	defaultLMStudioModel = "local-model"
)

func init() {
	RegisterFactory(ProviderOllama, newOllamaProvider, ollamaConfigured)
	RegisterFactory(ProviderLMStudio, newLMStudioProvider, lmStudioConfigured)
}

func ollamaConfigured(cfg *config.Config) bool {
	return cfg != nil && strings.TrimSpace(cfg.Providers.Ollama.APIBase) != ""
}

func lmStudioConfigured(cfg *config.Config) bool {
	return cfg != nil && strings.TrimSpace(cfg.Providers.LMStudio.APIBase) != ""
}

func newOllamaProvider(cfg *config.Config) (LLMProvider, error) {
	pc := cfg.Provider(ProviderOllama)
	model := pc.Model
	if model == "" {
		model = defaultOllamaModel
	}
	return newChatCompletionsProvider(ProviderOllama, pc.APIBase, model, pc.APIKey, pc.Proxy, nil)
}

func newLMStudioProvider(cfg *config.Config) (LLMProvider, error) {
	pc := cfg.Provider(ProviderLMStudio)
	model := pc.Model
	if model == "" {
		model = defaultLMStudioModel
	}
	return newChatCompletionsProvider(ProviderLMStudio, pc.APIBase, model, pc.APIKey, pc.Proxy, nil)
}
