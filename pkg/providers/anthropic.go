// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package providers

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/grizzyclaw/grizzyclaw/pkg/config"
)

const (
	defaultAnthropicModel   = "claude-sonnet-4-5"
	anthropicAPIVersion     = "2023-06-01"
	anthropicMaxTokensFloor = 4096
)

func init() {
	RegisterFactory(ProviderAnthropic, newAnthropicProvider, anthropicConfigured)
}

func anthropicConfigured(cfg *config.Config) bool {
	return cfg != nil && strings.TrimSpace(cfg.Providers.Anthropic.APIKey) != ""
}

func newAnthropicProvider(cfg *config.Config) (LLMProvider, error) {
	pc := cfg.Provider(ProviderAnthropic)
	model := pc.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	apiBase := strings.TrimRight(strings.TrimSpace(pc.APIBase), "/")
	if apiBase == "" {
		return nil, fmt.Errorf("anthropic API base not configured")
	}

	client := &http.Client{Timeout: defaultHTTPTimeout}
	if proxy := strings.TrimSpace(pc.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("parse anthropic proxy: %w", err)
		}
		client.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &anthropicProvider{
		apiBase:      apiBase,
		defaultModel: model,
		apiKey:       strings.TrimSpace(pc.APIKey),
		httpClient:   client,
	}, nil
}

// anthropicProvider speaks the Anthropic Messages API. Unlike the
// chat-completions backends it carries the system prompt as a top-level
// field and requires max_tokens on every request.
type anthropicProvider struct {
	apiBase      string
	defaultModel string
	apiKey       string
	httpClient   *http.Client
}

func (p *anthropicProvider) Name() string { return ProviderAnthropic }

func (p *anthropicProvider) DefaultModel() string {
	if p == nil {
		return ""
	}
	return p.defaultModel
}

// splitSystemMessages hoists system messages out of the transcript,
// concatenating multiples with blank lines.
func splitSystemMessages(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case "system":
			if m.Content != "" {
				system = append(system, m.Content)
			}
		case "user", "assistant":
			rest = append(rest, m)
		}
	}
	return strings.Join(system, "\n\n"), rest
}

func (p *anthropicProvider) Generate(ctx context.Context, messages []Message, model string, options map[string]interface{}, onChunk func(string)) error {
	if p == nil {
		return fmt.Errorf("provider not initialized")
	}

	model = strings.TrimSpace(model)
	if model == "" {
		model = p.defaultModel
	}

	system, rest := splitSystemMessages(messages)
	if len(rest) == 0 {
		return fmt.Errorf("anthropic request has no messages")
	}

	maxTokens := anthropicMaxTokensFloor
	if v, ok := optionAsInt(options, "max_tokens"); ok && v > 0 {
		maxTokens = v
	}

	requestBody := map[string]interface{}{
		"model":      model,
		"messages":   rest,
		"max_tokens": maxTokens,
		"stream":     true,
	}
	if system != "" {
		requestBody["system"] = system
	}
	if temperature, ok := optionAsFloat(options, "temperature"); ok {
		requestBody["temperature"] = temperature
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("marshal anthropic request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/v1/messages", bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create anthropic request: %w", err)
	}
	p.applyHeaders(req)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send anthropic request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return newAPIError(ProviderAnthropic, resp.StatusCode, body)
	}

	return consumeAnthropicStream(resp.Body, onChunk)
}

func (p *anthropicProvider) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)
}

// consumeAnthropicStream reads Messages API SSE data lines, forwarding
// content_block_delta text to onChunk until message_stop or EOF.
func consumeAnthropicStream(body io.Reader, onChunk func(string)) error {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" {
			continue
		}

		var event struct {
			Type  string `json:"type"`
			Delta struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"delta"`
			Error *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			continue
		}

		switch event.Type {
		case "content_block_delta":
			if event.Delta.Text != "" && onChunk != nil {
				onChunk(event.Delta.Text)
			}
		case "error":
			if event.Error != nil {
				return fmt.Errorf("anthropic stream error: %s", event.Error.Message)
			}
			return fmt.Errorf("anthropic stream error")
		case "message_stop":
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read anthropic stream: %w", err)
	}
	return nil
}

func (p *anthropicProvider) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"/v1/models", nil)
	if err != nil {
		return err
	}
	p.applyHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic unreachable: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("anthropic health check failed: status=%d", resp.StatusCode)
	}
	return nil
}

func (p *anthropicProvider) ListModels(ctx context.Context) ([]ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.apiBase+"/v1/models", nil)
	if err != nil {
		return nil, err
	}
	p.applyHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list anthropic models: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read anthropic models: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, newAPIError(ProviderAnthropic, resp.StatusCode, body)
	}

	var payload struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("parse anthropic models: %w", err)
	}

	models := make([]ModelInfo, 0, len(payload.Data))
	for _, m := range payload.Data {
		models = append(models, ModelInfo{ID: m.ID, Provider: ProviderAnthropic})
	}
	return models, nil
}
