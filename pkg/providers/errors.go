// GrizzyClaw - personal AI agent
// License: MIT
//
// Copyright (c) 2026 GrizzyClaw contributors

package providers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel error kinds. Auth failures stop retries for a provider;
// model-not-found aborts the whole routed call since every fallback would
// fail the same way.
var (
	ErrAuth          = errors.New("authentication failed")
	ErrModelNotFound = errors.New("model not found")
)

// APIError is a non-2xx response from a backend.
type APIError struct {
	Provider string
	Status   int
	Message  string
	kind     error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API request failed: status=%d error=%s", e.Provider, e.Status, e.Message)
}

func (e *APIError) Unwrap() error { return e.kind }

// newAPIError classifies a failed response by status and body.
func newAPIError(provider string, status int, body []byte) *APIError {
	msg := augmentErrorHint(provider, extractAPIError(body))
	e := &APIError{Provider: provider, Status: status, Message: msg}

	lower := strings.ToLower(msg)
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		e.kind = ErrAuth
	case strings.Contains(lower, "invalid api key") || strings.Contains(lower, "incorrect api key"):
		e.kind = ErrAuth
	case status == http.StatusNotFound && strings.Contains(lower, "model"):
		e.kind = ErrModelNotFound
	case strings.Contains(lower, "model_not_found") || strings.Contains(lower, "is not a valid model"):
		e.kind = ErrModelNotFound
	}
	return e
}

// IsRetryable reports whether another attempt against the same provider can
// help. Auth and model errors never clear on retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrAuth) || errors.Is(err, ErrModelNotFound) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests ||
			apiErr.Status == http.StatusRequestTimeout ||
			apiErr.Status >= 500
	}
	// network-level failures are worth retrying
	return true
}

func extractAPIError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Error struct {
			Message string      `json:"message"`
			Type    string      `json:"type"`
			Code    interface{} `json:"code"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error.Message); msg != "" {
			if code, ok := payload.Error.Code.(string); ok && code != "" {
				return msg + " (" + code + ")"
			}
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}

// augmentErrorHint appends a recovery hint for errors users hit often.
func augmentErrorHint(provider, message string) string {
	msg := strings.TrimSpace(message)
	if msg == "" {
		return msg
	}

	lower := strings.ToLower(msg)
	switch provider {
	case ProviderOpenAI:
		if strings.Contains(lower, "incorrect api key provided") {
			return msg + " Hint: provider openai expects a Platform API credential, not a ChatGPT login token."
		}
	case ProviderOllama, ProviderLMStudio:
		if strings.Contains(lower, "connection refused") {
			return msg + " Hint: is the local server running at the configured base URL?"
		}
	}
	return msg
}
