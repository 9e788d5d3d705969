package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sseBody(chunks ...string) string {
	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", c)
	}
	b.WriteString("data: [DONE]\n\n")
	return b.String()
}

func TestGenerateStreamsChunks(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, sseBody("Hel", "lo ", "world"))
	}))
	defer srv.Close()

	p, err := newChatCompletionsProvider("openrouter", srv.URL+"/v1", "test-model", "sk-test", "", nil)
	require.NoError(t, err)

	var out strings.Builder
	err = p.Generate(context.Background(), []Message{{Role: "user", Content: "hi"}}, "", nil, func(c string) {
		out.WriteString(c)
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello world", out.String())
	assert.Equal(t, "Bearer sk-test", gotAuth)
}

func TestGenerateSkipsKeepalives(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, ": keepalive\n\ndata: \n\n")
		fmt.Fprint(w, sseBody("ok"))
	}))
	defer srv.Close()

	p, err := newChatCompletionsProvider("openai", srv.URL, "m", "", "", nil)
	require.NoError(t, err)

	var out strings.Builder
	require.NoError(t, p.Generate(context.Background(), nil, "m", nil, func(c string) { out.WriteString(c) }))
	assert.Equal(t, "ok", out.String())
}

func TestGenerateAuthStatusClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error": {"message": "Incorrect API key provided"}}`)
	}))
	defer srv.Close()

	p, err := newChatCompletionsProvider("openai", srv.URL, "m", "bad", "", nil)
	require.NoError(t, err)

	err = p.Generate(context.Background(), nil, "m", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuth))
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestGenerateModelNotFoundClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"message": "The model 'ghost' does not exist", "code": "model_not_found"}}`)
	}))
	defer srv.Close()

	p, err := newChatCompletionsProvider("openrouter", srv.URL, "m", "k", "", nil)
	require.NoError(t, err)

	err = p.Generate(context.Background(), nil, "ghost", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))
}

func TestGenerateServerErrorRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		fmt.Fprint(w, "upstream timeout")
	}))
	defer srv.Close()

	p, err := newChatCompletionsProvider("openrouter", srv.URL, "m", "k", "", nil)
	require.NoError(t, err)

	err = p.Generate(context.Background(), nil, "m", nil, nil)
	require.Error(t, err)
	assert.True(t, IsRetryable(err))
	assert.False(t, errors.Is(err, ErrAuth))
}

func TestGenerateSendsOptions(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf, _ := io.ReadAll(r.Body)
		gotBody = string(buf)
		fmt.Fprint(w, sseBody("ok"))
	}))
	defer srv.Close()

	p, err := newChatCompletionsProvider("lmstudio", srv.URL, "m", "", "", nil)
	require.NoError(t, err)

	opts := map[string]interface{}{"max_tokens": 512, "temperature": 0.3}
	require.NoError(t, p.Generate(context.Background(), nil, "m", opts, nil))
	assert.Contains(t, gotBody, `"max_tokens":512`)
	assert.Contains(t, gotBody, `"temperature":0.3`)
	assert.Contains(t, gotBody, `"stream":true`)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/models" {
			fmt.Fprint(w, `{"data": [{"id": "m1"}, {"id": "m2"}]}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	p, err := newChatCompletionsProvider("ollama", srv.URL, "m", "", "", nil)
	require.NoError(t, err)

	assert.NoError(t, p.HealthCheck(context.Background()))

	models, err := p.ListModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "m1", models[0].ID)
	assert.Equal(t, "ollama", models[0].Provider)
}

func TestNewProviderValidation(t *testing.T) {
	_, err := newChatCompletionsProvider("", "http://x", "m", "", "", nil)
	assert.Error(t, err)

	_, err = newChatCompletionsProvider("openai", "", "m", "", "", nil)
	assert.Error(t, err)

	_, err = newChatCompletionsProvider("openai", "http://x", "m", "", "::bad proxy::", nil)
	assert.Error(t, err)
}
