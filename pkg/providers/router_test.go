package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	name      string
	model     string
	healthy   bool
	failures  int // errors to return before succeeding
	failWith  error
	calls     int
	healthCks int
	output    string
}

func (f *fakeProvider) Name() string         { return f.name }
func (f *fakeProvider) DefaultModel() string { return f.model }

func (f *fakeProvider) Generate(_ context.Context, _ []Message, _ string, _ map[string]interface{}, onChunk func(string)) error {
	f.calls++
	if f.calls <= f.failures {
		if f.failWith != nil {
			return f.failWith
		}
		return fmt.Errorf("boom %d", f.calls)
	}
	for _, word := range strings.Fields(f.output) {
		onChunk(word + " ")
	}
	return nil
}

func (f *fakeProvider) HealthCheck(context.Context) error {
	f.healthCks++
	if !f.healthy {
		return fmt.Errorf("%s down", f.name)
	}
	return nil
}

func (f *fakeProvider) ListModels(context.Context) ([]ModelInfo, error) {
	return []ModelInfo{{ID: f.model, Provider: f.name}}, nil
}

type recordedMetrics struct {
	observations []int
}

func (m *recordedMetrics) ObserveGeneration(_, _ string, _ time.Duration, tokens int) {
	m.observations = append(m.observations, tokens)
}

func newTestRouter(maxRetries int, m Metrics) (*Router, *[]time.Duration) {
	r := NewRouter(maxRetries, m)
	var waits []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return r, &waits
}

func TestGenerateRetriesThenSucceeds(t *testing.T) {
	p := &fakeProvider{name: "openrouter", model: "m1", failures: 2, output: "hello there world"}
	m := &recordedMetrics{}
	r, waits := newTestRouter(3, m)
	r.AddProvider("openrouter", p, true)

	var out strings.Builder
	err := r.Generate(context.Background(), Request{Messages: []Message{{Role: "user", Content: "hi"}}}, func(c string) {
		out.WriteString(c)
	})
	require.NoError(t, err)

	assert.Equal(t, 3, p.calls, "two failures then success")
	require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
	assert.Equal(t, "hello there world ", out.String())
	assert.Zero(t, p.healthCks, "no fallback sweep on success")

	// one observation per attempt, token count only on the successful one
	require.Len(t, m.observations, 3)
	assert.Equal(t, []int{0, 0, 3}, m.observations)
}

func TestGenerateAuthErrorSkipsRetries(t *testing.T) {
	authErr := &APIError{Provider: "openrouter", Status: http.StatusUnauthorized, Message: "bad key", kind: ErrAuth}
	p := &fakeProvider{name: "openrouter", model: "m1", failures: 99, failWith: authErr}
	fb := &fakeProvider{name: "ollama", model: "m2", healthy: true, output: "fallback answer"}

	r, waits := newTestRouter(3, nil)
	r.AddProvider("openrouter", p, true)
	r.AddProvider("ollama", fb, false)

	var out strings.Builder
	err := r.Generate(context.Background(), Request{}, func(c string) { out.WriteString(c) })
	require.NoError(t, err)

	assert.Equal(t, 1, p.calls, "auth errors are never retried")
	assert.Empty(t, *waits)
	assert.Equal(t, 1, fb.healthCks)
	assert.Contains(t, out.String(), "fallback answer")
}

func TestGenerateModelNotFoundIsTerminal(t *testing.T) {
	modelErr := &APIError{Provider: "openrouter", Status: http.StatusNotFound, Message: "no such model", kind: ErrModelNotFound}
	p := &fakeProvider{name: "openrouter", model: "m1", failures: 99, failWith: modelErr}
	fb := &fakeProvider{name: "ollama", model: "m2", healthy: true, output: "should not run"}

	r, _ := newTestRouter(3, nil)
	r.AddProvider("openrouter", p, true)
	r.AddProvider("ollama", fb, false)

	err := r.Generate(context.Background(), Request{Model: "ghost-model"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrModelNotFound))
	assert.Equal(t, 1, p.calls)
	assert.Zero(t, fb.calls, "model errors must not trigger fallback")
}

func TestGenerateFallbackSkipsUnhealthy(t *testing.T) {
	p := &fakeProvider{name: "openrouter", model: "m1", failures: 99}
	down := &fakeProvider{name: "openai", model: "m2", healthy: false}
	up := &fakeProvider{name: "ollama", model: "m3", healthy: true, output: "rescued"}

	r, _ := newTestRouter(1, nil)
	r.AddProvider("openrouter", p, true)
	r.AddProvider("openai", down, false)
	r.AddProvider("ollama", up, false)

	var out strings.Builder
	err := r.Generate(context.Background(), Request{}, func(c string) { out.WriteString(c) })
	require.NoError(t, err)

	assert.Equal(t, 1, down.healthCks)
	assert.Zero(t, down.calls)
	assert.Contains(t, out.String(), "rescued")
}

func TestGenerateExhaustionAggregatesError(t *testing.T) {
	p := &fakeProvider{name: "openrouter", model: "m1", failures: 99}
	r, waits := newTestRouter(2, nil)
	r.AddProvider("openrouter", p, true)

	err := r.Generate(context.Background(), Request{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no providers available")
	assert.Contains(t, err.Error(), "openrouter")
	assert.Equal(t, 3, p.calls, "maxRetries=2 means 3 attempts")
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
}

func TestGenerateExhaustionReportsPrimaryCause(t *testing.T) {
	p := &fakeProvider{name: "openrouter", model: "m1", failures: 99, failWith: fmt.Errorf("primary boom")}
	fb := &fakeProvider{name: "ollama", model: "m2", healthy: true, failures: 99, failWith: fmt.Errorf("fallback boom")}

	r, _ := newTestRouter(0, nil)
	r.AddProvider("openrouter", p, true)
	r.AddProvider("ollama", fb, false)

	err := r.Generate(context.Background(), Request{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openrouter failed")
	assert.Contains(t, err.Error(), "primary boom")
	assert.NotContains(t, err.Error(), "fallback boom")
	assert.Equal(t, 1, fb.calls, "fallback was tried")
}

func TestGenerateUnknownProvider(t *testing.T) {
	r, _ := newTestRouter(1, nil)
	r.AddProvider("openrouter", &fakeProvider{name: "openrouter", model: "m"}, true)

	err := r.Generate(context.Background(), Request{Provider: "nonexistent"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not available")
}

func TestAddProviderDefaultSelection(t *testing.T) {
	r, _ := newTestRouter(1, nil)
	r.AddProvider("ollama", &fakeProvider{name: "ollama"}, false)
	r.AddProvider("openrouter", &fakeProvider{name: "openrouter"}, true)

	assert.Equal(t, "openrouter", r.DefaultProvider())
	assert.Equal(t, []string{"ollama", "openrouter"}, r.Providers())
}

func TestBackoffCap(t *testing.T) {
	p := &fakeProvider{name: "openrouter", model: "m1", failures: 99}
	r, waits := newTestRouter(8, nil)
	r.AddProvider("openrouter", p, true)

	_ = r.Generate(context.Background(), Request{}, nil)
	require.NotEmpty(t, *waits)
	for _, w := range *waits {
		assert.LessOrEqual(t, w, maxBackoff)
	}
	assert.Equal(t, maxBackoff, (*waits)[len(*waits)-1])
}
