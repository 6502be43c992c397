package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/core"
)

func noSleep(context.Context, time.Duration) error { return nil }

func newProvider(t *testing.T, provider config.LLMProvider, url string, attempts int) core.LLMProvider {
	t.Helper()
	p, err := New(Options{
		Config: config.LLMConfig{
			Provider:    provider,
			BaseURL:     url,
			Model:       "test-model",
			APIKey:      "k",
			Timeout:     10 * time.Second,
			MaxAttempts: attempts,
		},
		Sleep: noSleep,
	})
	require.NoError(t, err)
	return p
}

var req = core.LLMRequest{
	System:      "sys",
	Prompt:      "scene",
	SchemaName:  "scene_risk",
	Schema:      json.RawMessage(`{"type":"object"}`),
	Temperature: 0.2,
}

func TestOllama_GenerateStructured(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": "```json\n{\"findings\":[]}\n```"},
			"done":    true,
		})
	}))
	defer srv.Close()

	p := newProvider(t, config.LLMProviderOllama, srv.URL, 1)
	assert.Equal(t, "ollama", p.Name())

	out, err := p.GenerateStructured(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"findings":[]}`, string(out))

	assert.Equal(t, "test-model", got.Model)
	assert.False(t, got.Stream)
	assert.JSONEq(t, `{"type":"object"}`, string(got.Format))
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.InDelta(t, 0.2, got.Options["temperature"], 1e-9)
}

func TestChatCompletions_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"content": `Here: {"ok":true}`}}},
		})
	}))
	defer srv.Close()

	p := newProvider(t, config.LLMProviderMistral, srv.URL, 3)
	out, err := p.GenerateStructured(context.Background(), req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(out))
	assert.Equal(t, int32(2), calls.Load())
}

func TestChatCompletions_DoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := newProvider(t, config.LLMProviderOpenAI, srv.URL, 3)
	_, err := p.GenerateStructured(context.Background(), req)
	require.Error(t, err)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestChatCompletions_EmptyAndInvalidContent(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"empty", ""},
		{"prose", "I am unable to comply."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"choices": []map[string]any{{"message": map[string]string{"content": tt.content}}},
				})
			}))
			defer srv.Close()

			p := newProvider(t, config.LLMProviderOpenAI, srv.URL, 1)
			_, err := p.GenerateStructured(context.Background(), req)
			require.Error(t, err)
		})
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Options{Config: config.LLMConfig{Provider: config.LLMProviderMistral}})
	require.Error(t, err)

	_, err = New(Options{Config: config.LLMConfig{Provider: "claude"}})
	require.Error(t, err)

	p, err := New(Options{Config: config.LLMConfig{Provider: config.LLMProviderOllama}})
	require.NoError(t, err)
	assert.Equal(t, "ollama", p.Name())
}

func TestBackoff(t *testing.T) {
	tr := &transport{baseDelay: time.Second, maxDelay: 10 * time.Second}
	assert.Equal(t, time.Second, tr.backoff(1))
	assert.Equal(t, 2*time.Second, tr.backoff(2))
	assert.Equal(t, 8*time.Second, tr.backoff(4))
	assert.Equal(t, 10*time.Second, tr.backoff(5))
}
