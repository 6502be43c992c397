package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/core"
)

// Options configures a provider built by New.
type Options struct {
	Config     config.LLMConfig
	HTTPClient *http.Client
	Logger     *slog.Logger
	// Sleep replaces the retry wait in tests.
	Sleep func(ctx context.Context, d time.Duration) error
}

// New builds the provider selected by cfg.Provider. It is constructed once
// at startup and handed to the analyzer and the PDF structurer.
func New(opts Options) (core.LLMProvider, error) {
	cfg := opts.Config
	cfg.Sanitize()

	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Sleep == nil {
		opts.Sleep = sleepContext
	}

	t := &transport{
		provider:    string(cfg.Provider),
		httpClient:  opts.HTTPClient,
		headers:     map[string]string{},
		maxAttempts: cfg.MaxAttempts,
		baseDelay:   defaultRetryBaseDelay,
		maxDelay:    defaultRetryMaxDelay,
		sleep:       opts.Sleep,
		logger:      opts.Logger.With("component", "llm", "provider", string(cfg.Provider)),
	}

	switch cfg.Provider {
	case config.LLMProviderOllama:
		if cfg.APIKey != "" {
			t.headers["Authorization"] = "Bearer " + cfg.APIKey
		}
		return &Ollama{t: t, baseURL: cfg.BaseURL, model: cfg.Model}, nil
	case config.LLMProviderMistral, config.LLMProviderOpenAI:
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("llm: %s requires LLM_API_KEY", cfg.Provider)
		}
		t.headers["Authorization"] = "Bearer " + cfg.APIKey
		return &ChatCompletions{t: t, name: string(cfg.Provider), baseURL: cfg.BaseURL, model: cfg.Model}, nil
	case "":
		return nil, errors.New("llm: provider is required")
	default:
		return nil, fmt.Errorf("llm: unsupported provider %q", cfg.Provider)
	}
}
