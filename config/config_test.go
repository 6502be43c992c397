package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseServices(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    map[ServiceMode]bool
		expectError bool
	}{
		{
			name:     "single service - http",
			input:    "http",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:     "worker and reaper with spaces",
			input:    " worker , reaper ",
			expected: map[ServiceMode]bool{ServiceModeWorker: true, ServiceModeReaper: true},
		},
		{
			name:     "trailing comma ignored",
			input:    "http,",
			expected: map[ServiceMode]bool{ServiceModeHTTP: true},
		},
		{
			name:        "empty string",
			input:       "",
			expectError: true,
		},
		{
			name:        "only commas",
			input:       ",,",
			expectError: true,
		},
		{
			name:        "unknown service",
			input:       "http,scheduler",
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseServices(tt.input)
			if tt.expectError {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestConfig_ServiceEnabledMethods(t *testing.T) {
	cfg := AppConfig{Services: "http,reaper"}
	assert.True(t, cfg.IsHTTPServerEnabled())
	assert.False(t, cfg.IsWorkerEnabled())
	assert.True(t, cfg.IsReaperEnabled())

	invalid := AppConfig{Services: "bogus"}
	assert.False(t, invalid.IsHTTPServerEnabled())
	assert.False(t, invalid.IsWorkerEnabled())
}

func TestValidServiceModes(t *testing.T) {
	assert.Equal(t, []ServiceMode{ServiceModeHTTP, ServiceModeWorker, ServiceModeReaper}, ValidServiceModes())
}

func TestAppConfig_ParseEnv(t *testing.T) {
	t.Setenv("AUTH_MODE", "mixed")
	t.Setenv("AUTH_OIDC_ISSUER_URL", "https://login.example.com")
	t.Setenv("BUFFER_BACKEND", "memory")
	t.Setenv("BUFFER_TTL", "2h")
	t.Setenv("LLM_PROVIDER", "mistral")
	t.Setenv("DELIVERY_OAUTH_SCOPES", "reports.write reports.read")
	t.Setenv("WORKER_CONCURRENCY", "8")

	var cfg AppConfig
	require.NoError(t, env.Parse(&cfg))
	cfg.Sanitize()

	assert.Equal(t, AuthModeMixed, cfg.Auth.Mode)
	assert.True(t, cfg.Auth.Mode.AllowsAPIKey())
	assert.True(t, cfg.Auth.Mode.AllowsOIDC())
	assert.Equal(t, "https://login.example.com", cfg.Auth.OIDC.IssuerURL)
	assert.Equal(t, BufferBackendMemory, cfg.Buffer.Backend)
	assert.Equal(t, 2*time.Hour, cfg.Buffer.DefaultTTL)
	assert.Equal(t, "eki:buf:", cfg.Buffer.KeyPrefix)
	assert.Equal(t, LLMProviderMistral, cfg.LLM.Provider)
	assert.Equal(t, "https://api.mistral.ai/v1", cfg.LLM.BaseURL)
	assert.Equal(t, []string{"reports.write", "reports.read"}, cfg.Delivery.OAuthScopes)
	assert.Equal(t, 8, cfg.Worker.Concurrency)
	assert.Equal(t, "pull", cfg.Delivery.DefaultMode)
}

func TestAppConfig_InvalidEnums(t *testing.T) {
	t.Run("auth mode", func(t *testing.T) {
		t.Setenv("AUTH_MODE", "basic")
		var cfg AppConfig
		assert.Error(t, env.Parse(&cfg))
	})
	t.Run("llm provider", func(t *testing.T) {
		t.Setenv("LLM_PROVIDER", "gemini")
		var cfg AppConfig
		assert.Error(t, env.Parse(&cfg))
	})
}

func TestWorkerConfig_Sanitize(t *testing.T) {
	cfg := WorkerConfig{
		Concurrency:       0,
		Lease:             time.Second,
		HeartbeatInterval: time.Minute,
		WorkflowTimeout:   time.Minute,
	}
	cfg.Sanitize()

	assert.Equal(t, 1, cfg.Concurrency)
	assert.Equal(t, 1, cfg.ActivityConcurrency)
	assert.Equal(t, 10*time.Second, cfg.Lease)
	assert.Less(t, cfg.HeartbeatInterval, cfg.Lease)
	assert.Equal(t, 5*time.Minute, cfg.WorkflowTimeout)
	assert.Equal(t, 1, cfg.MaxRunRetries)
}

func TestReaperConfig_Sanitize(t *testing.T) {
	cfg := ReaperConfig{BatchSize: 50000}
	cfg.Sanitize()

	assert.Equal(t, time.Minute, cfg.Interval)
	assert.Equal(t, 5*time.Minute, cfg.PendingMaxAge)
	assert.Equal(t, time.Hour, cfg.Retention)
	assert.Equal(t, 10000, cfg.BatchSize)
}

func TestBufferConfig_Sanitize(t *testing.T) {
	cfg := BufferConfig{Backend: "FILESYSTEM", KeyPrefix: "  "}
	cfg.Sanitize()

	assert.Equal(t, BufferBackendRedis, cfg.Backend)
	assert.Equal(t, 6*time.Hour, cfg.DefaultTTL)
	assert.Equal(t, "eki:buf:", cfg.KeyPrefix)
}

func TestDeliveryConfig_Sanitize(t *testing.T) {
	cfg := DeliveryConfig{DefaultMode: " PUSH ", PushBaseURL: "https://epro.example.com/api/"}
	cfg.Sanitize()

	assert.Equal(t, "push", cfg.DefaultMode)
	assert.Equal(t, "https://epro.example.com/api", cfg.PushBaseURL)
	assert.False(t, cfg.UsesClientCredentials())
}
