package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: API key / OIDC authentication
//   - database.go: Postgres, Redis and the transient buffer
//   - http.go: HTTP server and rate limiting
//   - llm.go: LLM provider and taxonomy overrides
//   - delivery.go: report delivery (pull / push)
//   - services.go: service mode, workflow worker and reaper
//   - notify.go: Slack / PagerDuty alerts for failed runs
type AppConfig struct {
	// IsDev relaxes production guard rails (plaintext buffer fallback, auth mode "none").
	IsDev bool `env:"DEV" envDefault:"false"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	Auth AuthConfig

	Postgres DBConfig     `envPrefix:"DB_"`
	Redis    RedisConfig  `envPrefix:"REDIS_"`
	Buffer   BufferConfig `envPrefix:"BUFFER_"`

	HTTP      HTTPConfig      `envPrefix:"HTTP_"`
	RateLimit RateLimitConfig `envPrefix:"RATE_LIMIT_"`

	LLM      LLMConfig      `envPrefix:"LLM_"`
	Taxonomy TaxonomyConfig `envPrefix:"TAXONOMY_"`
	Delivery DeliveryConfig `envPrefix:"DELIVERY_"`

	// Services is a comma-delimited list of enabled roles: http, worker, reaper.
	Services string `env:"SERVICES" envDefault:"http,worker"`

	Worker  WorkerConfig  `envPrefix:"WORKER_"`
	Reaper  ReaperConfig  `envPrefix:"REAPER_"`
	Metrics MetricsConfig `envPrefix:"METRICS_"`
	Notify  NotifyConfig  `envPrefix:"NOTIFY_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Postgres.Sanitize()
	c.Buffer.Sanitize()
	c.HTTP.Sanitize()
	c.RateLimit.Sanitize()
	c.LLM.Sanitize()
	c.Delivery.Sanitize()
	c.Worker.Sanitize()
	c.Reaper.Sanitize()
	c.Metrics.Sanitize()
	c.Notify.Sanitize()
	c.detectDevMode()
}

// detectDevMode falls back to APP_ENV when DEV is unset.
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		appEnv := strings.ToLower(os.Getenv("APP_ENV"))
		c.IsDev = appEnv == "development" || appEnv == "dev"
	}
}

// GetEnabledServices returns the enabled services based on the Services field.
func (c *AppConfig) GetEnabledServices() (map[ServiceMode]bool, error) {
	return ParseServices(c.Services)
}

func (c *AppConfig) serviceEnabled(mode ServiceMode) bool {
	services, err := c.GetEnabledServices()
	if err != nil {
		return false
	}
	return services[mode]
}

// IsHTTPServerEnabled returns true if the HTTP server service is enabled.
func (c *AppConfig) IsHTTPServerEnabled() bool { return c.serviceEnabled(ServiceModeHTTP) }

// IsWorkerEnabled returns true if the workflow worker is enabled.
func (c *AppConfig) IsWorkerEnabled() bool { return c.serviceEnabled(ServiceModeWorker) }

// IsReaperEnabled returns true if the reaper service is enabled.
func (c *AppConfig) IsReaperEnabled() bool { return c.serviceEnabled(ServiceModeReaper) }
