package config

import "time"

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"ADDR" envDefault:":8080"`

	// BaseURL is used to build absolute report URLs in responses.
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8080"`

	// MaxBodyBytes bounds submission bodies (base64 inflates scripts by a third).
	MaxBodyBytes int64 `env:"MAX_BODY_BYTES" envDefault:"15728640"`

	// MaxConnections caps concurrent connections via netutil.LimitListener; 0 disables the cap.
	MaxConnections int `env:"MAX_CONNECTIONS" envDefault:"512"`

	ReadTimeout  time.Duration `env:"READ_TIMEOUT"  envDefault:"30s"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	IdleTimeout  time.Duration `env:"IDLE_TIMEOUT"  envDefault:"120s"`

	// CompressionEnabled gzips JSON responses for clients that accept it.
	CompressionEnabled bool `env:"COMPRESSION_ENABLED" envDefault:"true"`
	CompressionLevel   int  `env:"COMPRESSION_LEVEL"   envDefault:"5"`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	if h.MaxBodyBytes < 1<<20 {
		h.MaxBodyBytes = 1 << 20
	}
	if h.MaxConnections < 0 {
		h.MaxConnections = 0
	}
	if h.ReadTimeout <= 0 {
		h.ReadTimeout = 30 * time.Second
	}
	if h.WriteTimeout <= 0 {
		h.WriteTimeout = 30 * time.Second
	}
	if h.IdleTimeout <= 0 {
		h.IdleTimeout = 120 * time.Second
	}
	if h.CompressionLevel < 1 || h.CompressionLevel > 9 {
		h.CompressionLevel = 5
	}
}

// RateLimitConfig controls per-user request rate limiting.
type RateLimitConfig struct {
	Enabled bool `env:"ENABLED" envDefault:"true"`
	// RequestsPerMinute is the sustained rate per user.
	RequestsPerMinute int `env:"REQUESTS_PER_MINUTE" envDefault:"30"`
	Burst             int `env:"BURST"               envDefault:"10"`
	// IdleTTL evicts limiters for users that went quiet.
	IdleTTL time.Duration `env:"IDLE_TTL" envDefault:"30m"`
}

// Sanitize applies guardrails to rate limit configuration values.
func (r *RateLimitConfig) Sanitize() {
	if r.RequestsPerMinute < 1 {
		r.RequestsPerMinute = 1
	}
	if r.Burst < 1 {
		r.Burst = 1
	}
	if r.IdleTTL < time.Minute {
		r.IdleTTL = time.Minute
	}
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"ENABLED" envDefault:"true"`
	Path    string `env:"PATH"    envDefault:"/metrics"`
}

// Sanitize applies guardrails to metrics configuration values.
func (m *MetricsConfig) Sanitize() {
	if m.Path == "" || m.Path[0] != '/' {
		m.Path = "/metrics"
	}
}
