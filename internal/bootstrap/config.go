package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/target/scriptcheck/config"
)

// InitLogger initializes the structured JSON logger at the given level.
func InitLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	// Load .env file if it exists (development)
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return config.AppConfig{}, fmt.Errorf("load .env file: %w", err)
		}
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// ValidateServiceConfig checks that at least one service is enabled and that
// production guard rails hold.
func ValidateServiceConfig(cfg *config.AppConfig) error {
	if cfg == nil {
		return errors.New("service config is required")
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("invalid service configuration: %w", err)
	}
	if len(services) == 0 {
		return errors.New("no services enabled")
	}

	if !cfg.IsDev {
		if cfg.Buffer.SecretKey == "" {
			return errors.New("BUFFER_SECRET_KEY is required outside development")
		}
		if cfg.Buffer.Backend == config.BufferBackendMemory {
			return errors.New("BUFFER_BACKEND=memory is only allowed in development")
		}
		if cfg.Auth.Mode == config.AuthModeNone {
			return errors.New("AUTH_MODE=none is only allowed in development")
		}
	}
	if cfg.Auth.Mode.AllowsOIDC() && cfg.Auth.OIDC.IssuerURL == "" {
		return errors.New("AUTH_OIDC_ISSUER_URL is required for oidc and mixed auth modes")
	}
	// The memory backend is per process; the HTTP role and the worker must share it.
	if cfg.Buffer.Backend == config.BufferBackendMemory &&
		services[config.ServiceModeHTTP] != services[config.ServiceModeWorker] {
		return errors.New("BUFFER_BACKEND=memory requires http and worker in the same process")
	}
	return nil
}

// GetEnabledServices returns the sorted names of the enabled services.
func GetEnabledServices(cfg *config.AppConfig) []string {
	if cfg == nil {
		return []string{}
	}
	services, err := cfg.GetEnabledServices()
	if err != nil {
		return []string{}
	}

	enabled := make([]string, 0, len(services))
	for svc := range services {
		enabled = append(enabled, string(svc))
	}
	sort.Strings(enabled)
	return enabled
}
