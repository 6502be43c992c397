package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/adapters/devauth"
	"github.com/target/scriptcheck/internal/adapters/oidc"
	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/ports"
	"github.com/target/scriptcheck/internal/service"
)

// AuthConfig contains configuration for the auth service.
type AuthConfig struct {
	Auth    config.AuthConfig
	APIKeys core.APIKeyRepository
	Logger  *slog.Logger
}

// BuildAuthService creates an auth service for the configured auth mode.
// OIDC modes run issuer discovery, so ctx bounds startup.
func BuildAuthService(ctx context.Context, cfg AuthConfig) (*service.AuthService, error) {
	var verifier ports.TokenVerifier
	switch {
	case cfg.Auth.Mode == config.AuthModeNone:
		prov, err := devauth.NewProvider(devauth.Config{UserID: cfg.Auth.DevUserID})
		if err != nil {
			return nil, fmt.Errorf("create dev auth provider: %w", err)
		}
		if cfg.Logger != nil {
			cfg.Logger.Warn("authentication disabled, every caller is the dev user", "user_id", cfg.Auth.DevUserID)
		}
		verifier = prov
	case cfg.Auth.Mode.AllowsOIDC():
		v, err := oidc.NewVerifier(ctx, oidc.VerifierConfig{
			IssuerURL: cfg.Auth.OIDC.IssuerURL,
			Audience:  cfg.Auth.OIDC.Audience,
			UserClaim: cfg.Auth.OIDC.UserClaim,
		})
		if err != nil {
			return nil, fmt.Errorf("create oidc verifier: %w", err)
		}
		verifier = v
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Mode:     cfg.Auth.Mode,
		APIKeys:  cfg.APIKeys,
		Verifier: verifier,
		Logger:   cfg.Logger,
	})
}
