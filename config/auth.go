package config

import (
	"fmt"
	"strings"
)

// AuthMode represents how API callers authenticate.
type AuthMode string

const (
	// AuthModeAPIKey accepts X-API-Key headers only.
	AuthModeAPIKey AuthMode = "apikey"
	// AuthModeOIDC accepts OIDC bearer tokens only.
	AuthModeOIDC AuthMode = "oidc"
	// AuthModeMixed accepts either credential.
	AuthModeMixed AuthMode = "mixed"
	// AuthModeNone trusts every caller as DevUserID (development only).
	AuthModeNone AuthMode = "none"
)

// UnmarshalText implements encoding.TextUnmarshaler for AuthMode.
func (a *AuthMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch v {
	case "apikey", "oidc", "mixed", "none":
		*a = AuthMode(v)
		return nil
	default:
		return fmt.Errorf("invalid AuthMode: %q (valid options: apikey, oidc, mixed, none)", v)
	}
}

// AllowsAPIKey reports whether X-API-Key credentials are accepted.
func (a AuthMode) AllowsAPIKey() bool { return a == AuthModeAPIKey || a == AuthModeMixed }

// AllowsOIDC reports whether bearer tokens are accepted.
func (a AuthMode) AllowsOIDC() bool { return a == AuthModeOIDC || a == AuthModeMixed }

// OIDCConfig contains bearer token verification settings.
type OIDCConfig struct {
	IssuerURL string `env:"ISSUER_URL"`
	// Audience is the expected client id in the token.
	Audience string `env:"AUDIENCE" envDefault:"scriptcheck"`
	// UserClaim names the claim used as the user id; defaults to the subject.
	UserClaim string `env:"USER_CLAIM" envDefault:"sub"`
}

// AuthConfig groups all authentication-related configuration.
type AuthConfig struct {
	Mode AuthMode   `env:"AUTH_MODE" envDefault:"apikey"`
	OIDC OIDCConfig `envPrefix:"AUTH_OIDC_"`
	// DevUserID is the identity assumed when Mode=none.
	DevUserID string `env:"AUTH_DEV_USER_ID" envDefault:"dev-user"`
}
