package devauth

// Package devauth provides a fixed identity for local development when
// authentication is switched off.

import (
	"context"
	"errors"
	"strings"

	domainauth "github.com/target/scriptcheck/internal/domain/auth"
)

// Config controls the dev auth provider behavior.
type Config struct {
	UserID string
	Email  string
}

// Provider implements ports.TokenVerifier for local development.
// Verify ignores the token and returns the configured identity.
type Provider struct {
	identity domainauth.Identity
}

// NewProvider constructs a dev auth provider from Config.
func NewProvider(cfg Config) (*Provider, error) {
	if strings.TrimSpace(cfg.UserID) == "" {
		return nil, errors.New("dev auth: UserID is required")
	}
	return &Provider{
		identity: domainauth.Identity{
			UserID: cfg.UserID,
			Email:  cfg.Email,
			Method: domainauth.MethodDev,
		},
	}, nil
}

// Verify returns the configured identity.
func (p *Provider) Verify(_ context.Context, _ string) (domainauth.Identity, error) {
	return p.identity, nil
}
