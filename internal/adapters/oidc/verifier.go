package oidc

// Package oidc verifies bearer ID tokens against an OpenID Connect issuer.

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/target/scriptcheck/internal/domain/auth"
)

// Verifier implements ports.TokenVerifier using go-oidc.
type Verifier struct {
	verifier  *gooidc.IDTokenVerifier
	userClaim string
}

// VerifierConfig holds configuration for the bearer token verifier.
type VerifierConfig struct {
	IssuerURL string
	Audience  string
	// UserClaim names the claim used as the user id; empty means
	// samaccountname with a fallback to sub.
	UserClaim  string
	HTTPClient *http.Client // Optional, defaults to a 30s client
	// KeySet skips discovery and verifies against fixed keys.
	KeySet gooidc.KeySet
	Now    func() time.Time
}

// NewVerifier creates a verifier. Without a KeySet the issuer's discovery
// document is fetched once.
func NewVerifier(ctx context.Context, cfg VerifierConfig) (*Verifier, error) {
	if cfg.IssuerURL == "" {
		return nil, errors.New("issuer URL is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("audience is required")
	}

	issuer := strings.TrimSuffix(cfg.IssuerURL, "/")
	issuer = strings.TrimSuffix(issuer, "/.well-known/openid-configuration")
	oc := &gooidc.Config{ClientID: cfg.Audience, Now: cfg.Now}

	if cfg.KeySet != nil {
		return &Verifier{verifier: gooidc.NewVerifier(issuer, cfg.KeySet, oc), userClaim: cfg.UserClaim}, nil
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	op, err := gooidc.NewProvider(gooidc.ClientContext(ctx, httpClient), issuer)
	if err != nil {
		return nil, fmt.Errorf("oidc new provider: %w", err)
	}
	return &Verifier{verifier: op.Verifier(oc), userClaim: cfg.UserClaim}, nil
}

// Verify checks signature, issuer, audience and expiry and maps the claims.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (domainauth.Identity, error) {
	if rawToken == "" {
		return domainauth.Identity{}, errors.New("token is required")
	}
	idTok, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("verify id_token: %w", err)
	}

	var claims idTokenClaims
	if err := idTok.Claims(&claims); err != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", err)
	}
	var raw map[string]any
	if err := idTok.Claims(&raw); err != nil {
		return domainauth.Identity{}, fmt.Errorf("parse id_token claims: %w", err)
	}

	id := mapClaims(claims, raw, v.userClaim)
	id.ExpiresAt = idTok.Expiry
	if !id.Valid() {
		return domainauth.Identity{}, errors.New("id_token has no usable user claim")
	}
	return id, nil
}

// idTokenClaims covers plain OIDC and AD/ADFS claim shapes.
type idTokenClaims struct {
	Sub            string `json:"sub"`
	SamAccountName string `json:"samaccountname"`
	Mail           string `json:"mail"`
	Email          string `json:"email"`
	Org            string `json:"org"`
}

func mapClaims(c idTokenClaims, raw map[string]any, userClaim string) domainauth.Identity {
	var userID string
	if userClaim != "" && userClaim != "sub" {
		if s, ok := raw[userClaim].(string); ok {
			userID = s
		}
	}
	if userClaim == "sub" {
		userID = c.Sub
	}
	if userID == "" {
		userID = firstNonEmpty(c.SamAccountName, c.Sub)
	}
	return domainauth.Identity{
		UserID:         userID,
		OrganizationID: c.Org,
		Email:          firstNonEmpty(c.Mail, c.Email),
		Method:         domainauth.MethodOIDC,
	}
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
