package oidc

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/scriptcheck/internal/domain/auth"
)

const testIssuer = "https://idp.example.com"

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func signToken(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	signer, err := jose.NewSigner(jose.SigningKey{Algorithm: jose.RS256, Key: key}, (&jose.SignerOptions{}).WithType("JWT"))
	require.NoError(t, err)
	payload, err := json.Marshal(claims)
	require.NoError(t, err)
	obj, err := signer.Sign(payload)
	require.NoError(t, err)
	raw, err := obj.CompactSerialize()
	require.NoError(t, err)
	return raw
}

func newTestVerifier(t *testing.T, userClaim string) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	v, err := NewVerifier(context.Background(), VerifierConfig{
		IssuerURL: testIssuer,
		Audience:  "scriptcheck",
		UserClaim: userClaim,
		KeySet:    &gooidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}},
		Now:       func() time.Time { return fixedNow },
	})
	require.NoError(t, err)
	return v, key
}

func baseClaims() map[string]any {
	return map[string]any{
		"iss":  testIssuer,
		"aud":  "scriptcheck",
		"sub":  "subject-1",
		"iat":  fixedNow.Add(-time.Minute).Unix(),
		"exp":  fixedNow.Add(time.Hour).Unix(),
		"mail": "writer@example.com",
	}
}

func TestVerifier_Verify(t *testing.T) {
	v, key := newTestVerifier(t, "")

	id, err := v.Verify(context.Background(), signToken(t, key, baseClaims()))
	require.NoError(t, err)
	assert.Equal(t, "subject-1", id.UserID)
	assert.Equal(t, "writer@example.com", id.Email)
	assert.Equal(t, domainauth.MethodOIDC, id.Method)
	assert.True(t, id.ExpiresAt.Equal(fixedNow.Add(time.Hour)))

	claims := baseClaims()
	claims["samaccountname"] = "jdoe"
	id, err = v.Verify(context.Background(), signToken(t, key, claims))
	require.NoError(t, err)
	assert.Equal(t, "jdoe", id.UserID)
}

func TestVerifier_UserClaim(t *testing.T) {
	v, key := newTestVerifier(t, "preferred_username")
	claims := baseClaims()
	claims["preferred_username"] = "maya"
	id, err := v.Verify(context.Background(), signToken(t, key, claims))
	require.NoError(t, err)
	assert.Equal(t, "maya", id.UserID)

	sub, key2 := newTestVerifier(t, "sub")
	claims = baseClaims()
	claims["samaccountname"] = "ignored"
	id, err = sub.Verify(context.Background(), signToken(t, key2, claims))
	require.NoError(t, err)
	assert.Equal(t, "subject-1", id.UserID)
}

func TestVerifier_Rejects(t *testing.T) {
	v, key := newTestVerifier(t, "")
	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token func() string
	}{
		{"empty", func() string { return "" }},
		{"garbage", func() string { return "not-a-jwt" }},
		{"wrong key", func() string { return signToken(t, other, baseClaims()) }},
		{"wrong audience", func() string {
			c := baseClaims()
			c["aud"] = "someone-else"
			return signToken(t, key, c)
		}},
		{"wrong issuer", func() string {
			c := baseClaims()
			c["iss"] = "https://evil.example.com"
			return signToken(t, key, c)
		}},
		{"expired", func() string {
			c := baseClaims()
			c["exp"] = fixedNow.Add(-time.Minute).Unix()
			return signToken(t, key, c)
		}},
		{"no user", func() string {
			c := baseClaims()
			delete(c, "sub")
			return signToken(t, key, c)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token())
			require.Error(t, err)
		})
	}
}

func TestNewVerifier_Discovery(t *testing.T) {
	issuer := ""
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/auth",
			"token_endpoint":         issuer + "/token",
			"jwks_uri":               issuer + "/jwks",
		})
	}))
	defer srv.Close()
	issuer = srv.URL

	v, err := NewVerifier(context.Background(), VerifierConfig{
		IssuerURL: srv.URL + "/.well-known/openid-configuration",
		Audience:  "scriptcheck",
	})
	require.NoError(t, err)
	assert.NotNil(t, v)
}

func TestNewVerifier_ValidationErrors(t *testing.T) {
	_, err := NewVerifier(context.Background(), VerifierConfig{Audience: "a"})
	require.ErrorContains(t, err, "issuer URL is required")
	_, err = NewVerifier(context.Background(), VerifierConfig{IssuerURL: testIssuer})
	require.ErrorContains(t, err, "audience is required")
}
