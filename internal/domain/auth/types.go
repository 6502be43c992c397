package auth

// Package auth contains domain-level types for caller authentication.
// It is pure and free of framework/adapter concerns.

import (
	"strings"
	"time"
)

// Method records how a caller proved its identity.
type Method string

const (
	MethodAPIKey Method = "api_key"
	MethodOIDC   Method = "oidc"
	MethodDev    Method = "dev"
)

// APIKeyPrefix marks plaintext API keys so they can be told apart from
// bearer ID tokens sent in the same header.
const APIKeyPrefix = "sck_"

// Identity is the authenticated principal. UserID scopes every job and
// report query.
type Identity struct {
	UserID         string
	OrganizationID string
	Email          string
	Method         Method
	KeyID          string    // set for MethodAPIKey
	ExpiresAt      time.Time // credential expiry, zero when unknown
}

// Valid reports whether the identity names a user.
func (i Identity) Valid() bool { return strings.TrimSpace(i.UserID) != "" }

// LooksLikeAPIKey reports whether a bearer credential is one of our API keys.
func LooksLikeAPIKey(token string) bool { return strings.HasPrefix(token, APIKeyPrefix) }
