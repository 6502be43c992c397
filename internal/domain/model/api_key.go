package model

import "time"

// APIKey is a hashed API credential. The plaintext is shown once at creation.
type APIKey struct {
	ID             string     `json:"id"`
	UserID         string     `json:"user_id"`
	OrganizationID *string    `json:"organization_id,omitempty"`
	KeyHash        string     `json:"-"`
	Name           string     `json:"name"`
	Description    *string    `json:"description,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	ExpiresAt      time.Time  `json:"expires_at"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	UsageCount     int        `json:"usage_count"`
}

// Usable reports whether the key may authenticate at now.
func (k *APIKey) Usable(now time.Time) bool {
	return k.IsActive && now.Before(k.ExpiresAt)
}

// CreateAPIKeyRequest creates a new key from an already computed hash.
type CreateAPIKeyRequest struct {
	UserID         string
	OrganizationID *string
	Name           string
	Description    *string
	KeyHash        string
	ExpiresAt      time.Time
}
