package ports

// Package ports defines interfaces (hexagonal ports) for auth-related behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"

	domainauth "github.com/target/scriptcheck/internal/domain/auth"
)

// TokenVerifier validates a bearer ID token issued by an external IdP and
// maps its claims onto an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (domainauth.Identity, error)
}
