package ports_test

import (
	"testing"

	"github.com/target/scriptcheck/internal/adapters/devauth"
	"github.com/target/scriptcheck/internal/adapters/oidc"
	"github.com/target/scriptcheck/internal/mocks"
	"github.com/target/scriptcheck/internal/ports"
)

// This test only verifies that adapters and mocks conform to the ports at compile time.
func TestImplementationsSatisfyPorts(t *testing.T) {
	t.Helper()

	var _ ports.TokenVerifier = (*oidc.Verifier)(nil)
	var _ ports.TokenVerifier = (*devauth.Provider)(nil)
	var _ ports.TokenVerifier = (*mocks.MockTokenVerifier)(nil)
}
