package devauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/target/scriptcheck/internal/domain/auth"
)

func TestNewProvider_RequiresUser(t *testing.T) {
	_, err := NewProvider(Config{UserID: " "})
	require.Error(t, err)
}

func TestProvider_Verify(t *testing.T) {
	p, err := NewProvider(Config{UserID: "dev-user", Email: "dev@example.com"})
	require.NoError(t, err)

	id, err := p.Verify(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, "dev-user", id.UserID)
	assert.Equal(t, domainauth.MethodDev, id.Method)
}
