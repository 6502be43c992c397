package bootstrap

import (
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/scriptcheck/internal/data/cryptoutil"
)

func TestCreateEncryptor(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	_, err := CreateEncryptor("", false, logger)
	require.Error(t, err)

	enc, err := CreateEncryptor("", true, logger)
	require.NoError(t, err)
	assert.IsType(t, cryptoutil.NoopEncryptor{}, enc)

	enc, err = CreateEncryptor(strings.Repeat("ab", 32), false, logger)
	require.NoError(t, err)
	sealed, err := enc.Encrypt([]byte("INT. OFFICE - DAY"), []byte("ref"))
	require.NoError(t, err)
	assert.NotContains(t, sealed, "OFFICE")
	plain, err := enc.Decrypt(sealed, []byte("ref"))
	require.NoError(t, err)
	assert.Equal(t, "INT. OFFICE - DAY", string(plain))
}
