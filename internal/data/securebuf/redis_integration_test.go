package securebuf

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/scriptcheck/internal/data/cryptoutil"
	"github.com/target/scriptcheck/internal/testutil"
)

func TestRedisBackend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping redis integration test in short mode")
	}
	client := testutil.SetupTestRedis(t)
	enc, err := cryptoutil.NewFromSecret("integration-secret")
	require.NoError(t, err)
	store, err := New(Options{Backend: NewRedisBackend(client), Encryptor: enc, DefaultTTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Health(ctx))

	key, err := store.Store(ctx, map[string]string{"full_text": "INT. HAUS - TAG"})
	require.NoError(t, err)

	ttl, err := client.PTTL(ctx, key).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Second)

	var got map[string]string
	require.NoError(t, store.Retrieve(ctx, key, &got))
	assert.Equal(t, "INT. HAUS - TAG", got["full_text"])

	other, err := store.Store(ctx, "second")
	require.NoError(t, err)
	n, err := store.Delete(ctx, key, other, key)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.ErrorIs(t, store.Retrieve(ctx, key, &got), ErrNotFound)
}
