package cryptoutil

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestAESGCMEncryptor_EncryptDecrypt(t *testing.T) {
	enc, err := NewAESGCMEncryptor(testKey())
	require.NoError(t, err)

	plaintext := []byte(`{"script_content":"SU5ULiBLSVRDSEVO"}`)
	ciphertext, err := enc.Encrypt(plaintext, []byte("eki:buf:abc"))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ciphertext, "v1:"))
	assert.NotContains(t, ciphertext, "script_content")

	decrypted, err := enc.Decrypt(ciphertext, []byte("eki:buf:abc"))
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESGCMEncryptor_RandomNonce(t *testing.T) {
	enc, err := NewAESGCMEncryptor(testKey())
	require.NoError(t, err)

	a, err := enc.Encrypt([]byte("same"), nil)
	require.NoError(t, err)
	b, err := enc.Encrypt([]byte("same"), nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestAESGCMEncryptor_AuthenticationFailures(t *testing.T) {
	enc, err := NewAESGCMEncryptor(testKey())
	require.NoError(t, err)
	ciphertext, err := enc.Encrypt([]byte("payload"), []byte("key-a"))
	require.NoError(t, err)

	otherKey := testKey()
	otherKey[0] = 0xff
	rotated, err := NewAESGCMEncryptor(otherKey)
	require.NoError(t, err)

	tampered := []byte(ciphertext)
	tampered[len(tampered)-2] ^= 0x01

	tests := []struct {
		name       string
		enc        *AESGCMEncryptor
		ciphertext string
		aad        []byte
	}{
		{"rotated key", rotated, ciphertext, []byte("key-a")},
		{"wrong associated data", enc, ciphertext, []byte("key-b")},
		{"tampered bytes", enc, string(tampered), []byte("key-a")},
		{"unknown version", enc, "v2:" + ciphertext[3:], []byte("key-a")},
		{"not base64", enc, "v1:%%%", []byte("key-a")},
		{"too short", enc, "v1:AAAA", []byte("key-a")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.enc.Decrypt(tt.ciphertext, tt.aad)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrAuthentication)
		})
	}
}

func TestNewAESGCMEncryptor_InvalidKeySize(t *testing.T) {
	_, err := NewAESGCMEncryptor(make([]byte, 16))
	assert.Error(t, err)
}

func TestDeriveKey(t *testing.T) {
	hexKey := hex.EncodeToString(testKey())

	decoded, err := DeriveKey(hexKey)
	require.NoError(t, err)
	assert.Equal(t, testKey(), decoded)

	hashed, err := DeriveKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Len(t, hashed, 32)

	again, err := DeriveKey("correct horse battery staple")
	require.NoError(t, err)
	assert.Equal(t, hashed, again, "derivation must be deterministic")

	_, err = DeriveKey("")
	assert.Error(t, err)
}

func TestNewFromSecret_SurvivesRestart(t *testing.T) {
	first, err := NewFromSecret("server-secret")
	require.NoError(t, err)
	ciphertext, err := first.Encrypt([]byte("payload"), nil)
	require.NoError(t, err)

	second, err := NewFromSecret("server-secret")
	require.NoError(t, err)
	pt, err := second.Decrypt(ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(pt))
}

func TestNoopEncryptor(t *testing.T) {
	enc := NoopEncryptor{}
	ciphertext, err := enc.Encrypt([]byte("plain"), nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ciphertext, "noop:"))

	pt, err := enc.Decrypt(ciphertext, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain", string(pt))

	_, err = enc.Decrypt("v1:abc", nil)
	assert.ErrorIs(t, err, ErrAuthentication)
}
