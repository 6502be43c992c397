// Package cryptoutil seals transient payloads with an authenticated cipher.
package cryptoutil

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrAuthentication is returned when a ciphertext fails to open: wrong key,
// tampered bytes, or associated data that does not match.
var ErrAuthentication = errors.New("ciphertext authentication failed")

// Encryptor seals and opens payloads. The associated data is authenticated
// but not encrypted; callers bind a ciphertext to the key it is stored under.
type Encryptor interface {
	Encrypt(plaintext, associatedData []byte) (string, error)
	Decrypt(ciphertext string, associatedData []byte) ([]byte, error)
}

const (
	// Versioned prefix to allow future key/algorithm rotations.
	cipherPrefixV1 = "v1:"
	noopPrefix     = "noop:"
	keySize        = 32
)

// DeriveKey turns a server-held secret into an AES-256 key. A 64-character
// hex string is decoded directly; any other secret is hashed with SHA-256.
// The derivation is deterministic so restarts keep access to stored blobs.
func DeriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("encryption secret is required")
	}
	if decoded, err := hex.DecodeString(secret); err == nil && len(decoded) == keySize {
		return decoded, nil
	}
	sum := sha256.Sum256([]byte(secret))
	return sum[:], nil
}

// AESGCMEncryptor implements Encryptor using AES-256-GCM.
type AESGCMEncryptor struct {
	aead cipher.AEAD
}

// NewAESGCMEncryptor constructs a new AESGCMEncryptor. Key must be 32 bytes (AES-256).
func NewAESGCMEncryptor(key []byte) (*AESGCMEncryptor, error) {
	if len(key) != keySize {
		return nil, fmt.Errorf("aes-gcm key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCMEncryptor{aead: aead}, nil
}

// NewFromSecret derives a key from secret and builds an AESGCMEncryptor.
func NewFromSecret(secret string) (*AESGCMEncryptor, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return NewAESGCMEncryptor(key)
}

// Encrypt seals plaintext with a random nonce and returns "v1:" + base64(nonce||ciphertext).
func (e *AESGCMEncryptor) Encrypt(plaintext, associatedData []byte) (string, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}
	sealed := e.aead.Seal(nonce, nonce, plaintext, associatedData)
	return cipherPrefixV1 + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens a value produced by Encrypt. Any authentication problem,
// including an unknown envelope version, wraps ErrAuthentication.
func (e *AESGCMEncryptor) Decrypt(ciphertext string, associatedData []byte) ([]byte, error) {
	if !strings.HasPrefix(ciphertext, cipherPrefixV1) {
		return nil, fmt.Errorf("%w: unknown ciphertext version", ErrAuthentication)
	}
	data, err := base64.StdEncoding.DecodeString(ciphertext[len(cipherPrefixV1):])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	nonceSize := e.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrAuthentication)
	}
	pt, err := e.aead.Open(nil, data[:nonceSize], data[nonceSize:], associatedData)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}
	return pt, nil
}

// NoopEncryptor is useful for tests; it stores plaintext with a prefix marker.
type NoopEncryptor struct{}

// Encrypt implements Encryptor without any confidentiality.
func (NoopEncryptor) Encrypt(plaintext, _ []byte) (string, error) {
	return noopPrefix + base64.StdEncoding.EncodeToString(plaintext), nil
}

// Decrypt implements Encryptor.
func (NoopEncryptor) Decrypt(ciphertext string, _ []byte) ([]byte, error) {
	if !strings.HasPrefix(ciphertext, noopPrefix) {
		return nil, fmt.Errorf("%w: invalid noop ciphertext", ErrAuthentication)
	}
	return base64.StdEncoding.DecodeString(ciphertext[len(noopPrefix):])
}
