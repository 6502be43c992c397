// Package securebuf implements the encrypted transient store that pipeline
// stages use to hand sensitive payloads to each other by reference.
package securebuf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/target/scriptcheck/internal/data/cryptoutil"
)

var (
	// ErrNotFound is returned when a key is absent or expired.
	ErrNotFound = errors.New("transient entry not found")
	// ErrDecryption is returned when a blob fails authentication. It matches ErrNotFound.
	ErrDecryption = fmt.Errorf("%w: decryption failed", ErrNotFound)
)

// DefaultKeyPrefix namespaces ref keys in a shared cache.
const DefaultKeyPrefix = "eki:buf:"

// Options configures a Store.
type Options struct {
	Backend    Backend
	Encryptor  cryptoutil.Encryptor
	DefaultTTL time.Duration
	KeyPrefix  string
	Logger     *slog.Logger
}

// Store seals JSON payloads before they reach the backend and hands out
// unguessable ref keys.
type Store struct {
	backend    Backend
	enc        cryptoutil.Encryptor
	defaultTTL time.Duration
	prefix     string
	logger     *slog.Logger
}

// New validates opts and builds a Store.
func New(opts Options) (*Store, error) {
	if opts.Backend == nil {
		return nil, errors.New("securebuf: backend is required")
	}
	if opts.Encryptor == nil {
		return nil, errors.New("securebuf: encryptor is required")
	}
	if opts.DefaultTTL <= 0 {
		opts.DefaultTTL = 6 * time.Hour
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		backend:    opts.Backend,
		enc:        opts.Encryptor,
		defaultTTL: opts.DefaultTTL,
		prefix:     opts.KeyPrefix,
		logger:     logger.With("component", "securebuf"),
	}, nil
}

// Store encrypts payload under the default TTL and returns its ref key.
func (s *Store) Store(ctx context.Context, payload any) (string, error) {
	return s.StoreWithTTL(ctx, payload, s.defaultTTL)
}

// StoreWithTTL encrypts payload and returns its ref key. A ttl <= 0 yields a
// key whose entry is already expired: nothing is written.
func (s *Store) StoreWithTTL(ctx context.Context, payload any, ttl time.Duration) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("securebuf: encode payload: %w", err)
	}
	key := s.prefix + uuid.NewString()
	if ttl <= 0 {
		s.logger.DebugContext(ctx, "transient entry expired on arrival", "key", redactKey(key), "ttl", ttl)
		return key, nil
	}

	sealed, err := s.enc.Encrypt(raw, []byte(key))
	if err != nil {
		return "", fmt.Errorf("securebuf: encrypt: %w", err)
	}
	if err := s.backend.Set(ctx, key, sealed, ttl); err != nil {
		return "", fmt.Errorf("securebuf: store: %w", err)
	}
	s.logger.DebugContext(ctx, "stored transient entry", "key", redactKey(key), "bytes", len(raw), "ttl", ttl)
	return key, nil
}

// RetrieveRaw returns the decrypted JSON payload stored under key.
func (s *Store) RetrieveRaw(ctx context.Context, key string) (json.RawMessage, error) {
	if key == "" {
		return nil, fmt.Errorf("securebuf: empty key: %w", ErrNotFound)
	}
	sealed, found, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("securebuf: retrieve: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("securebuf: key %s: %w", redactKey(key), ErrNotFound)
	}
	raw, err := s.enc.Decrypt(sealed, []byte(key))
	if err != nil {
		s.logger.WarnContext(ctx, "transient entry failed authentication", "key", redactKey(key))
		return nil, fmt.Errorf("securebuf: key %s: %w", redactKey(key), ErrDecryption)
	}
	return raw, nil
}

// Retrieve decrypts the payload under key into dst.
func (s *Store) Retrieve(ctx context.Context, key string, dst any) error {
	raw, err := s.RetrieveRaw(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("securebuf: decode payload: %w", err)
	}
	return nil
}

// Delete removes keys and returns how many existed. Empty keys are skipped,
// and deleting nothing is not an error.
func (s *Store) Delete(ctx context.Context, keys ...string) (int, error) {
	live := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" {
			live = append(live, k)
		}
	}
	if len(live) == 0 {
		return 0, nil
	}
	n, err := s.backend.Delete(ctx, live...)
	if err != nil {
		return 0, fmt.Errorf("securebuf: delete: %w", err)
	}
	return n, nil
}

// Exists reports whether key is still retrievable.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, nil
	}
	return s.backend.Exists(ctx, key)
}

// Health pings the backend.
func (s *Store) Health(ctx context.Context) error {
	return s.backend.Ping(ctx)
}

// redactKey keeps the namespace and the first UUID group for log correlation.
func redactKey(key string) string {
	if i := strings.LastIndex(key, ":"); i >= 0 && len(key) > i+9 {
		return key[:i+9] + "…"
	}
	return key
}
