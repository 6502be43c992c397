package bootstrap

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/scriptcheck/internal/data/cryptoutil"
)

// CreateEncryptor builds the AES-GCM sealer for the transient store. An empty
// key is only tolerated in development, where payloads are stored unsealed.
//
//nolint:ireturn // Returning interface is intentional for encryptor abstraction
func CreateEncryptor(key string, isDev bool, logger *slog.Logger) (cryptoutil.Encryptor, error) {
	if key == "" {
		if !isDev {
			return nil, errors.New("buffer secret key is required")
		}
		if logger != nil {
			logger.Warn("buffer secret key is empty, transient payloads are NOT encrypted")
		}
		return cryptoutil.NoopEncryptor{}, nil
	}

	enc, err := cryptoutil.NewFromSecret(key)
	if err != nil {
		return nil, fmt.Errorf("create encryptor: %w", err)
	}
	return enc, nil
}
