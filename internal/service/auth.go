package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/target/scriptcheck/config"
	"github.com/target/scriptcheck/internal/core"
	"github.com/target/scriptcheck/internal/data"
	domainauth "github.com/target/scriptcheck/internal/domain/auth"
	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
	"github.com/target/scriptcheck/internal/ports"
)

// DefaultAPIKeyTTL applies when IssueAPIKey is called without a TTL.
const DefaultAPIKeyTTL = 365 * 24 * time.Hour

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Mode     config.AuthMode
	APIKeys  core.APIKeyRepository // Required for apikey and mixed modes
	Verifier ports.TokenVerifier   // Required for oidc, mixed and none modes
	Logger   *slog.Logger
	Now      func() time.Time
}

// AuthService resolves request credentials into an identity.
type AuthService struct {
	mode     config.AuthMode
	apiKeys  core.APIKeyRepository
	verifier ports.TokenVerifier
	logger   *slog.Logger
	now      func() time.Time
}

// Credentials are the raw values a caller presented.
type Credentials struct {
	APIKey string // X-API-Key header
	Bearer string // Authorization: Bearer token
}

var errMissingCredentials = apperrors.Unauthorized("Missing credentials")

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) (*AuthService, error) {
	mode := opts.Mode
	if mode == "" {
		mode = config.AuthModeAPIKey
	}
	if mode.AllowsAPIKey() && opts.APIKeys == nil {
		return nil, errors.New("APIKeyRepository is required for API key auth")
	}
	if (mode.AllowsOIDC() || mode == config.AuthModeNone) && opts.Verifier == nil {
		return nil, fmt.Errorf("token verifier is required for auth mode %q", mode)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		mode:     mode,
		apiKeys:  opts.APIKeys,
		verifier: opts.Verifier,
		logger:   logger.With("component", "auth_service"),
		now:      now,
	}, nil
}

// HashAPIKey returns the hex SHA-256 digest stored for a plaintext key.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Authenticate resolves creds according to the configured mode. Every
// rejection is an Unauthorized AppError.
func (s *AuthService) Authenticate(ctx context.Context, creds Credentials) (domainauth.Identity, error) {
	if s.mode == config.AuthModeNone {
		return s.verifier.Verify(ctx, "")
	}

	apiKey := strings.TrimSpace(creds.APIKey)
	bearer := strings.TrimSpace(creds.Bearer)
	if apiKey == "" && bearer != "" && domainauth.LooksLikeAPIKey(bearer) {
		apiKey, bearer = bearer, ""
	}

	switch {
	case apiKey != "" && s.mode.AllowsAPIKey():
		return s.authenticateAPIKey(ctx, apiKey)
	case bearer != "" && s.mode.AllowsOIDC():
		id, err := s.verifier.Verify(ctx, bearer)
		if err != nil {
			s.logger.DebugContext(ctx, "bearer token rejected", "error", err)
			return domainauth.Identity{}, apperrors.Wrap(err, apperrors.ErrCodeUnauthorized, "Invalid or expired token")
		}
		return id, nil
	default:
		return domainauth.Identity{}, errMissingCredentials
	}
}

func (s *AuthService) authenticateAPIKey(ctx context.Context, plaintext string) (domainauth.Identity, error) {
	key, err := s.apiKeys.GetByHash(ctx, HashAPIKey(plaintext))
	if errors.Is(err, data.ErrAPIKeyNotFound) {
		return domainauth.Identity{}, apperrors.Unauthorized("Invalid or expired API key")
	}
	if err != nil {
		return domainauth.Identity{}, fmt.Errorf("lookup api key: %w", err)
	}
	if !key.Usable(s.now()) {
		return domainauth.Identity{}, apperrors.Unauthorized("Invalid or expired API key")
	}

	// Usage bookkeeping must not block an otherwise valid request.
	if err := s.apiKeys.Touch(ctx, key.ID); err != nil {
		s.logger.WarnContext(ctx, "failed to record api key use", "key_id", key.ID, "error", err)
	}

	id := domainauth.Identity{
		UserID:    key.UserID,
		Method:    domainauth.MethodAPIKey,
		KeyID:     key.ID,
		ExpiresAt: key.ExpiresAt,
	}
	if key.OrganizationID != nil {
		id.OrganizationID = *key.OrganizationID
	}
	return id, nil
}

// IssueAPIKeyRequest describes a new API key.
type IssueAPIKeyRequest struct {
	UserID         string
	OrganizationID *string
	Name           string
	Description    *string
	TTL            time.Duration
}

// IssuedAPIKey carries the plaintext key, which is never stored.
type IssuedAPIKey struct {
	Plaintext string
	Key       *model.APIKey
}

// IssueAPIKey generates and stores a new key for a user.
func (s *AuthService) IssueAPIKey(ctx context.Context, req IssueAPIKeyRequest) (*IssuedAPIKey, error) {
	if s.apiKeys == nil {
		return nil, errors.New("API key storage is not configured")
	}
	if strings.TrimSpace(req.UserID) == "" {
		return nil, apperrors.ValidationField("user_id", "user_id is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return nil, apperrors.ValidationField("name", "name is required")
	}
	ttl := req.TTL
	if ttl <= 0 {
		ttl = DefaultAPIKeyTTL
	}

	plaintext, err := GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	key, err := s.apiKeys.Create(ctx, &model.CreateAPIKeyRequest{
		UserID:         req.UserID,
		OrganizationID: req.OrganizationID,
		Name:           req.Name,
		Description:    req.Description,
		KeyHash:        HashAPIKey(plaintext),
		ExpiresAt:      s.now().UTC().Add(ttl),
	})
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", err)
	}
	s.logger.InfoContext(ctx, "api key issued", "key_id", key.ID, "user_id", key.UserID, "expires_at", key.ExpiresAt)
	return &IssuedAPIKey{Plaintext: plaintext, Key: key}, nil
}

// RevokeAPIKey deactivates a key by id.
func (s *AuthService) RevokeAPIKey(ctx context.Context, id string) error {
	if s.apiKeys == nil {
		return errors.New("API key storage is not configured")
	}
	ok, err := s.apiKeys.Revoke(ctx, id)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if !ok {
		return apperrors.NotFoundf("active API key %s not found", id)
	}
	s.logger.InfoContext(ctx, "api key revoked", "key_id", id)
	return nil
}

// ListAPIKeys returns a user's keys without their hashes.
func (s *AuthService) ListAPIKeys(ctx context.Context, userID string) ([]*model.APIKey, error) {
	if s.apiKeys == nil {
		return nil, errors.New("API key storage is not configured")
	}
	return s.apiKeys.ListForUser(ctx, userID)
}

// GenerateAPIKey returns a new random plaintext key.
func GenerateAPIKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return domainauth.APIKeyPrefix + hex.EncodeToString(b), nil
}
