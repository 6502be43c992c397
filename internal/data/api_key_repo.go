package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/target/scriptcheck/internal/domain/model"
	apperrors "github.com/target/scriptcheck/internal/errors"
)

// APIKeyRepo stores hashed API credentials.
type APIKeyRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewAPIKeyRepo creates an APIKeyRepo.
func NewAPIKeyRepo(db *sql.DB, tp TimeProvider) *APIKeyRepo {
	return &APIKeyRepo{DB: db, timeProvider: resolveTimeProvider(tp)}
}

const apiKeyColumns = `
  id, user_id, organization_id, key_hash, name, description,
  is_active, created_at, expires_at, last_used_at, usage_count
`

// Create stores a new key hash.
func (r *APIKeyRepo) Create(ctx context.Context, req *model.CreateAPIKeyRequest) (*model.APIKey, error) {
	if req == nil || req.UserID == "" || req.Name == "" || len(req.KeyHash) != 64 {
		return nil, errors.New("user id, name and a sha-256 key hash are required")
	}
	row := r.DB.QueryRowContext(ctx, `
		INSERT INTO api_keys (user_id, organization_id, key_hash, name, description, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+apiKeyColumns,
		req.UserID, req.OrganizationID, req.KeyHash, req.Name, req.Description,
		r.timeProvider.Now().UTC(), req.ExpiresAt.UTC())
	key, err := scanAPIKey(row)
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return key, nil
}

// GetByHash returns the key matching hash. Callers check Usable.
func (r *APIKeyRepo) GetByHash(ctx context.Context, hash string) (*model.APIKey, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE key_hash = $1`, hash)
	key, err := scanAPIKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAPIKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get api key: %w", err)
	}
	return key, nil
}

// Touch records one use of a key.
func (r *APIKeyRepo) Touch(ctx context.Context, id string) error {
	if _, err := r.DB.ExecContext(ctx, `
		UPDATE api_keys SET usage_count = usage_count + 1, last_used_at = $2 WHERE id = $1
	`, id, r.timeProvider.Now().UTC()); err != nil {
		return fmt.Errorf("touch api key: %w", err)
	}
	return nil
}

// Revoke deactivates a key. Returns false when no active key matched.
func (r *APIKeyRepo) Revoke(ctx context.Context, id string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE api_keys SET is_active = false WHERE id = $1 AND is_active`, id)
	if err != nil {
		return false, fmt.Errorf("revoke api key: %w", err)
	}
	return rowsChanged(res)
}

// ListForUser returns a user's keys newest first.
func (r *APIKeyRepo) ListForUser(ctx context.Context, userID string) ([]*model.APIKey, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()
	var out []*model.APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		out = append(out, key)
	}
	return out, rows.Err()
}

func scanAPIKey(s rowScanner) (*model.APIKey, error) {
	var (
		k          model.APIKey
		org, desc  sql.NullString
		lastUsedAt sql.NullTime
	)
	if err := s.Scan(&k.ID, &k.UserID, &org, &k.KeyHash, &k.Name, &desc,
		&k.IsActive, &k.CreatedAt, &k.ExpiresAt, &lastUsedAt, &k.UsageCount); err != nil {
		return nil, err
	}
	k.OrganizationID = cloneNullableString(org)
	k.Description = cloneNullableString(desc)
	k.LastUsedAt = cloneNullableTime(lastUsedAt)
	return &k, nil
}
