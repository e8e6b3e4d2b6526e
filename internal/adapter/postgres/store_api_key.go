package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/licensed/internal/domain/apikey"
)

const apiKeyColumns = `id, name, brand_id, prefix, key_hash, is_active, created_at, last_used_at, expires_at`

func scanAPIKey(row scannable) (apikey.APIKey, error) {
	var k apikey.APIKey
	err := row.Scan(&k.ID, &k.Name, &k.BrandID, &k.Prefix, &k.KeyHash, &k.IsActive,
		&k.CreatedAt, &k.LastUsedAt, &k.ExpiresAt)
	return k, err
}

func (s *Store) CreateAPIKey(ctx context.Context, key *apikey.APIKey) (*apikey.APIKey, error) {
	k, err := scanAPIKey(s.pool.QueryRow(ctx, `
		INSERT INTO api_keys (name, brand_id, prefix, key_hash, is_active, expires_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
		RETURNING `+apiKeyColumns,
		key.Name, key.BrandID, key.Prefix, key.KeyHash, key.ExpiresAt,
	))
	if err != nil {
		return nil, fmt.Errorf("create api key: %w", constraintWrap(err, "api key already exists"))
	}
	return &k, nil
}

func (s *Store) GetAPIKey(ctx context.Context, id int64) (*apikey.APIKey, error) {
	k, err := scanAPIKey(s.pool.QueryRow(ctx, `SELECT `+apiKeyColumns+` FROM api_keys WHERE id = $1`, id))
	if err != nil {
		return nil, notFoundWrap(err, "get api key %d", id)
	}
	return &k, nil
}

func (s *Store) ListAPIKeys(ctx context.Context) ([]apikey.APIKey, error) {
	return s.queryAPIKeys(ctx, `SELECT `+apiKeyColumns+` FROM api_keys ORDER BY id`)
}

// ListActiveAPIKeysByPrefix returns the active keys sharing a display prefix.
// Callers bcrypt-compare the presented key against each candidate.
func (s *Store) ListActiveAPIKeysByPrefix(ctx context.Context, prefix string) ([]apikey.APIKey, error) {
	return s.queryAPIKeys(ctx,
		`SELECT `+apiKeyColumns+` FROM api_keys WHERE prefix = $1 AND is_active ORDER BY id`, prefix)
}

func (s *Store) queryAPIKeys(ctx context.Context, query string, args ...any) ([]apikey.APIKey, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []apikey.APIKey
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	return orEmpty(keys), rows.Err()
}

func (s *Store) RevokeAPIKey(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `UPDATE api_keys SET is_active = FALSE WHERE id = $1`, id)
	return execExpectOne(tag, err, "revoke api key %d", id)
}

func (s *Store) TouchAPIKey(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return execExpectOne(tag, err, "touch api key %d", id)
}
