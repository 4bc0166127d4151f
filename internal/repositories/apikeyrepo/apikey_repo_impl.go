package apikeyrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
)

const apiKeyColumns = `id, user_id, key_hash, name, permissions, expires_at, revoked, created_at, updated_at`

type apiKeyRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IAPIKeyRepository {
	return &apiKeyRepository{
		db:     db.Db,
		logger: logger,
	}
}

func (r *apiKeyRepository) Create(ctx context.Context, key domain.APIKey) error {
	permissions, err := json.Marshal(key.Permissions)
	if err != nil {
		return fmt.Errorf("failed to marshal permissions: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO api_keys (`+apiKeyColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		key.ID, key.UserID, key.KeyHash, key.Name, string(permissions),
		key.ExpiresAt, key.Revoked, key.CreatedAt, key.UpdatedAt,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("user_id", key.UserID.String()).Msg("Failed to create api key")
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}

func (r *apiKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.APIKey, error) {
	return r.getOne(ctx, `WHERE id = $1`, id)
}

func (r *apiKeyRepository) GetByHash(ctx context.Context, keyHash string) (domain.APIKey, error) {
	return r.getOne(ctx, `WHERE key_hash = $1`, keyHash)
}

func (r *apiKeyRepository) getOne(ctx context.Context, where string, arg interface{}) (domain.APIKey, error) {
	key, err := scanAPIKey(r.db.QueryRowContext(ctx, `SELECT `+apiKeyColumns+` FROM api_keys `+where, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.APIKey{}, domain.ErrKeyNotFound
		}
		return domain.APIKey{}, fmt.Errorf("failed to get api key: %w", err)
	}
	return key, nil
}

func (r *apiKeyRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+apiKeyColumns+` FROM api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]domain.APIKey, 0)
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan api key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate api keys: %w", err)
	}
	return keys, nil
}

// CountActive counts keys that are neither revoked nor expired at now. Expiry
// is compared in Go so the result does not depend on how a driver orders
// stored timestamps.
func (r *apiKeyRepository) CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT expires_at FROM api_keys
		WHERE user_id = $1 AND revoked = $2`, userID, false)
	if err != nil {
		return 0, fmt.Errorf("failed to count active api keys: %w", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var expiresAt time.Time
		if err := rows.Scan(&expiresAt); err != nil {
			return 0, fmt.Errorf("failed to scan api key expiry: %w", err)
		}
		if now.Before(expiresAt) {
			count++
		}
	}
	return count, rows.Err()
}

func (r *apiKeyRepository) Revoke(ctx context.Context, id uuid.UUID, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `UPDATE api_keys SET revoked = $1, updated_at = $2 WHERE id = $3`, true, at, id)
	if err != nil {
		return fmt.Errorf("failed to revoke api key: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrKeyNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAPIKey(s scanner) (domain.APIKey, error) {
	var (
		k           domain.APIKey
		permissions []byte
	)
	err := s.Scan(&k.ID, &k.UserID, &k.KeyHash, &k.Name, &permissions, &k.ExpiresAt, &k.Revoked, &k.CreatedAt, &k.UpdatedAt)
	if err != nil {
		return domain.APIKey{}, err
	}
	if err := json.Unmarshal(permissions, &k.Permissions); err != nil {
		return domain.APIKey{}, fmt.Errorf("failed to decode permissions: %w", err)
	}
	return k, nil
}
