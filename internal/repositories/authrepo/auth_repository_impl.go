package authrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
)

// ErrUserExists is returned when an insert races another insert for the same identity.
var ErrUserExists = errors.New("user already exists")

const userColumns = `id, external_id, email, name, created_at, updated_at`

type authRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IAuthRepository {
	return &authRepository{
		db:     db.Db,
		logger: logger,
	}
}

func (r *authRepository) GetUserByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		r.logger.Error().Err(err).Str("user_id", id.String()).Msg("Failed to get user")
		return domain.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *authRepository) GetUserByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID string) (domain.User, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE external_id = $1`, externalID)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("failed to get user by external id: %w", err)
	}
	return user, nil
}

func (r *authRepository) CreateUserTx(ctx context.Context, tx *sql.Tx, user domain.User) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO users (id, external_id, email, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		user.ID, user.ExternalID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("failed to create user %s: %w: %v", user.Email, ErrUserExists, err)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (r *authRepository) UpdateUserNameTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, name string, updatedAt time.Time) error {
	if _, err := tx.ExecContext(ctx, `UPDATE users SET name = $1, updated_at = $2 WHERE id = $3`, name, updatedAt, id); err != nil {
		return fmt.Errorf("failed to update user name: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}
