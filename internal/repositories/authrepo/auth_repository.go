package authrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tuncanbit/ledger/internal/domain"
)

type IAuthRepository interface {
	GetUserByID(ctx context.Context, id uuid.UUID) (domain.User, error)
	GetUserByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID string) (domain.User, error)
	CreateUserTx(ctx context.Context, tx *sql.Tx, user domain.User) error
	UpdateUserNameTx(ctx context.Context, tx *sql.Tx, id uuid.UUID, name string, updatedAt time.Time) error
}
