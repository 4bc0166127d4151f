package apikeyrepo

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/tuncanbit/ledger/internal/domain"
)

type IAPIKeyRepository interface {
	Create(ctx context.Context, key domain.APIKey) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.APIKey, error)
	GetByHash(ctx context.Context, keyHash string) (domain.APIKey, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.APIKey, error)
	CountActive(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)
	Revoke(ctx context.Context, id uuid.UUID, at time.Time) error
}
