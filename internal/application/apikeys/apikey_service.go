package apikeyservice

import (
	"context"

	"github.com/google/uuid"

	"github.com/tuncanbit/ledger/internal/domain"
)

type IAPIKeyService interface {
	Issue(ctx context.Context, principal domain.Principal, name string, permissions []string, expiry string) (domain.IssuedKey, error)
	Rollover(ctx context.Context, principal domain.Principal, expiredKeyID uuid.UUID, expiry string) (domain.IssuedKey, error)
	List(ctx context.Context, user domain.User) ([]domain.APIKey, error)
	Revoke(ctx context.Context, user domain.User, keyID uuid.UUID) error
}
