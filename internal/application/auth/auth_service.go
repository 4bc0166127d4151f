package authservice

import (
	"context"

	"github.com/tuncanbit/ledger/internal/domain"
)

type IAuthService interface {
	// Authenticate resolves credentials to a principal. A bearer token takes
	// precedence over an API key when both are present.
	Authenticate(ctx context.Context, creds domain.Credentials) (domain.Principal, error)
	Authorize(principal domain.Principal, permission string) error
	VerifyToken(ctx context.Context, tokenString string) (*domain.Claim, error)
	GenerateToken(ctx context.Context, user domain.User) (string, error)
	VerifyAPIKey(ctx context.Context, apiKey string) (domain.APIKey, error)
	// Login provisions the user and wallet on first sight and issues a session token.
	Login(ctx context.Context, identity domain.ExternalIdentity) (string, domain.User, error)
}
