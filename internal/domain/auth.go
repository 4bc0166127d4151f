package domain

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type AuthMethod string

const (
	AuthMethodSession AuthMethod = "session"
	AuthMethodAPIKey  AuthMethod = "api_key"
)

const (
	PermissionAll      = "*"
	PermissionRead     = "read"
	PermissionDeposit  = "deposit"
	PermissionTransfer = "transfer"
	PermissionKeys     = "keys"
)

type User struct {
	ID         uuid.UUID `json:"id"`
	ExternalID string    `json:"-"`
	Email      string    `json:"email"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ExternalIdentity is what the identity provider hands back after a successful login.
type ExternalIdentity struct {
	ExternalID string
	Email      string
	Name       string
}

// Credentials are the raw values pulled off an inbound request.
type Credentials struct {
	BearerToken string
	APIKey      string
}

// Principal is an authenticated caller.
type Principal struct {
	User        User
	Method      AuthMethod
	Permissions []string
	APIKeyID    uuid.UUID
}

func (p Principal) Has(permission string) bool {
	return slices.Contains(p.Permissions, PermissionAll) || slices.Contains(p.Permissions, permission)
}

type Claim struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	jwt.RegisteredClaims
}
