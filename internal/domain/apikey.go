package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

type APIKey struct {
	ID          uuid.UUID `json:"id"`
	UserID      uuid.UUID `json:"user_id"`
	KeyHash     string    `json:"-"`
	Name        string    `json:"name"`
	Permissions []string  `json:"permissions"`
	ExpiresAt   time.Time `json:"expires_at"`
	Revoked     bool      `json:"revoked"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Active reports whether the key can still authenticate at instant now.
func (k APIKey) Active(now time.Time) bool {
	return !k.Revoked && now.Before(k.ExpiresAt)
}

// IssuedKey is returned exactly once, at creation or rollover. It is the only
// value that ever carries the plaintext secret.
type IssuedKey struct {
	ID        uuid.UUID `json:"id"`
	APIKey    string    `json:"api_key"`
	ExpiresAt time.Time `json:"expires_at"`
}

// APIKeyPrefix marks live secret keys.
const APIKeyPrefix = "sk_live_"

// HashAPIKey returns the lookup hash stored for a plaintext key.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
