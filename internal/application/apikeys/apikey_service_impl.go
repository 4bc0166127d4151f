package apikeyservice

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/repositories/apikeyrepo"
	"github.com/tuncanbit/ledger/pkg/config"
)

const secretBytes = 24

type apiKeyService struct {
	apiKeyRepo apikeyrepo.IAPIKeyRepository
	maxActive  int
	logger     zerolog.Logger
	now        func() time.Time
}

func New(apiKeyRepo apikeyrepo.IAPIKeyRepository, cfg config.APIKeysConfig, logger zerolog.Logger) IAPIKeyService {
	maxActive := cfg.MaxActive
	if maxActive <= 0 {
		maxActive = 5
	}
	return &apiKeyService{
		apiKeyRepo: apiKeyRepo,
		maxActive:  maxActive,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *apiKeyService) Issue(ctx context.Context, principal domain.Principal, name string, permissions []string, expiry string) (domain.IssuedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.IssuedKey{}, domain.ErrInvalidName
	}
	if err := validatePermissions(permissions); err != nil {
		return domain.IssuedKey{}, err
	}
	if err := checkGrant(principal, permissions); err != nil {
		return domain.IssuedKey{}, err
	}

	now := s.now()
	expiresAt, err := ParseExpiry(expiry, now)
	if err != nil {
		return domain.IssuedKey{}, err
	}

	return s.issue(ctx, principal.User, name, permissions, expiresAt, now)
}

func (s *apiKeyService) Rollover(ctx context.Context, principal domain.Principal, expiredKeyID uuid.UUID, expiry string) (domain.IssuedKey, error) {
	user := principal.User
	old, err := s.apiKeyRepo.GetByID(ctx, expiredKeyID)
	if err != nil {
		return domain.IssuedKey{}, domain.Internal(err)
	}
	if old.UserID != user.ID {
		return domain.IssuedKey{}, domain.ErrKeyNotOwned
	}
	if err := checkGrant(principal, old.Permissions); err != nil {
		return domain.IssuedKey{}, err
	}

	now := s.now()
	if old.ExpiresAt.After(now) {
		return domain.IssuedKey{}, domain.ErrKeyNotYetExpired
	}

	expiresAt, err := ParseExpiry(expiry, now)
	if err != nil {
		return domain.IssuedKey{}, err
	}

	issued, err := s.issue(ctx, user, old.Name, old.Permissions, expiresAt, now)
	if err != nil {
		return domain.IssuedKey{}, err
	}

	s.logger.Info().
		Str("user_id", user.ID.String()).
		Str("old_key_id", old.ID.String()).
		Str("new_key_id", issued.ID.String()).
		Msg("API key rolled over")
	return issued, nil
}

func (s *apiKeyService) List(ctx context.Context, user domain.User) ([]domain.APIKey, error) {
	keys, err := s.apiKeyRepo.ListByUser(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return keys, nil
}

func (s *apiKeyService) Revoke(ctx context.Context, user domain.User, keyID uuid.UUID) error {
	key, err := s.apiKeyRepo.GetByID(ctx, keyID)
	if err != nil {
		return domain.Internal(err)
	}
	if key.UserID != user.ID {
		return domain.ErrKeyNotOwned
	}
	if key.Revoked {
		return nil
	}
	if err := s.apiKeyRepo.Revoke(ctx, keyID, s.now()); err != nil {
		return domain.Internal(err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("key_id", keyID.String()).Msg("API key revoked")
	return nil
}

// issue enforces the active-key cap, then mints and stores a new key. The
// count and the insert are separate statements, so two concurrent issues
// for the same user can both pass the cap check.
func (s *apiKeyService) issue(ctx context.Context, user domain.User, name string, permissions []string, expiresAt, now time.Time) (domain.IssuedKey, error) {
	active, err := s.apiKeyRepo.CountActive(ctx, user.ID, now)
	if err != nil {
		return domain.IssuedKey{}, domain.Internal(err)
	}
	if active >= s.maxActive {
		return domain.IssuedKey{}, domain.ErrKeyLimitExceeded.WithMessage("Maximum of %d active API keys reached", s.maxActive)
	}

	raw, err := generateSecret()
	if err != nil {
		return domain.IssuedKey{}, domain.Internal(err)
	}

	key := domain.APIKey{
		ID:          uuid.New(),
		UserID:      user.ID,
		KeyHash:     domain.HashAPIKey(raw),
		Name:        name,
		Permissions: permissions,
		ExpiresAt:   expiresAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.apiKeyRepo.Create(ctx, key); err != nil {
		return domain.IssuedKey{}, domain.Internal(err)
	}

	s.logger.Info().Str("user_id", user.ID.String()).Str("key_id", key.ID.String()).Msg("API key issued")
	return domain.IssuedKey{ID: key.ID, APIKey: raw, ExpiresAt: expiresAt}, nil
}

func validatePermissions(permissions []string) error {
	if len(permissions) == 0 {
		return domain.ErrInvalidPermissions
	}
	for _, p := range permissions {
		if strings.TrimSpace(p) == "" {
			return domain.ErrInvalidPermissions
		}
	}
	return nil
}

// checkGrant stops an API key from minting a key broader than itself.
// Session callers may grant anything.
func checkGrant(principal domain.Principal, permissions []string) error {
	if principal.Method != domain.AuthMethodAPIKey {
		return nil
	}
	for _, p := range permissions {
		if !principal.Has(p) {
			return domain.ErrPermissionDenied.WithMessage("API key cannot grant permission %q", p)
		}
	}
	return nil
}

func generateSecret() (string, error) {
	b := make([]byte, secretBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate api key: %w", err)
	}
	return domain.APIKeyPrefix + hex.EncodeToString(b), nil
}
