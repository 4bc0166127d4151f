package authservice

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/internal/repositories/apikeyrepo"
	auth_repository "github.com/tuncanbit/ledger/internal/repositories/authrepo"
	"github.com/tuncanbit/ledger/internal/repositories/walletrepo"
	"github.com/tuncanbit/ledger/pkg/config"
)

const maxProvisionAttempts = 5

type AuthService struct {
	config     config.JWTConfig
	logger     zerolog.Logger
	db         *database.DBManager
	authRepo   auth_repository.IAuthRepository
	walletRepo walletrepo.IWalletRepository
	apiKeyRepo apikeyrepo.IAPIKeyRepository
	now        func() time.Time
}

func NewAuthService(
	config config.JWTConfig,
	logger zerolog.Logger,
	db *database.DBManager,
	authRepo auth_repository.IAuthRepository,
	walletRepo walletrepo.IWalletRepository,
	apiKeyRepo apikeyrepo.IAPIKeyRepository,
) *AuthService {
	return &AuthService{
		config:     config,
		logger:     logger,
		db:         db,
		authRepo:   authRepo,
		walletRepo: walletRepo,
		apiKeyRepo: apiKeyRepo,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuthService) Authenticate(ctx context.Context, creds domain.Credentials) (domain.Principal, error) {
	switch {
	case creds.BearerToken != "":
		claims, err := s.VerifyToken(ctx, creds.BearerToken)
		if err != nil {
			return domain.Principal{}, err
		}
		user, err := s.authRepo.GetUserByID(ctx, claims.UserID)
		if err != nil {
			return domain.Principal{}, domain.Internal(err)
		}
		return domain.Principal{
			User:        user,
			Method:      domain.AuthMethodSession,
			Permissions: []string{domain.PermissionAll},
		}, nil

	case creds.APIKey != "":
		key, err := s.VerifyAPIKey(ctx, creds.APIKey)
		if err != nil {
			return domain.Principal{}, err
		}
		user, err := s.authRepo.GetUserByID(ctx, key.UserID)
		if err != nil {
			return domain.Principal{}, domain.Internal(err)
		}
		return domain.Principal{
			User:        user,
			Method:      domain.AuthMethodAPIKey,
			Permissions: key.Permissions,
			APIKeyID:    key.ID,
		}, nil
	}

	return domain.Principal{}, domain.ErrMissingCredential
}

func (s *AuthService) Authorize(principal domain.Principal, permission string) error {
	if principal.Has(permission) {
		return nil
	}
	return domain.ErrPermissionDenied.WithMessage("Missing permission: %s", permission)
}

func (s *AuthService) VerifyToken(ctx context.Context, tokenString string) (*domain.Claim, error) {
	if s.config.Secret == "" {
		s.logger.Error().Msg("JWT secret not configured")
		return nil, domain.ErrInternal.Wrap(errors.New("jwt secret not configured"))
	}

	claims := &domain.Claim{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	},
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		s.logger.Debug().Err(err).Msg("Failed to parse token")
		return nil, domain.ErrInvalidToken.Wrap(err)
	}
	if !token.Valid || claims.UserID == uuid.Nil {
		return nil, domain.ErrInvalidToken
	}

	return claims, nil
}

func (s *AuthService) GenerateToken(ctx context.Context, user domain.User) (string, error) {
	if s.config.Secret == "" {
		s.logger.Error().Msg("JWT secret not configured")
		return "", domain.ErrInternal.Wrap(errors.New("jwt secret not configured"))
	}

	now := s.now()
	claim := &domain.Claim{
		UserID: user.ID,
		Email:  user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    s.config.Issuer,
			Subject:   user.ID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claim)
	tokenString, err := token.SignedString([]byte(s.config.Secret))
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Msg("Failed to sign token")
		return "", domain.Internal(fmt.Errorf("failed to sign token: %w", err))
	}

	return tokenString, nil
}

func (s *AuthService) VerifyAPIKey(ctx context.Context, apiKey string) (domain.APIKey, error) {
	if apiKey == "" {
		return domain.APIKey{}, domain.ErrInvalidAPIKey
	}

	key, err := s.apiKeyRepo.GetByHash(ctx, domain.HashAPIKey(apiKey))
	if err != nil {
		if errors.Is(err, domain.ErrKeyNotFound) {
			return domain.APIKey{}, domain.ErrInvalidAPIKey
		}
		return domain.APIKey{}, domain.Internal(err)
	}

	if key.Revoked {
		return domain.APIKey{}, domain.ErrKeyRevoked
	}
	if !s.now().Before(key.ExpiresAt) {
		return domain.APIKey{}, domain.ErrKeyExpired
	}

	return key, nil
}

func (s *AuthService) Login(ctx context.Context, identity domain.ExternalIdentity) (string, domain.User, error) {
	if identity.ExternalID == "" || identity.Email == "" {
		return "", domain.User{}, domain.ErrInvalidToken.WithMessage("Identity provider returned no subject or email")
	}

	var (
		user domain.User
		err  error
	)
	for attempt := 1; attempt <= maxProvisionAttempts; attempt++ {
		user, err = s.provision(ctx, identity)
		switch {
		case errors.Is(err, walletrepo.ErrAccountNumberTaken):
			s.logger.Warn().Int("attempt", attempt).Msg("Account number collision, retrying")
			continue
		case errors.Is(err, auth_repository.ErrUserExists):
			// A concurrent first login created the user; the next pass reads it back.
			s.logger.Warn().Int("attempt", attempt).Str("external_id", identity.ExternalID).Msg("User created concurrently, retrying")
			continue
		}
		break
	}
	if err != nil {
		s.logger.Error().Err(err).Str("email", identity.Email).Msg("Failed to provision user")
		return "", domain.User{}, domain.Internal(err)
	}

	token, err := s.GenerateToken(ctx, user)
	if err != nil {
		return "", domain.User{}, err
	}

	return token, user, nil
}

// provision finds or creates the user and their wallet in one atomic unit.
func (s *AuthService) provision(ctx context.Context, identity domain.ExternalIdentity) (domain.User, error) {
	var user domain.User
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		now := s.now()

		existing, err := s.authRepo.GetUserByExternalIDTx(ctx, tx, identity.ExternalID)
		if err == nil {
			user = existing
			if identity.Name != "" && identity.Name != existing.Name {
				if err := s.authRepo.UpdateUserNameTx(ctx, tx, existing.ID, identity.Name, now); err != nil {
					return err
				}
				user.Name = identity.Name
				user.UpdatedAt = now
			}
			return nil
		}
		if !errors.Is(err, domain.ErrUserNotFound) {
			return err
		}

		user = domain.User{
			ID:         uuid.New(),
			ExternalID: identity.ExternalID,
			Email:      identity.Email,
			Name:       identity.Name,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := s.authRepo.CreateUserTx(ctx, tx, user); err != nil {
			return err
		}

		accountNumber, err := domain.NewAccountNumber()
		if err != nil {
			return err
		}
		return s.walletRepo.CreateWalletTx(ctx, tx, domain.Wallet{
			ID:            uuid.New(),
			UserID:        user.ID,
			Currency:      domain.DefaultCurrency,
			AccountNumber: accountNumber,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	})
	return user, err
}
