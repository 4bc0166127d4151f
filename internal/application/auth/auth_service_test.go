package authservice

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/internal/repositories/apikeyrepo"
	"github.com/tuncanbit/ledger/internal/repositories/authrepo"
	"github.com/tuncanbit/ledger/internal/repositories/walletrepo"
	"github.com/tuncanbit/ledger/internal/testutil"
	"github.com/tuncanbit/ledger/pkg/config"
)

var testJWT = config.JWTConfig{Secret: "test-secret", Issuer: "ledger", TTL: 30 * 24 * time.Hour}

func newTestService(t *testing.T) (*AuthService, *database.DBManager, apikeyrepo.IAPIKeyRepository) {
	t.Helper()
	db := testutil.NewDB(t)
	logger := zerolog.Nop()
	apiKeys := apikeyrepo.New(db, logger)
	svc := NewAuthService(testJWT, logger, db, authrepo.New(db, logger), walletrepo.New(db, logger), apiKeys)
	return svc, db, apiKeys
}

func storeKey(t *testing.T, repo apikeyrepo.IAPIKeyRepository, userID uuid.UUID, raw string, perms []string, expiresAt time.Time, revoked bool) {
	t.Helper()
	now := time.Now().UTC()
	require.NoError(t, repo.Create(context.Background(), domain.APIKey{
		ID:          uuid.New(),
		UserID:      userID,
		KeyHash:     domain.HashAPIKey(raw),
		Name:        "test",
		Permissions: perms,
		ExpiresAt:   expiresAt,
		Revoked:     revoked,
		CreatedAt:   now,
		UpdatedAt:   now,
	}))
}

func TestAuthenticate_BearerToken(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	user, _ := testutil.SeedUser(t, db, "alice@example.com", 0)

	token, err := svc.GenerateToken(ctx, user)
	require.NoError(t, err)

	principal, err := svc.Authenticate(ctx, domain.Credentials{BearerToken: token})
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.User.ID)
	assert.Equal(t, domain.AuthMethodSession, principal.Method)
	assert.Equal(t, []string{domain.PermissionAll}, principal.Permissions)

	claims, err := svc.VerifyToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID.String(), claims.Subject)
	assert.WithinDuration(t, time.Now().Add(30*24*time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestAuthenticate_BearerTakesPrecedence(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()
	user, _ := testutil.SeedUser(t, db, "alice@example.com", 0)

	token, err := svc.GenerateToken(ctx, user)
	require.NoError(t, err)

	principal, err := svc.Authenticate(ctx, domain.Credentials{BearerToken: token, APIKey: "sk_live_garbage"})
	require.NoError(t, err)
	assert.Equal(t, domain.AuthMethodSession, principal.Method)

	_, err = svc.Authenticate(ctx, domain.Credentials{BearerToken: "garbage", APIKey: "sk_live_garbage"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestAuthenticate_TokenFailures(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Authenticate(ctx, domain.Credentials{})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	_, err = svc.Authenticate(ctx, domain.Credentials{BearerToken: "not-a-jwt"})
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	ghost := domain.User{ID: uuid.New(), Email: "ghost@example.com"}
	token, err := svc.GenerateToken(ctx, ghost)
	require.NoError(t, err)
	_, err = svc.Authenticate(ctx, domain.Credentials{BearerToken: token})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	t.Run("expired", func(t *testing.T) {
		svc.now = func() time.Time { return time.Now().UTC().Add(-31 * 24 * time.Hour) }
		old, err := svc.GenerateToken(ctx, ghost)
		require.NoError(t, err)
		svc.now = func() time.Time { return time.Now().UTC() }

		_, err = svc.VerifyToken(ctx, old)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		claim := &domain.Claim{
			UserID: ghost.ID,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "ledger",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claim).SignedString([]byte("other-secret"))
		require.NoError(t, err)

		_, err = svc.VerifyToken(ctx, forged)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		claim := &domain.Claim{
			UserID: ghost.ID,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claim).SignedString([]byte(testJWT.Secret))
		require.NoError(t, err)

		_, err = svc.VerifyToken(ctx, forged)
		assert.ErrorIs(t, err, domain.ErrInvalidToken)
	})
}

func TestAuthenticate_APIKey(t *testing.T) {
	svc, db, keys := newTestService(t)
	ctx := context.Background()
	user, _ := testutil.SeedUser(t, db, "alice@example.com", 0)
	future := time.Now().UTC().Add(time.Hour)

	storeKey(t, keys, user.ID, "sk_live_good", []string{"read", "deposit"}, future, false)
	storeKey(t, keys, user.ID, "sk_live_revoked", []string{"read"}, future, true)
	storeKey(t, keys, user.ID, "sk_live_expired", []string{"read"}, time.Now().UTC().Add(-time.Minute), false)

	principal, err := svc.Authenticate(ctx, domain.Credentials{APIKey: "sk_live_good"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.User.ID)
	assert.Equal(t, domain.AuthMethodAPIKey, principal.Method)
	assert.Equal(t, []string{"read", "deposit"}, principal.Permissions)
	assert.NotEqual(t, uuid.Nil, principal.APIKeyID)

	_, err = svc.Authenticate(ctx, domain.Credentials{APIKey: "sk_live_revoked"})
	assert.ErrorIs(t, err, domain.ErrKeyRevoked)

	_, err = svc.Authenticate(ctx, domain.Credentials{APIKey: "sk_live_expired"})
	assert.ErrorIs(t, err, domain.ErrKeyExpired)

	_, err = svc.Authenticate(ctx, domain.Credentials{APIKey: "sk_live_unknown"})
	assert.ErrorIs(t, err, domain.ErrInvalidAPIKey)
}

func TestAuthorize(t *testing.T) {
	svc, _, _ := newTestService(t)

	session := domain.Principal{Permissions: []string{domain.PermissionAll}}
	keyed := domain.Principal{Permissions: []string{"read", "deposit"}}

	assert.NoError(t, svc.Authorize(session, domain.PermissionTransfer))
	assert.NoError(t, svc.Authorize(keyed, domain.PermissionRead))
	assert.NoError(t, svc.Authorize(keyed, domain.PermissionDeposit))
	assert.ErrorIs(t, svc.Authorize(keyed, domain.PermissionTransfer), domain.ErrPermissionDenied)
	assert.ErrorIs(t, svc.Authorize(domain.Principal{}, domain.PermissionRead), domain.ErrPermissionDenied)
}

func TestLogin_ProvisionsUserAndWallet(t *testing.T) {
	svc, db, _ := newTestService(t)
	ctx := context.Background()

	identity := domain.ExternalIdentity{ExternalID: "google-123", Email: "bob@example.com", Name: "Bob"}
	token, user, err := svc.Login(ctx, identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.Equal(t, "bob@example.com", user.Email)

	wallet, err := walletrepo.New(db, zerolog.Nop()).GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), wallet.BalanceMinor)
	assert.Equal(t, domain.DefaultCurrency, wallet.Currency)
	assert.Regexp(t, `^[1-9][0-9]{9}$`, wallet.AccountNumber)

	principal, err := svc.Authenticate(ctx, domain.Credentials{BearerToken: token})
	require.NoError(t, err)
	assert.Equal(t, user.ID, principal.User.ID)

	identity.Name = "Robert"
	_, again, err := svc.Login(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, "Robert", again.Name)

	var wallets int
	require.NoError(t, db.Db.QueryRow(`SELECT COUNT(*) FROM wallets WHERE user_id = $1`, user.ID).Scan(&wallets))
	assert.Equal(t, 1, wallets)
}

// staleReadRepo misses the first lookup, as a login racing another first
// login for the same identity would.
type staleReadRepo struct {
	authrepo.IAuthRepository
	misses int
}

func (r *staleReadRepo) GetUserByExternalIDTx(ctx context.Context, tx *sql.Tx, externalID string) (domain.User, error) {
	if r.misses > 0 {
		r.misses--
		return domain.User{}, domain.ErrUserNotFound
	}
	return r.IAuthRepository.GetUserByExternalIDTx(ctx, tx, externalID)
}

func TestLogin_ConcurrentFirstLoginReadsExistingUser(t *testing.T) {
	db := testutil.NewDB(t)
	logger := zerolog.Nop()
	ctx := context.Background()

	existing, existingWallet := testutil.SeedUser(t, db, "carol@example.com", 0)

	repo := &staleReadRepo{IAuthRepository: authrepo.New(db, logger), misses: 1}
	svc := NewAuthService(testJWT, logger, db, repo, walletrepo.New(db, logger), apikeyrepo.New(db, logger))

	_, user, err := svc.Login(ctx, domain.ExternalIdentity{ExternalID: existing.ExternalID, Email: existing.Email, Name: existing.Name})
	require.NoError(t, err)
	assert.Equal(t, existing.ID, user.ID)
	assert.Equal(t, 0, repo.misses)

	var users int
	require.NoError(t, db.Db.QueryRow(`SELECT COUNT(*) FROM users WHERE external_id = $1`, existing.ExternalID).Scan(&users))
	assert.Equal(t, 1, users)

	wallet, err := walletrepo.New(db, logger).GetByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, existingWallet.ID, wallet.ID)
}
