package apikeyservice

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/repositories/apikeyrepo"
	"github.com/tuncanbit/ledger/internal/testutil"
	"github.com/tuncanbit/ledger/pkg/config"
)

func newTestService(t *testing.T) (*apiKeyService, apikeyrepo.IAPIKeyRepository, domain.User) {
	t.Helper()
	db := testutil.NewDB(t)
	user, _ := testutil.SeedUser(t, db, "alice@example.com", 0)
	repo := apikeyrepo.New(db, zerolog.Nop())
	svc := New(repo, config.APIKeysConfig{MaxActive: 5}, zerolog.Nop()).(*apiKeyService)
	return svc, repo, user
}

func session(user domain.User) domain.Principal {
	return domain.Principal{User: user, Method: domain.AuthMethodSession, Permissions: []string{domain.PermissionAll}}
}

func TestIssue(t *testing.T) {
	svc, repo, user := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, session(user), "ci", []string{"read", "deposit"}, "1D")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(issued.APIKey, domain.APIKeyPrefix))
	assert.Len(t, issued.APIKey, len(domain.APIKeyPrefix)+2*secretBytes)

	stored, err := repo.GetByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.HashAPIKey(issued.APIKey), stored.KeyHash)
	assert.NotContains(t, stored.KeyHash, issued.APIKey)
	assert.Equal(t, []string{"read", "deposit"}, stored.Permissions)
	assert.False(t, stored.Revoked)
	assert.WithinDuration(t, issued.ExpiresAt, stored.ExpiresAt, time.Second)
}

func TestIssue_Validation(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	_, err := svc.Issue(ctx, session(user), "  ", []string{"read"}, "1D")
	assert.ErrorIs(t, err, domain.ErrInvalidName)

	_, err = svc.Issue(ctx, session(user), "k", nil, "1D")
	assert.ErrorIs(t, err, domain.ErrInvalidPermissions)

	_, err = svc.Issue(ctx, session(user), "k", []string{"read", ""}, "1D")
	assert.ErrorIs(t, err, domain.ErrInvalidPermissions)

	_, err = svc.Issue(ctx, session(user), "k", []string{"read"}, "forever")
	assert.ErrorIs(t, err, domain.ErrInvalidExpiry)
}

func TestIssue_APIKeyCannotEscalate(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	caller := domain.Principal{
		User:        user,
		Method:      domain.AuthMethodAPIKey,
		Permissions: []string{domain.PermissionKeys, domain.PermissionRead},
		APIKeyID:    uuid.New(),
	}

	_, err := svc.Issue(ctx, caller, "wide", []string{domain.PermissionAll}, "1D")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	_, err = svc.Issue(ctx, caller, "mover", []string{domain.PermissionRead, domain.PermissionTransfer}, "1D")
	require.ErrorIs(t, err, domain.ErrPermissionDenied)

	keys, err := svc.List(ctx, user)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = svc.Issue(ctx, caller, "narrow", []string{domain.PermissionRead}, "1D")
	require.NoError(t, err)

	caller.Permissions = []string{domain.PermissionAll}
	_, err = svc.Issue(ctx, caller, "full", []string{domain.PermissionTransfer}, "1D")
	require.NoError(t, err)
}

func TestIssue_ActiveKeyCap(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	var first domain.IssuedKey
	for i := 0; i < 5; i++ {
		issued, err := svc.Issue(ctx, session(user), "key", []string{"read"}, "1D")
		require.NoError(t, err)
		if i == 0 {
			first = issued
		}
	}

	_, err := svc.Issue(ctx, session(user), "sixth", []string{"read"}, "1D")
	require.ErrorIs(t, err, domain.ErrKeyLimitExceeded)

	keys, err := svc.List(ctx, user)
	require.NoError(t, err)
	assert.Len(t, keys, 5)

	// A revoked key frees a slot.
	require.NoError(t, svc.Revoke(ctx, user, first.ID))
	_, err = svc.Issue(ctx, session(user), "sixth", []string{"read"}, "1D")
	require.NoError(t, err)
}

func TestIssue_ExpiredKeysDoNotCount(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := svc.Issue(ctx, session(user), "short", []string{"read"}, "1H")
		require.NoError(t, err)
	}

	later := time.Now().UTC().Add(2 * time.Hour)
	svc.now = func() time.Time { return later }

	_, err := svc.Issue(ctx, session(user), "fresh", []string{"read"}, "1D")
	require.NoError(t, err)
}

func TestRollover(t *testing.T) {
	svc, repo, user := newTestService(t)
	ctx := context.Background()

	old, err := svc.Issue(ctx, session(user), "billing", []string{"read", "transfer"}, "1H")
	require.NoError(t, err)

	t.Run("rejects unexpired key", func(t *testing.T) {
		_, err := svc.Rollover(ctx, session(user), old.ID, "1D")
		require.ErrorIs(t, err, domain.ErrKeyNotYetExpired)

		keys, err := svc.List(ctx, user)
		require.NoError(t, err)
		assert.Len(t, keys, 1)
	})

	t.Run("rejects other owner", func(t *testing.T) {
		stranger := domain.User{ID: uuid.New()}
		_, err := svc.Rollover(ctx, session(stranger), old.ID, "1D")
		require.ErrorIs(t, err, domain.ErrKeyNotOwned)
	})

	t.Run("rejects unknown key", func(t *testing.T) {
		_, err := svc.Rollover(ctx, session(user), uuid.New(), "1D")
		require.ErrorIs(t, err, domain.ErrKeyNotFound)
	})

	t.Run("replaces expired key", func(t *testing.T) {
		later := time.Now().UTC().Add(2 * time.Hour)
		svc.now = func() time.Time { return later }
		defer func() { svc.now = func() time.Time { return time.Now().UTC() } }()

		_, err := svc.Rollover(ctx, session(user), old.ID, "bogus")
		require.ErrorIs(t, err, domain.ErrInvalidExpiry)

		issued, err := svc.Rollover(ctx, session(user), old.ID, "1M")
		require.NoError(t, err)
		assert.NotEqual(t, old.ID, issued.ID)
		assert.NotEqual(t, old.APIKey, issued.APIKey)
		assert.Equal(t, later.AddDate(0, 1, 0), issued.ExpiresAt)

		replacement, err := repo.GetByID(ctx, issued.ID)
		require.NoError(t, err)
		assert.Equal(t, "billing", replacement.Name)
		assert.Equal(t, []string{"read", "transfer"}, replacement.Permissions)

		previous, err := repo.GetByID(ctx, old.ID)
		require.NoError(t, err)
		assert.False(t, previous.Revoked)
	})

	t.Run("api key cannot roll over a broader key", func(t *testing.T) {
		later := time.Now().UTC().Add(2 * time.Hour)
		svc.now = func() time.Time { return later }
		defer func() { svc.now = func() time.Time { return time.Now().UTC() } }()

		caller := domain.Principal{User: user, Method: domain.AuthMethodAPIKey, Permissions: []string{domain.PermissionKeys}}
		_, err := svc.Rollover(ctx, caller, old.ID, "1D")
		require.ErrorIs(t, err, domain.ErrPermissionDenied)
	})
}

func TestRevoke(t *testing.T) {
	svc, repo, user := newTestService(t)
	ctx := context.Background()

	issued, err := svc.Issue(ctx, session(user), "tmp", []string{"read"}, "1D")
	require.NoError(t, err)

	require.ErrorIs(t, svc.Revoke(ctx, domain.User{ID: uuid.New()}, issued.ID), domain.ErrKeyNotOwned)

	require.NoError(t, svc.Revoke(ctx, user, issued.ID))
	require.NoError(t, svc.Revoke(ctx, user, issued.ID))

	stored, err := repo.GetByID(ctx, issued.ID)
	require.NoError(t, err)
	assert.True(t, stored.Revoked)
}
