package database

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/ledger/pkg/config"
)

func openSQLite(t *testing.T) *DBManager {
	t.Helper()
	dm, err := New(&config.DatabaseConfig{
		Driver: DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "ledger.db"),
	}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(dm.ShutDown)
	return dm
}

func TestRunMigrations_Idempotent(t *testing.T) {
	dm := openSQLite(t)
	ctx := context.Background()

	require.NoError(t, dm.RunMigrations(ctx))
	require.NoError(t, dm.RunMigrations(ctx))

	var applied int
	require.NoError(t, dm.Db.QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, 1, applied)

	for _, table := range []string{"users", "wallets", "transactions", "api_keys"} {
		var n int
		require.NoError(t, dm.Db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n), table)
	}
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	dm := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, dm.RunMigrations(ctx))

	boom := errors.New("boom")
	err := dm.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, external_id, email, name, created_at, updated_at)
			VALUES ('u1', 'g1', 'a@example.com', 'A', '2024-01-01', '2024-01-01')`); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, dm.Db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n))
	assert.Zero(t, n)
}

func TestIsUniqueViolation(t *testing.T) {
	dm := openSQLite(t)
	ctx := context.Background()
	require.NoError(t, dm.RunMigrations(ctx))

	insert := func() error {
		_, err := dm.Db.ExecContext(ctx, `
			INSERT INTO users (id, external_id, email, name, created_at, updated_at)
			VALUES ('u1', 'g1', 'a@example.com', 'A', '2024-01-01', '2024-01-01')`)
		return err
	}
	require.NoError(t, insert())

	err := insert()
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.False(t, IsUniqueViolation(errors.New("other")))
}
