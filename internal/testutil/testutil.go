// Package testutil opens throwaway ledger databases for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/pkg/config"
)

// NewDB returns a migrated SQLite database living in the test's temp dir.
func NewDB(t *testing.T) *database.DBManager {
	t.Helper()

	cfg := &config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "ledger.db"),
	}
	dm, err := database.New(cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(dm.ShutDown)

	require.NoError(t, dm.RunMigrations(context.Background()))
	return dm
}

// SeedUser inserts a user and a wallet holding balance minor units.
func SeedUser(t *testing.T, dm *database.DBManager, email string, balance int64) (domain.User, domain.Wallet) {
	t.Helper()

	now := time.Now().UTC()
	user := domain.User{
		ID:         uuid.New(),
		ExternalID: "ext-" + email,
		Email:      email,
		Name:       email,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	accountNumber, err := domain.NewAccountNumber()
	require.NoError(t, err)
	wallet := domain.Wallet{
		ID:            uuid.New(),
		UserID:        user.ID,
		BalanceMinor:  balance,
		Currency:      domain.DefaultCurrency,
		AccountNumber: accountNumber,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	ctx := context.Background()
	err = dm.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, external_id, email, name, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			user.ID, user.ExternalID, user.Email, user.Name, user.CreatedAt, user.UpdatedAt); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO wallets (id, user_id, balance, currency, account_number, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			wallet.ID, wallet.UserID, wallet.BalanceMinor, wallet.Currency, wallet.AccountNumber, wallet.CreatedAt, wallet.UpdatedAt)
		return err
	})
	require.NoError(t, err)

	return user, wallet
}

// Balance reads a wallet balance straight from the table.
func Balance(t *testing.T, dm *database.DBManager, walletID uuid.UUID) int64 {
	t.Helper()
	var balance int64
	require.NoError(t, dm.Db.QueryRow(`SELECT balance FROM wallets WHERE id = $1`, walletID).Scan(&balance))
	return balance
}

// CountTransactions counts rows in the transactions table.
func CountTransactions(t *testing.T, dm *database.DBManager) int {
	t.Helper()
	var n int
	require.NoError(t, dm.Db.QueryRow(`SELECT COUNT(*) FROM transactions`).Scan(&n))
	return n
}
