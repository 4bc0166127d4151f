package transactionrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/internal/testutil"
)

func pendingDeposit(walletID uuid.UUID, reference string, at time.Time) domain.Transaction {
	return domain.Transaction{
		ID:          uuid.New(),
		WalletID:    walletID,
		Type:        domain.TypeDeposit,
		AmountMinor: 5000,
		Reference:   reference,
		Status:      domain.StatusPending,
		Direction:   domain.DirectionCredit,
		Description: "Wallet funding (Paystack)",
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

func create(t *testing.T, db *database.DBManager, repo ITransactionRepository, txn domain.Transaction) error {
	t.Helper()
	ctx := context.Background()
	return db.WithTx(ctx, func(tx *sql.Tx) error {
		return repo.CreateTx(ctx, tx, txn)
	})
}

func TestCreateTx_RoundTrip(t *testing.T) {
	db := testutil.NewDB(t)
	_, wallet := testutil.SeedUser(t, db, "a@example.com", 0)
	_, other := testutil.SeedUser(t, db, "b@example.com", 0)
	repo := New(db, zerolog.Nop())

	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	txn := domain.Transaction{
		ID:                   uuid.New(),
		WalletID:             wallet.ID,
		Type:                 domain.TypeTransfer,
		AmountMinor:          2500,
		Reference:            "TRX-1",
		Status:               domain.StatusSuccess,
		Direction:            domain.DirectionDebit,
		CounterpartyWalletID: uuid.NullUUID{UUID: other.ID, Valid: true},
		Description:          "Transfer to " + other.AccountNumber,
		CreatedAt:            at,
		UpdatedAt:            at,
	}
	require.NoError(t, create(t, db, repo, txn))

	got, err := repo.GetByReference(context.Background(), "TRX-1")
	require.NoError(t, err)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, txn.CounterpartyWalletID, got.CounterpartyWalletID)
	assert.Equal(t, txn.Description, got.Description)
	assert.True(t, at.Equal(got.CreatedAt))
	assert.Nil(t, got.Metadata)
}

func TestCreateTx_DuplicateReference(t *testing.T) {
	db := testutil.NewDB(t)
	_, wallet := testutil.SeedUser(t, db, "a@example.com", 0)
	repo := New(db, zerolog.Nop())
	now := time.Now().UTC()

	require.NoError(t, create(t, db, repo, pendingDeposit(wallet.ID, "PSK-1", now)))
	err := create(t, db, repo, pendingDeposit(wallet.ID, "PSK-1", now))
	require.ErrorIs(t, err, domain.ErrDuplicateReference)
	assert.Equal(t, 1, testutil.CountTransactions(t, db))
}

func TestGetByReference_NotFound(t *testing.T) {
	db := testutil.NewDB(t)
	_, err := New(db, zerolog.Nop()).GetByReference(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrTransactionNotFound)
}

func TestUpdateStatusTx_OnlyFromExpectedStatus(t *testing.T) {
	db := testutil.NewDB(t)
	_, wallet := testutil.SeedUser(t, db, "a@example.com", 0)
	repo := New(db, zerolog.Nop())
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, create(t, db, repo, pendingDeposit(wallet.ID, "PSK-1", now)))

	metadata := json.RawMessage(`{"channel":"card"}`)
	flip := func() bool {
		var moved bool
		require.NoError(t, db.WithTx(ctx, func(tx *sql.Tx) error {
			var err error
			moved, err = repo.UpdateStatusTx(ctx, tx, "PSK-1", domain.StatusPending, domain.StatusSuccess, metadata, now)
			return err
		}))
		return moved
	}

	assert.True(t, flip())
	assert.False(t, flip())

	got, err := repo.GetByReference(ctx, "PSK-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccess, got.Status)
	assert.JSONEq(t, `{"channel":"card"}`, string(got.Metadata))
}

func TestListPendingDeposits(t *testing.T) {
	db := testutil.NewDB(t)
	_, wallet := testutil.SeedUser(t, db, "a@example.com", 0)
	repo := New(db, zerolog.Nop())
	ctx := context.Background()

	old := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(time.Hour)
	require.NoError(t, create(t, db, repo, pendingDeposit(wallet.ID, "OLD", old)))
	require.NoError(t, create(t, db, repo, pendingDeposit(wallet.ID, "FRESH", fresh)))

	settled := pendingDeposit(wallet.ID, "DONE", old)
	settled.Status = domain.StatusSuccess
	require.NoError(t, create(t, db, repo, settled))

	got, err := repo.ListPendingDeposits(ctx, old.Add(30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OLD", got[0].Reference)

	got, err = repo.ListPendingDeposits(ctx, fresh.Add(time.Minute), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "OLD", got[0].Reference)
}
