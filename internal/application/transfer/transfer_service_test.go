package transferservice

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/internal/repositories/transactionrepo"
	"github.com/tuncanbit/ledger/internal/repositories/walletrepo"
	"github.com/tuncanbit/ledger/internal/testutil"
)

type recordingNotifier struct {
	mu       sync.Mutex
	balances map[uuid.UUID]int64
	txns     []domain.Transaction
}

func (n *recordingNotifier) NotifyBalance(userID uuid.UUID, wallet domain.Wallet) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.balances == nil {
		n.balances = make(map[uuid.UUID]int64)
	}
	n.balances[userID] = wallet.BalanceMinor
}

func (n *recordingNotifier) NotifyTransaction(_ uuid.UUID, txn domain.Transaction) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.txns = append(n.txns, txn)
}

func newTestService(t *testing.T, notifier domain.Notifier) (ITransferService, *database.DBManager, transactionrepo.ITransactionRepository) {
	t.Helper()
	db := testutil.NewDB(t)
	txRepo := transactionrepo.New(db, zerolog.Nop())
	svc := New(db, walletrepo.New(db, zerolog.Nop()), txRepo, notifier, zerolog.Nop())
	return svc, db, txRepo
}

func TestTransfer_MovesFundsAndWritesBothLegs(t *testing.T) {
	notifier := &recordingNotifier{}
	svc, db, txRepo := newTestService(t, notifier)
	ctx := context.Background()

	alice, walletA := testutil.SeedUser(t, db, "a@example.com", 500000)
	bob, walletB := testutil.SeedUser(t, db, "b@example.com", 100000)

	result, err := svc.Transfer(ctx, alice, walletB.AccountNumber, 200000)
	require.NoError(t, err)

	assert.Equal(t, int64(300000), testutil.Balance(t, db, walletA.ID))
	assert.Equal(t, int64(300000), testutil.Balance(t, db, walletB.ID))
	assert.Equal(t, int64(300000), result.SenderWallet.BalanceMinor)
	assert.Regexp(t, `^TRX-\d+-[0-9a-f]{8}$`, result.Reference)

	debit, err := txRepo.GetByReference(ctx, result.Reference)
	require.NoError(t, err)
	credit, err := txRepo.GetByReference(ctx, result.Reference+domain.CreditLegSuffix)
	require.NoError(t, err)

	assert.Equal(t, walletA.ID, debit.WalletID)
	assert.Equal(t, domain.DirectionDebit, debit.Direction)
	assert.Equal(t, domain.StatusSuccess, debit.Status)
	assert.Equal(t, domain.TypeTransfer, debit.Type)
	assert.Equal(t, int64(200000), debit.AmountMinor)
	assert.Equal(t, uuid.NullUUID{UUID: walletB.ID, Valid: true}, debit.CounterpartyWalletID)

	assert.Equal(t, walletB.ID, credit.WalletID)
	assert.Equal(t, domain.DirectionCredit, credit.Direction)
	assert.Equal(t, domain.StatusSuccess, credit.Status)
	assert.Equal(t, uuid.NullUUID{UUID: walletA.ID, Valid: true}, credit.CounterpartyWalletID)

	assert.Equal(t, int64(300000), notifier.balances[alice.ID])
	assert.Equal(t, int64(300000), notifier.balances[bob.ID])
	assert.Len(t, notifier.txns, 2)
}

func TestTransfer_Rejections(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	alice, walletA := testutil.SeedUser(t, db, "a@example.com", 100000)
	_, walletB := testutil.SeedUser(t, db, "b@example.com", 0)

	tests := []struct {
		name      string
		sender    domain.User
		recipient string
		amount    int64
		wantErr   error
	}{
		{name: "zero amount", sender: alice, recipient: walletB.AccountNumber, amount: 0, wantErr: domain.ErrInvalidAmount},
		{name: "negative amount", sender: alice, recipient: walletB.AccountNumber, amount: -5, wantErr: domain.ErrInvalidAmount},
		{name: "insufficient funds", sender: alice, recipient: walletB.AccountNumber, amount: 100001, wantErr: domain.ErrInsufficientFunds},
		{name: "unknown recipient", sender: alice, recipient: "0000000000", amount: 100, wantErr: domain.ErrRecipientWalletNotFound},
		{name: "self transfer", sender: alice, recipient: walletA.AccountNumber, amount: 100, wantErr: domain.ErrSelfTransfer},
		{name: "sender without wallet", sender: domain.User{ID: uuid.New()}, recipient: walletB.AccountNumber, amount: 100, wantErr: domain.ErrSenderWalletNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Transfer(ctx, tt.sender, tt.recipient, tt.amount)
			require.ErrorIs(t, err, tt.wantErr)

			assert.Equal(t, int64(100000), testutil.Balance(t, db, walletA.ID))
			assert.Equal(t, int64(0), testutil.Balance(t, db, walletB.ID))
			assert.Equal(t, 0, testutil.CountTransactions(t, db))
		})
	}
}

func TestTransfer_ConcurrentDebitsNeverOverdraw(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	alice, walletA := testutil.SeedUser(t, db, "a@example.com", 100000)
	_, walletB := testutil.SeedUser(t, db, "b@example.com", 0)

	const attempts = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Transfer(ctx, alice, walletB.AccountNumber, 20000)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, succeeded)
	assert.Equal(t, int64(0), testutil.Balance(t, db, walletA.ID))
	assert.Equal(t, int64(100000), testutil.Balance(t, db, walletB.ID))
	assert.Equal(t, 2*succeeded, testutil.CountTransactions(t, db))
}

func TestTransfer_OpposingTransfersConserveMoney(t *testing.T) {
	svc, db, _ := newTestService(t, nil)
	ctx := context.Background()

	alice, walletA := testutil.SeedUser(t, db, "a@example.com", 50000)
	bob, walletB := testutil.SeedUser(t, db, "b@example.com", 50000)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(ctx, alice, walletB.AccountNumber, 3000)
		}()
		go func() {
			defer wg.Done()
			_, _ = svc.Transfer(ctx, bob, walletA.AccountNumber, 2000)
		}()
	}
	wg.Wait()

	a := testutil.Balance(t, db, walletA.ID)
	b := testutil.Balance(t, db, walletB.ID)
	assert.Equal(t, int64(100000), a+b)
	assert.GreaterOrEqual(t, a, int64(0))
	assert.GreaterOrEqual(t, b, int64(0))

	var credits, debits int64
	require.NoError(t, db.Db.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE direction = 'credit' AND status = 'success'`).Scan(&credits))
	require.NoError(t, db.Db.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE direction = 'debit' AND status = 'success'`).Scan(&debits))
	assert.Equal(t, credits, debits)
}

func TestNewReference(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	ref := NewReference(at)
	assert.True(t, strings.HasPrefix(ref, "TRX-1700000000000-"))
	assert.NotEqual(t, ref, NewReference(at))
}
