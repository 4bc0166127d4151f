package walletservice

import (
	"context"

	"github.com/tuncanbit/ledger/internal/domain"
)

const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

type IWalletService interface {
	Balance(ctx context.Context, user domain.User) (domain.Wallet, error)
	// History lists the user's transactions newest first.
	History(ctx context.Context, user domain.User, limit, offset int) ([]domain.Transaction, error)
	// BackfillAccountNumbers gives every wallet without an account number a
	// fresh one and returns how many were assigned.
	BackfillAccountNumbers(ctx context.Context) (int, error)
}
