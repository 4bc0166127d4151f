package walletrepo

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/tuncanbit/ledger/internal/domain"
)

type IWalletRepository interface {
	CreateWalletTx(ctx context.Context, tx *sql.Tx, wallet domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Wallet, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Wallet, error)
	GetByAccountNumber(ctx context.Context, accountNumber string) (domain.Wallet, error)
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (domain.Wallet, error)
	// DebitTx lowers the balance only if it covers amount; otherwise it
	// returns domain.ErrInsufficientFunds and changes nothing.
	DebitTx(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, amount int64, at time.Time) error
	CreditTx(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, amount int64, at time.Time) error
	ListWithoutAccountNumber(ctx context.Context, limit int) ([]domain.Wallet, error)
	AssignAccountNumber(ctx context.Context, walletID uuid.UUID, accountNumber string, at time.Time) error
}
