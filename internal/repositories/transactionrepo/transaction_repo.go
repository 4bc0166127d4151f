package transactionrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/tuncanbit/ledger/internal/domain"
)

type ITransactionRepository interface {
	CreateTx(ctx context.Context, tx *sql.Tx, txn domain.Transaction) error
	GetByReference(ctx context.Context, reference string) (domain.Transaction, error)
	GetByReferenceTx(ctx context.Context, tx *sql.Tx, reference string) (domain.Transaction, error)
	ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error)
	ListPendingDeposits(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error)
	// UpdateStatusTx moves a transaction from one status to another and
	// reports whether this call performed the move. A row that is no longer
	// in the from status is left alone.
	UpdateStatusTx(ctx context.Context, tx *sql.Tx, reference string, from, to domain.TransactionStatus, metadata json.RawMessage, at time.Time) (bool, error)
}
