package transactionrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sqlc-dev/pqtype"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
)

const transactionColumns = `id, wallet_id, type, amount, reference, status, direction,
	counterparty_wallet_id, description, metadata, created_at, updated_at`

type transactionRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) ITransactionRepository {
	return &transactionRepository{
		db:     db.Db,
		logger: logger,
	}
}

func (r *transactionRepository) CreateTx(ctx context.Context, tx *sql.Tx, txn domain.Transaction) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (`+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		txn.ID,
		txn.WalletID,
		string(txn.Type),
		txn.AmountMinor,
		txn.Reference,
		string(txn.Status),
		string(txn.Direction),
		txn.CounterpartyWalletID,
		txn.Description,
		nullRaw(txn.Metadata),
		txn.CreatedAt,
		txn.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return domain.ErrDuplicateReference.Wrap(err)
		}
		r.logger.Error().Err(err).Str("reference", txn.Reference).Msg("Failed to create transaction")
		return fmt.Errorf("failed to create transaction: %w", err)
	}
	return nil
}

func (r *transactionRepository) GetByReference(ctx context.Context, reference string) (domain.Transaction, error) {
	return r.getByReference(ctx, r.db, reference)
}

func (r *transactionRepository) GetByReferenceTx(ctx context.Context, tx *sql.Tx, reference string) (domain.Transaction, error) {
	return r.getByReference(ctx, tx, reference)
}

func (r *transactionRepository) getByReference(ctx context.Context, q database.DBTX, reference string) (domain.Transaction, error) {
	row := q.QueryRowContext(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE reference = $1`, reference)
	txn, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Transaction{}, domain.ErrTransactionNotFound
		}
		r.logger.Error().Err(err).Str("reference", reference).Msg("Failed to get transaction by reference")
		return domain.Transaction{}, fmt.Errorf("failed to get transaction by reference: %w", err)
	}
	return txn, nil
}

func (r *transactionRepository) ListByWallet(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE wallet_id = $1
		ORDER BY created_at DESC, reference DESC
		LIMIT $2 OFFSET $3`,
		walletID, limit, offset,
	)
	if err != nil {
		r.logger.Error().Err(err).Str("wallet_id", walletID.String()).Msg("Failed to list transactions")
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	return collect(rows)
}

func (r *transactionRepository) ListPendingDeposits(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE status = $1 AND type = $2 AND created_at < $3
		ORDER BY created_at
		LIMIT $4`,
		string(domain.StatusPending), string(domain.TypeDeposit), createdBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending deposits: %w", err)
	}
	return collect(rows)
}

func (r *transactionRepository) UpdateStatusTx(ctx context.Context, tx *sql.Tx, reference string, from, to domain.TransactionStatus, metadata json.RawMessage, at time.Time) (bool, error) {
	var (
		res sql.Result
		err error
	)
	if metadata != nil {
		res, err = tx.ExecContext(ctx, `
			UPDATE transactions SET status = $1, metadata = $2, updated_at = $3
			WHERE reference = $4 AND status = $5`,
			string(to), nullRaw(metadata), at, reference, string(from),
		)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE transactions SET status = $1, updated_at = $2
			WHERE reference = $3 AND status = $4`,
			string(to), at, reference, string(from),
		)
	}
	if err != nil {
		r.logger.Error().Err(err).Str("reference", reference).Msg("Failed to update transaction status")
		return false, fmt.Errorf("failed to update transaction status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %w", err)
	}
	return n == 1, nil
}

func nullRaw(m json.RawMessage) pqtype.NullRawMessage {
	return pqtype.NullRawMessage{RawMessage: m, Valid: len(m) > 0}
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(s scanner) (domain.Transaction, error) {
	var (
		t         domain.Transaction
		txType    string
		status    string
		direction string
		metadata  pqtype.NullRawMessage
	)
	err := s.Scan(
		&t.ID,
		&t.WalletID,
		&txType,
		&t.AmountMinor,
		&t.Reference,
		&status,
		&direction,
		&t.CounterpartyWalletID,
		&t.Description,
		&metadata,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return domain.Transaction{}, err
	}
	t.Type = domain.TransactionType(txType)
	t.Status = domain.TransactionStatus(status)
	t.Direction = domain.Direction(direction)
	if metadata.Valid {
		t.Metadata = json.RawMessage(metadata.RawMessage)
	}
	return t, nil
}

func collect(rows *sql.Rows) ([]domain.Transaction, error) {
	defer rows.Close()
	txns := make([]domain.Transaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}
	return txns, nil
}
