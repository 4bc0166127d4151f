package walletrepo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
)

const walletColumns = `id, user_id, balance, currency, account_number, created_at, updated_at`

// ErrAccountNumberTaken is returned when a generated account number collides.
var ErrAccountNumberTaken = errors.New("account number already taken")

type walletRepository struct {
	db     *sql.DB
	logger zerolog.Logger
}

func New(db *database.DBManager, logger zerolog.Logger) IWalletRepository {
	return &walletRepository{
		db:     db.Db,
		logger: logger,
	}
}

func (r *walletRepository) CreateWalletTx(ctx context.Context, tx *sql.Tx, wallet domain.Wallet) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (id, user_id, balance, currency, account_number, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		wallet.ID, wallet.UserID, wallet.BalanceMinor, wallet.Currency,
		sql.NullString{String: wallet.AccountNumber, Valid: wallet.AccountNumber != ""},
		wallet.CreatedAt, wallet.UpdatedAt,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("failed to create wallet: %w: %v", ErrAccountNumberTaken, err)
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.Wallet, error) {
	return r.getOne(ctx, r.db, `WHERE id = $1`, id)
}

func (r *walletRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (domain.Wallet, error) {
	return r.getOne(ctx, tx, `WHERE id = $1`, id)
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uuid.UUID) (domain.Wallet, error) {
	return r.getOne(ctx, r.db, `WHERE user_id = $1`, userID)
}

func (r *walletRepository) GetByAccountNumber(ctx context.Context, accountNumber string) (domain.Wallet, error) {
	return r.getOne(ctx, r.db, `WHERE account_number = $1`, accountNumber)
}

func (r *walletRepository) getOne(ctx context.Context, q database.DBTX, where string, arg interface{}) (domain.Wallet, error) {
	row := q.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM wallets `+where, arg)
	wallet, err := scanWallet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Wallet{}, domain.ErrWalletNotFound
		}
		r.logger.Error().Err(err).Interface("key", arg).Msg("Failed to get wallet")
		return domain.Wallet{}, fmt.Errorf("failed to get wallet: %w", err)
	}
	return wallet, nil
}

func (r *walletRepository) DebitTx(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, amount int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance - $1, updated_at = $2
		WHERE id = $3 AND balance >= $1`,
		amount, at, walletID,
	)
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to debit wallet: %w", err)
	}
	if n == 0 {
		return domain.ErrInsufficientFunds
	}
	return nil
}

func (r *walletRepository) CreditTx(ctx context.Context, tx *sql.Tx, walletID uuid.UUID, amount int64, at time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets SET balance = balance + $1, updated_at = $2
		WHERE id = $3`,
		amount, at, walletID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to credit wallet: %w", err)
	}
	if n == 0 {
		return domain.ErrWalletNotFound
	}
	return nil
}

func (r *walletRepository) ListWithoutAccountNumber(ctx context.Context, limit int) ([]domain.Wallet, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+walletColumns+` FROM wallets
		WHERE account_number IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets without account number: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

func (r *walletRepository) AssignAccountNumber(ctx context.Context, walletID uuid.UUID, accountNumber string, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE wallets SET account_number = $1, updated_at = $2
		WHERE id = $3 AND account_number IS NULL`,
		accountNumber, at, walletID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrAccountNumberTaken
		}
		return fmt.Errorf("failed to assign account number: %w", err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWallet(s scanner) (domain.Wallet, error) {
	var (
		w             domain.Wallet
		accountNumber sql.NullString
	)
	if err := s.Scan(&w.ID, &w.UserID, &w.BalanceMinor, &w.Currency, &accountNumber, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return domain.Wallet{}, err
	}
	w.AccountNumber = accountNumber.String
	return w, nil
}
