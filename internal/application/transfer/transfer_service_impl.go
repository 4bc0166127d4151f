package transferservice

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/internal/repositories/transactionrepo"
	"github.com/tuncanbit/ledger/internal/repositories/walletrepo"
)

type transferService struct {
	db              *database.DBManager
	walletRepo      walletrepo.IWalletRepository
	transactionRepo transactionrepo.ITransactionRepository
	notifier        domain.Notifier
	logger          zerolog.Logger
	now             func() time.Time
}

func New(
	db *database.DBManager,
	walletRepo walletrepo.IWalletRepository,
	transactionRepo transactionrepo.ITransactionRepository,
	notifier domain.Notifier,
	logger zerolog.Logger,
) ITransferService {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	return &transferService{
		db:              db,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		notifier:        notifier,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *transferService) Transfer(ctx context.Context, sender domain.User, recipientAccountNumber string, amount int64) (Result, error) {
	if amount <= 0 {
		return Result{}, domain.ErrInvalidAmount.WithMessage("Amount must be greater than zero")
	}

	from, err := s.walletRepo.GetByUserID(ctx, sender.ID)
	if err != nil {
		if errors.Is(err, domain.ErrWalletNotFound) {
			return Result{}, domain.ErrSenderWalletNotFound
		}
		return Result{}, domain.Internal(err)
	}

	to, err := s.walletRepo.GetByAccountNumber(ctx, strings.TrimSpace(recipientAccountNumber))
	if err != nil {
		if errors.Is(err, domain.ErrWalletNotFound) {
			return Result{}, domain.ErrRecipientWalletNotFound
		}
		return Result{}, domain.Internal(err)
	}

	if from.ID == to.ID {
		return Result{}, domain.ErrSelfTransfer
	}

	// Early rejection only; the debit below re-checks inside the unit.
	if from.BalanceMinor < amount {
		return Result{}, domain.ErrInsufficientFunds
	}

	now := s.now()
	reference := NewReference(now)
	debit := domain.Transaction{
		ID:                   uuid.New(),
		WalletID:             from.ID,
		Type:                 domain.TypeTransfer,
		AmountMinor:          amount,
		Reference:            reference,
		Status:               domain.StatusSuccess,
		Direction:            domain.DirectionDebit,
		CounterpartyWalletID: uuid.NullUUID{UUID: to.ID, Valid: true},
		Description:          fmt.Sprintf("Transfer to %s", to.AccountNumber),
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	credit := domain.Transaction{
		ID:                   uuid.New(),
		WalletID:             to.ID,
		Type:                 domain.TypeTransfer,
		AmountMinor:          amount,
		Reference:            reference + domain.CreditLegSuffix,
		Status:               domain.StatusSuccess,
		Direction:            domain.DirectionCredit,
		CounterpartyWalletID: uuid.NullUUID{UUID: from.ID, Valid: true},
		Description:          fmt.Sprintf("Transfer from %s", from.AccountNumber),
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		// Lock wallet rows in a fixed order so opposing transfers cannot deadlock.
		if bytes.Compare(from.ID[:], to.ID[:]) < 0 {
			if err := s.walletRepo.DebitTx(ctx, tx, from.ID, amount, now); err != nil {
				return err
			}
			if err := s.walletRepo.CreditTx(ctx, tx, to.ID, amount, now); err != nil {
				return err
			}
		} else {
			if err := s.walletRepo.CreditTx(ctx, tx, to.ID, amount, now); err != nil {
				return err
			}
			if err := s.walletRepo.DebitTx(ctx, tx, from.ID, amount, now); err != nil {
				return err
			}
		}

		if err := s.transactionRepo.CreateTx(ctx, tx, debit); err != nil {
			return err
		}
		return s.transactionRepo.CreateTx(ctx, tx, credit)
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientFunds) {
			s.logger.Info().
				Str("wallet_id", from.ID.String()).
				Int64("amount", amount).
				Msg("Transfer rejected, insufficient funds")
			return Result{}, domain.ErrInsufficientFunds
		}
		s.logger.Error().Err(err).
			Str("reference", reference).
			Str("from_wallet", from.ID.String()).
			Str("to_wallet", to.ID.String()).
			Msg("Transfer failed")
		return Result{}, domain.Internal(err)
	}

	s.logger.Info().
		Str("reference", reference).
		Str("from_wallet", from.ID.String()).
		Str("to_wallet", to.ID.String()).
		Int64("amount", amount).
		Msg("Transfer completed")

	senderWallet := s.publish(ctx, sender.ID, from.ID, debit)
	s.publish(ctx, to.UserID, to.ID, credit)

	return Result{
		Reference:    reference,
		AmountMinor:  amount,
		SenderWallet: senderWallet,
		Debit:        debit,
		Credit:       credit,
	}, nil
}

// publish pushes the committed leg and fresh balance to the wallet owner.
func (s *transferService) publish(ctx context.Context, userID, walletID uuid.UUID, leg domain.Transaction) domain.Wallet {
	s.notifier.NotifyTransaction(userID, leg)
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		s.logger.Warn().Err(err).Str("wallet_id", walletID.String()).Msg("Failed to reload wallet after transfer")
		return domain.Wallet{}
	}
	s.notifier.NotifyBalance(userID, wallet)
	return wallet
}

// NewReference builds the base reference shared by both legs of a transfer.
func NewReference(at time.Time) string {
	return fmt.Sprintf("TRX-%d-%s", at.UnixMilli(), uuid.NewString()[:8])
}
