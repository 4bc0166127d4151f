package walletservice

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/repositories/transactionrepo"
	"github.com/tuncanbit/ledger/internal/repositories/walletrepo"
)

const (
	backfillBatch     = 100
	maxAssignAttempts = 5
)

type walletService struct {
	walletRepo      walletrepo.IWalletRepository
	transactionRepo transactionrepo.ITransactionRepository
	logger          zerolog.Logger
}

func New(walletRepo walletrepo.IWalletRepository, transactionRepo transactionrepo.ITransactionRepository, logger zerolog.Logger) IWalletService {
	return &walletService{
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		logger:          logger,
	}
}

func (s *walletService) Balance(ctx context.Context, user domain.User) (domain.Wallet, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return domain.Wallet{}, domain.Internal(err)
	}
	return wallet, nil
}

func (s *walletService) History(ctx context.Context, user domain.User, limit, offset int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return nil, domain.Internal(err)
	}

	txns, err := s.transactionRepo.ListByWallet(ctx, wallet.ID, limit, offset)
	if err != nil {
		return nil, domain.Internal(err)
	}
	return txns, nil
}

func (s *walletService) BackfillAccountNumbers(ctx context.Context) (int, error) {
	assigned := 0
	for {
		wallets, err := s.walletRepo.ListWithoutAccountNumber(ctx, backfillBatch)
		if err != nil {
			return assigned, domain.Internal(err)
		}
		if len(wallets) == 0 {
			break
		}

		for _, wallet := range wallets {
			if err := s.assign(ctx, wallet); err != nil {
				return assigned, err
			}
			assigned++
		}
	}

	s.logger.Info().Int("assigned", assigned).Msg("Account number backfill complete")
	return assigned, nil
}

func (s *walletService) assign(ctx context.Context, wallet domain.Wallet) error {
	for attempt := 1; attempt <= maxAssignAttempts; attempt++ {
		accountNumber, err := domain.NewAccountNumber()
		if err != nil {
			return domain.Internal(err)
		}
		err = s.walletRepo.AssignAccountNumber(ctx, wallet.ID, accountNumber, time.Now().UTC())
		if err == nil {
			s.logger.Debug().Str("wallet_id", wallet.ID.String()).Str("account_number", accountNumber).Msg("Assigned account number")
			return nil
		}
		if !errors.Is(err, walletrepo.ErrAccountNumberTaken) {
			return domain.Internal(err)
		}
	}
	return domain.ErrInternal.WithMessage("Could not find a free account number for wallet %s", wallet.ID)
}
