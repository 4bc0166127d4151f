package depositservice

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/internal/repositories/transactionrepo"
	"github.com/tuncanbit/ledger/internal/repositories/walletrepo"
	"github.com/tuncanbit/ledger/pkg/config"
)

type settleOutcome int

const (
	outcomeIgnored settleOutcome = iota
	outcomeCredited
	outcomeHeld
)

type depositService struct {
	db              *database.DBManager
	walletRepo      walletrepo.IWalletRepository
	transactionRepo transactionrepo.ITransactionRepository
	gateway         Gateway
	secret          []byte
	gatewayTimeout  time.Duration
	reconciler      config.ReconcilerConfig
	notifier        domain.Notifier
	logger          zerolog.Logger
	now             func() time.Time
}

func New(
	db *database.DBManager,
	walletRepo walletrepo.IWalletRepository,
	transactionRepo transactionrepo.ITransactionRepository,
	gateway Gateway,
	paystackCfg config.PaystackConfig,
	reconcilerCfg config.ReconcilerConfig,
	notifier domain.Notifier,
	logger zerolog.Logger,
) IDepositService {
	if notifier == nil {
		notifier = domain.NopNotifier{}
	}
	timeout := paystackCfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &depositService{
		db:              db,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		gateway:         gateway,
		secret:          []byte(paystackCfg.SecretKey),
		gatewayTimeout:  timeout,
		reconciler:      reconcilerCfg,
		notifier:        notifier,
		logger:          logger,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *depositService) Initiate(ctx context.Context, user domain.User, amount int64) (Initiated, error) {
	if amount <= 0 {
		return Initiated{}, domain.ErrInvalidAmount.WithMessage("Amount must be greater than zero")
	}

	wallet, err := s.walletRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return Initiated{}, domain.Internal(err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.gatewayTimeout)
	defer cancel()

	reference, authorizationURL, err := s.gateway.Initialize(gwCtx, amount, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Str("user_id", user.ID.String()).Int64("amount", amount).Msg("Failed to initialize payment")
		return Initiated{}, domain.ErrPaymentInitFailed.Wrap(err)
	}

	now := s.now()
	txn := domain.Transaction{
		ID:          uuid.New(),
		WalletID:    wallet.ID,
		Type:        domain.TypeDeposit,
		AmountMinor: amount,
		Reference:   reference,
		Status:      domain.StatusPending,
		Direction:   domain.DirectionCredit,
		Description: "Wallet funding (Paystack)",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.db.WithTx(ctx, func(tx *sql.Tx) error {
		return s.transactionRepo.CreateTx(ctx, tx, txn)
	})
	if err != nil {
		s.logger.Error().Err(err).Str("reference", reference).Msg("Failed to record pending deposit")
		return Initiated{}, domain.Internal(err)
	}

	s.logger.Info().
		Str("reference", reference).
		Str("wallet_id", wallet.ID.String()).
		Int64("amount", amount).
		Msg("Deposit initiated")
	s.notifier.NotifyTransaction(user.ID, txn)

	return Initiated{Reference: reference, AuthorizationURL: authorizationURL, AmountMinor: amount}, nil
}

func (s *depositService) Reconcile(ctx context.Context, signature string, body []byte) error {
	if !s.validSignature(signature, body) {
		s.logger.Warn().Msg("Rejected webhook with invalid signature")
		return domain.ErrInvalidSignature
	}

	var event domain.PaystackWebhookRequest
	if err := json.Unmarshal(body, &event); err != nil {
		s.logger.Warn().Err(err).Msg("Ignoring unparseable webhook body")
		return nil
	}
	if event.Event != domain.PaystackEventChargeSuccess {
		s.logger.Debug().Str("event", string(event.Event)).Msg("Ignoring webhook event")
		return nil
	}

	var charge domain.GatewayCharge
	if err := json.Unmarshal(event.Data, &charge); err != nil || charge.Reference == "" {
		s.logger.Warn().Err(err).Msg("Ignoring charge.success webhook without usable data")
		return nil
	}

	_, err := s.settle(ctx, charge, event.Data)
	return err
}

func (s *depositService) Status(ctx context.Context, user domain.User, reference string) (domain.Transaction, error) {
	wallet, err := s.walletRepo.GetByUserID(ctx, user.ID)
	if err != nil {
		return domain.Transaction{}, domain.Internal(err)
	}

	txn, err := s.transactionRepo.GetByReference(ctx, reference)
	if err != nil {
		return domain.Transaction{}, domain.Internal(err)
	}
	if txn.WalletID != wallet.ID || txn.Type != domain.TypeDeposit {
		return domain.Transaction{}, domain.ErrTransactionNotFound
	}
	return txn, nil
}

func (s *depositService) validSignature(signature string, body []byte) bool {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) == 0 {
		return false
	}
	mac := hmac.New(sha512.New, s.secret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// settle applies a successful charge to its pending deposit. The pending
// check, the status flip and the credit share one atomic unit, so repeated or
// concurrent deliveries credit the wallet exactly once.
func (s *depositService) settle(ctx context.Context, charge domain.GatewayCharge, metadata json.RawMessage) (settleOutcome, error) {
	var (
		outcome settleOutcome
		txn     domain.Transaction
	)
	now := s.now()

	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		outcome = outcomeIgnored

		var err error
		txn, err = s.transactionRepo.GetByReferenceTx(ctx, tx, charge.Reference)
		if err != nil {
			if errors.Is(err, domain.ErrTransactionNotFound) {
				s.logger.Warn().Str("reference", charge.Reference).Msg("Charge for unknown reference")
				return nil
			}
			return err
		}
		if txn.Type != domain.TypeDeposit || txn.Status != domain.StatusPending {
			return nil
		}

		if charge.AmountMinor != txn.AmountMinor {
			// The deposit stays pending with the offending charge recorded, so an
			// operator can inspect it and a correct charge can still settle it.
			s.logger.Error().
				Str("reference", txn.Reference).
				Int64("expected", txn.AmountMinor).
				Int64("charged", charge.AmountMinor).
				Msg("Charge amount does not match deposit, holding for review")
			if _, err := s.transactionRepo.UpdateStatusTx(ctx, tx, txn.Reference, domain.StatusPending, domain.StatusPending, metadata, now); err != nil {
				return err
			}
			outcome = outcomeHeld
			return nil
		}

		moved, err := s.transactionRepo.UpdateStatusTx(ctx, tx, txn.Reference, domain.StatusPending, domain.StatusSuccess, metadata, now)
		if err != nil {
			return err
		}
		if !moved {
			return nil
		}
		if err := s.walletRepo.CreditTx(ctx, tx, txn.WalletID, txn.AmountMinor, now); err != nil {
			return err
		}
		outcome = outcomeCredited
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Str("reference", charge.Reference).Msg("Failed to settle deposit")
		return outcomeIgnored, domain.Internal(err)
	}

	switch outcome {
	case outcomeCredited:
		txn.Status = domain.StatusSuccess
		s.logger.Info().
			Str("reference", txn.Reference).
			Str("wallet_id", txn.WalletID.String()).
			Int64("amount", txn.AmountMinor).
			Msg("Deposit credited")
		s.publish(ctx, txn, now)
	}
	return outcome, nil
}

// markFailed closes out a pending deposit the gateway reports as unpaid.
func (s *depositService) markFailed(ctx context.Context, txn domain.Transaction, metadata json.RawMessage) error {
	now := s.now()
	var moved bool
	err := s.db.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		moved, err = s.transactionRepo.UpdateStatusTx(ctx, tx, txn.Reference, domain.StatusPending, domain.StatusFailed, metadata, now)
		return err
	})
	if err != nil {
		return domain.Internal(err)
	}
	if moved {
		txn.Status = domain.StatusFailed
		s.logger.Info().Str("reference", txn.Reference).Msg("Deposit marked failed")
		s.publish(ctx, txn, now)
	}
	return nil
}

func (s *depositService) publish(ctx context.Context, txn domain.Transaction, at time.Time) {
	wallet, err := s.walletRepo.GetByID(ctx, txn.WalletID)
	if err != nil {
		s.logger.Warn().Err(err).Str("wallet_id", txn.WalletID.String()).Msg("Failed to reload wallet after settlement")
		return
	}
	txn.UpdatedAt = at
	s.notifier.NotifyTransaction(wallet.UserID, txn)
	s.notifier.NotifyBalance(wallet.UserID, wallet)
}
