package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	depositservice "github.com/tuncanbit/ledger/internal/application/deposit"
	transferservice "github.com/tuncanbit/ledger/internal/application/transfer"
	walletservice "github.com/tuncanbit/ledger/internal/application/wallet"
	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/server/middleware"
	"github.com/tuncanbit/ledger/pkg/currency"
)

type WalletHandler struct {
	walletSvc     walletservice.IWalletService
	transferSvc   transferservice.ITransferService
	depositSvc    depositservice.IDepositService
	currencyUtils *currency.CurrencyUtils
	logger        zerolog.Logger
}

type depositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type transferRequest struct {
	WalletNumber string          `json:"wallet_number" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
}

type transactionView struct {
	ID                   uuid.UUID                `json:"id"`
	Reference            string                   `json:"reference"`
	Type                 domain.TransactionType   `json:"type"`
	Status               domain.TransactionStatus `json:"status"`
	Direction            domain.Direction         `json:"direction"`
	Amount               string                   `json:"amount"`
	AmountMinor          int64                    `json:"amount_minor"`
	CounterpartyWalletID *uuid.UUID               `json:"counterparty_wallet_id,omitempty"`
	Description          string                   `json:"description,omitempty"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
}

func NewWalletHandler(
	walletSvc walletservice.IWalletService,
	transferSvc transferservice.ITransferService,
	depositSvc depositservice.IDepositService,
	logger zerolog.Logger,
) *WalletHandler {
	return &WalletHandler{
		walletSvc:     walletSvc,
		transferSvc:   transferSvc,
		depositSvc:    depositSvc,
		currencyUtils: currency.NewCurrencyUtils(),
		logger:        logger,
	}
}

func (h *WalletHandler) Balance(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	wallet, err := h.walletSvc.Balance(c.Request.Context(), principal.User)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":        h.major(wallet.BalanceMinor),
		"balance_minor":  wallet.BalanceMinor,
		"display":        h.currencyUtils.Format(wallet.BalanceMinor, wallet.Currency),
		"currency":       wallet.Currency,
		"account_number": wallet.AccountNumber,
	})
}

func (h *WalletHandler) Transactions(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))

	txns, err := h.walletSvc.History(c.Request.Context(), principal.User, limit, offset)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	views := make([]transactionView, 0, len(txns))
	for _, t := range txns {
		views = append(views, h.view(t))
	}
	c.JSON(http.StatusOK, views)
}

func (h *WalletHandler) Deposit(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var req depositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, domain.ErrInvalidRequest.WithMessage("%s", err.Error()))
		return
	}
	amount, err := h.toMinor(req.Amount)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	initiated, err := h.depositSvc.Initiate(c.Request.Context(), principal.User, amount)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference":         initiated.Reference,
		"authorization_url": initiated.AuthorizationURL,
	})
}

func (h *WalletHandler) DepositStatus(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	txn, err := h.depositSvc.Status(c.Request.Context(), principal.User, c.Param("reference"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"reference":    txn.Reference,
		"status":       txn.Status,
		"amount":       h.major(txn.AmountMinor),
		"amount_minor": txn.AmountMinor,
	})
}

func (h *WalletHandler) Transfer(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, domain.ErrInvalidRequest.WithMessage("%s", err.Error()))
		return
	}
	amount, err := h.toMinor(req.Amount)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	result, err := h.transferSvc.Transfer(c.Request.Context(), principal.User, req.WalletNumber, amount)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"message":   "Transfer completed",
		"reference": result.Reference,
		"balance":   h.major(result.SenderWallet.BalanceMinor),
	})
}

func (h *WalletHandler) toMinor(amount decimal.Decimal) (int64, error) {
	minor, err := h.currencyUtils.ToMinorUnits(amount)
	if err != nil {
		switch {
		case errors.Is(err, currency.ErrTooPrecise):
			return 0, domain.ErrInvalidAmount.WithMessage("Amount cannot have more than two decimal places")
		case errors.Is(err, currency.ErrOutOfRange):
			return 0, domain.ErrInvalidAmount.WithMessage("Amount is too large")
		default:
			return 0, domain.ErrInvalidAmount.WithMessage("Amount must be greater than zero")
		}
	}
	return minor, nil
}

func (h *WalletHandler) major(minor int64) string {
	return h.currencyUtils.ToMajorUnits(minor).StringFixed(currency.MinorUnitExponent)
}

func (h *WalletHandler) view(t domain.Transaction) transactionView {
	v := transactionView{
		ID:          t.ID,
		Reference:   t.Reference,
		Type:        t.Type,
		Status:      t.Status,
		Direction:   t.Direction,
		Amount:      h.major(t.AmountMinor),
		AmountMinor: t.AmountMinor,
		Description: t.Description,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.CounterpartyWalletID.Valid {
		id := t.CounterpartyWalletID.UUID
		v.CounterpartyWalletID = &id
	}
	return v
}
