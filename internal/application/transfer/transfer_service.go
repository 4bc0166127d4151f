package transferservice

import (
	"context"

	"github.com/tuncanbit/ledger/internal/domain"
)

type Result struct {
	Reference    string             `json:"reference"`
	AmountMinor  int64              `json:"amount_minor"`
	SenderWallet domain.Wallet      `json:"sender_wallet"`
	Debit        domain.Transaction `json:"debit"`
	Credit       domain.Transaction `json:"credit"`
}

type ITransferService interface {
	// Transfer moves amount minor units from the sender's wallet to the wallet
	// holding recipientAccountNumber. Both balance changes and both ledger
	// legs commit together or not at all.
	Transfer(ctx context.Context, sender domain.User, recipientAccountNumber string, amount int64) (Result, error)
}
