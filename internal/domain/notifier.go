package domain

import "github.com/google/uuid"

// Notifier receives ledger events after they commit. Implementations must not block.
type Notifier interface {
	NotifyBalance(userID uuid.UUID, wallet Wallet)
	NotifyTransaction(userID uuid.UUID, txn Transaction)
}

type NopNotifier struct{}

func (NopNotifier) NotifyBalance(uuid.UUID, Wallet) {}
func (NopNotifier) NotifyTransaction(uuid.UUID, Transaction) {}
