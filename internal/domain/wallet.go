package domain

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const DefaultCurrency = "NGN"

type Wallet struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	BalanceMinor  int64     `json:"balance_minor"`
	Currency      string    `json:"currency"`
	AccountNumber string    `json:"account_number,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// NewAccountNumber returns a random 10-digit account number that never starts with 0.
func NewAccountNumber() (string, error) {
	n, err := rand.Int(rand.Reader, accountNumberSpan)
	if err != nil {
		return "", fmt.Errorf("failed to generate account number: %w", err)
	}
	return n.Add(n, accountNumberBase).String(), nil
}

var (
	accountNumberBase = big.NewInt(1_000_000_000)
	accountNumberSpan = big.NewInt(9_000_000_000)
)
