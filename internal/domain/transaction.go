package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TransactionType string
type TransactionStatus string
type Direction string

const (
	TypeDeposit  TransactionType = "deposit"
	TypeTransfer TransactionType = "transfer"
)

const (
	StatusPending TransactionStatus = "pending"
	StatusSuccess TransactionStatus = "success"
	StatusFailed  TransactionStatus = "failed"
)

const (
	DirectionCredit Direction = "credit"
	DirectionDebit  Direction = "debit"
)

// CreditLegSuffix distinguishes the credit leg of a transfer from its debit leg.
const CreditLegSuffix = "-CREDIT"

type Transaction struct {
	ID                   uuid.UUID         `json:"id"`
	WalletID             uuid.UUID         `json:"wallet_id"`
	Type                 TransactionType   `json:"type"`
	AmountMinor          int64             `json:"amount_minor"`
	Reference            string            `json:"reference"`
	Status               TransactionStatus `json:"status"`
	Direction            Direction         `json:"direction"`
	CounterpartyWalletID uuid.NullUUID     `json:"counterparty_wallet_id"`
	Description          string            `json:"description,omitempty"`
	Metadata             json.RawMessage   `json:"metadata,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}
