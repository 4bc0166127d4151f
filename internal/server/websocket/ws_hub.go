package websocket

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/pkg/currency"
)

var currencyUtils = currency.NewCurrencyUtils()

const (
	MessageTypeBalance     = "balance"
	MessageTypeTransaction = "transaction"
)

// WsHub fans ledger events out to the websocket clients of the affected user.
// All client bookkeeping happens on the Run goroutine.
type WsHub struct {
	Clients    map[uuid.UUID]map[*WsClient]bool
	Broadcast  chan WsMessage
	Register   chan *WsClient
	Unregister chan *WsClient
	Logger     zerolog.Logger
}

type WsMessage struct {
	Type        string              `json:"type"`
	UserID      uuid.UUID           `json:"-"`
	Balance     *BalanceUpdate      `json:"balance,omitempty"`
	Transaction *domain.Transaction `json:"transaction,omitempty"`
}

type BalanceUpdate struct {
	WalletID      uuid.UUID `json:"wallet_id"`
	AccountNumber string    `json:"account_number"`
	Currency      string    `json:"currency"`
	BalanceMinor  int64     `json:"balance_minor"`
	Balance       string    `json:"balance"`
}

func NewWsHub(logger zerolog.Logger) *WsHub {
	return &WsHub{
		Clients:    make(map[uuid.UUID]map[*WsClient]bool),
		Broadcast:  make(chan WsMessage, 256),
		Register:   make(chan *WsClient, 100),
		Unregister: make(chan *WsClient, 100),
		Logger:     logger,
	}
}

func (h *WsHub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for userID, clients := range h.Clients {
				for client := range clients {
					client.close()
				}
				delete(h.Clients, userID)
			}
			h.Logger.Info().Msg("WebSocket hub stopped")
			return

		case client := <-h.Register:
			if h.Clients[client.UserID] == nil {
				h.Clients[client.UserID] = make(map[*WsClient]bool)
			}
			h.Clients[client.UserID][client] = true
			h.Logger.Info().
				Str("user_id", client.UserID.String()).
				Int("connection_count", len(h.Clients[client.UserID])).
				Msg("WebSocket client registered")

		case client := <-h.Unregister:
			if clients, ok := h.Clients[client.UserID]; ok {
				if clients[client] {
					delete(clients, client)
					client.close()
				}
				if len(clients) == 0 {
					delete(h.Clients, client.UserID)
				}
				h.Logger.Info().
					Str("user_id", client.UserID.String()).
					Int("connection_count", len(clients)).
					Msg("WebSocket client unregistered")
			}

		case message := <-h.Broadcast:
			clients, ok := h.Clients[message.UserID]
			if !ok {
				continue
			}
			for client := range clients {
				select {
				case client.send <- message:
				default:
					h.Logger.Warn().
						Str("user_id", message.UserID.String()).
						Str("type", message.Type).
						Msg("WebSocket client too slow, dropping connection")
					delete(clients, client)
					client.close()
				}
			}
			if len(clients) == 0 {
				delete(h.Clients, message.UserID)
			}
		}
	}
}

func (h *WsHub) publish(message WsMessage) {
	select {
	case h.Broadcast <- message:
	default:
		h.Logger.Warn().
			Str("user_id", message.UserID.String()).
			Str("type", message.Type).
			Msg("WebSocket broadcast queue full, dropping update")
	}
}

func (h *WsHub) NotifyBalance(userID uuid.UUID, wallet domain.Wallet) {
	h.publish(WsMessage{
		Type:   MessageTypeBalance,
		UserID: userID,
		Balance: &BalanceUpdate{
			WalletID:      wallet.ID,
			AccountNumber: wallet.AccountNumber,
			Currency:      wallet.Currency,
			BalanceMinor:  wallet.BalanceMinor,
			Balance:       currencyUtils.ToMajorUnits(wallet.BalanceMinor).StringFixed(2),
		},
	})
}

func (h *WsHub) NotifyTransaction(userID uuid.UUID, txn domain.Transaction) {
	h.publish(WsMessage{
		Type:        MessageTypeTransaction,
		UserID:      userID,
		Transaction: &txn,
	})
}

var _ domain.Notifier = (*WsHub)(nil)
