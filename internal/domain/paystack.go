package domain

import (
	"encoding/json"
	"time"
)

type PaystackWebhookEventType string

const (
	PaystackEventChargeSuccess PaystackWebhookEventType = "charge.success"
)

// PaystackWebhookRequest is the signed body the gateway posts to the webhook.
type PaystackWebhookRequest struct {
	Event PaystackWebhookEventType `json:"event"`
	Data  json.RawMessage          `json:"data"`
}

// GatewayCharge is the gateway's view of one charge, from a webhook or a verify call.
type GatewayCharge struct {
	Reference   string     `json:"reference"`
	AmountMinor int64      `json:"amount"`
	Status      string     `json:"status"`
	Currency    string     `json:"currency,omitempty"`
	Channel     string     `json:"channel,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

const (
	GatewayStatusSuccess   = "success"
	GatewayStatusFailed    = "failed"
	GatewayStatusAbandoned = "abandoned"
)
