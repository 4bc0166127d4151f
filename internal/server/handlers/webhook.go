package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	depositservice "github.com/tuncanbit/ledger/internal/application/deposit"
	"github.com/tuncanbit/ledger/internal/domain"
)

const (
	paystackSignatureHeader = "X-Paystack-Signature"
	maxWebhookBodyBytes     = 1 << 20
)

type WebhookHandler struct {
	depositSvc depositservice.IDepositService
	logger     zerolog.Logger
}

func NewWebhookHandler(depositSvc depositservice.IDepositService, logger zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		depositSvc: depositSvc,
		logger:     logger,
	}
}

// HandlePaystackWebhook answers 200 for anything it has taken responsibility
// for, 401 for a bad signature, 413 for an oversized body and 500 when the
// gateway should retry.
func (h *WebhookHandler) HandlePaystackWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.logger.Warn().Int64("limit", tooLarge.Limit).Msg("Webhook body too large")
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Error().Err(err).Msg("Failed to read webhook body")
		c.Status(http.StatusInternalServerError)
		return
	}

	err = h.depositSvc.Reconcile(c.Request.Context(), c.GetHeader(paystackSignatureHeader), body)
	switch {
	case err == nil:
		c.Status(http.StatusOK)
	case errors.Is(err, domain.ErrInvalidSignature):
		c.Status(http.StatusUnauthorized)
	default:
		h.logger.Error().Err(err).Msg("Webhook processing failed")
		c.Status(http.StatusInternalServerError)
	}
}
