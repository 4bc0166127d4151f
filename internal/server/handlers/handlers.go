package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	apikeyservice "github.com/tuncanbit/ledger/internal/application/apikeys"
	authservice "github.com/tuncanbit/ledger/internal/application/auth"
	depositservice "github.com/tuncanbit/ledger/internal/application/deposit"
	transferservice "github.com/tuncanbit/ledger/internal/application/transfer"
	walletservice "github.com/tuncanbit/ledger/internal/application/wallet"
	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/infrastructure/database"
	"github.com/tuncanbit/ledger/internal/infrastructure/identity"
	"github.com/tuncanbit/ledger/internal/server/middleware"
	"github.com/tuncanbit/ledger/internal/server/websocket"
	"github.com/tuncanbit/ledger/pkg/config"
)

type Handlers struct {
	AuthSvc     authservice.IAuthService
	APIKeySvc   apikeyservice.IAPIKeyService
	WalletSvc   walletservice.IWalletService
	TransferSvc transferservice.ITransferService
	DepositSvc  depositservice.IDepositService
	Identity    identity.Provider
	DB          *database.DBManager
	WsHub       *websocket.WsHub
	Middleware  *middleware.Middleware
	Logger      zerolog.Logger
	Config      *config.Config
}

func (h *Handlers) SetupHandlers(router *gin.Engine) {
	healthHandler := NewHealthHandler(h.DB)
	authHandler := NewAuthHandler(h.AuthSvc, h.Identity, h.Logger)
	apiKeyHandler := NewAPIKeyHandler(h.APIKeySvc, h.Logger)
	walletHandler := NewWalletHandler(h.WalletSvc, h.TransferSvc, h.DepositSvc, h.Logger)
	webhookHandler := NewWebhookHandler(h.DepositSvc, h.Logger)
	wsHandler := NewWebSocketHandler(h.WsHub, h.Config.WebSocket, h.Logger)

	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	auth := router.Group("/auth")
	{
		auth.GET("/google", authHandler.GoogleLogin)
		auth.GET("/google/callback", authHandler.GoogleCallback)
	}

	mw := h.Middleware

	keys := router.Group("/keys", mw.Authenticate(), mw.RequirePermission(domain.PermissionKeys))
	{
		keys.POST("/create", apiKeyHandler.Create)
		keys.POST("/rollover", apiKeyHandler.Rollover)
		keys.GET("", apiKeyHandler.List)
		keys.POST("/:id/revoke", apiKeyHandler.Revoke)
	}

	// The webhook is authenticated by its signature, not by a caller credential.
	router.POST("/wallet/paystack/webhook", webhookHandler.HandlePaystackWebhook)

	wallet := router.Group("/wallet", mw.Authenticate())
	{
		wallet.GET("/balance", mw.RequirePermission(domain.PermissionRead), walletHandler.Balance)
		wallet.GET("/transactions", mw.RequirePermission(domain.PermissionRead), walletHandler.Transactions)
		wallet.POST("/deposit", mw.RequirePermission(domain.PermissionDeposit), walletHandler.Deposit)
		wallet.GET("/deposit/:reference/status", mw.RequirePermission(domain.PermissionRead), walletHandler.DepositStatus)
		wallet.POST("/transfer", mw.RequirePermission(domain.PermissionTransfer), walletHandler.Transfer)
		wallet.GET("/stream", mw.RequirePermission(domain.PermissionRead), wsHandler.HandleConnection)
	}
}
