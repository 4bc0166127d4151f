package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tuncanbit/ledger/internal/server/middleware"
	"github.com/tuncanbit/ledger/internal/server/websocket"
	"github.com/tuncanbit/ledger/pkg/config"
)

// WebSocketHandler streams balance and transaction updates to the caller.
type WebSocketHandler struct {
	hub      *websocket.WsHub
	upgrader gws.Upgrader
	cfg      config.WebSocketConfig
	logger   zerolog.Logger
}

func NewWebSocketHandler(hub *websocket.WsHub, cfg config.WebSocketConfig, logger zerolog.Logger) *WebSocketHandler {
	upgrader := gws.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
	}
	if !cfg.CheckOrigin {
		upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}

	return &WebSocketHandler{
		hub:      hub,
		upgrader: upgrader,
		cfg:      cfg,
		logger:   logger,
	}
}

func (h *WebSocketHandler) HandleConnection(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	client := websocket.NewWsClient(principal.User.ID, conn, h.cfg.PingPeriod)
	h.logger.Info().Str("user_id", principal.User.ID.String()).Msg("WebSocket client connected")

	client.Serve(h.hub)

	h.logger.Info().Str("user_id", principal.User.ID.String()).Msg("WebSocket client disconnected")
}
