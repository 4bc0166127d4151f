package websocket

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 512
)

// WsClient is one websocket connection belonging to a user.
type WsClient struct {
	UserID     uuid.UUID
	conn       *websocket.Conn
	send       chan WsMessage
	pingPeriod time.Duration
	closeOnce  sync.Once
	done       chan struct{}
}

func NewWsClient(userID uuid.UUID, conn *websocket.Conn, pingPeriod time.Duration) *WsClient {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &WsClient{
		UserID:     userID,
		conn:       conn,
		send:       make(chan WsMessage, 64),
		pingPeriod: pingPeriod,
		done:       make(chan struct{}),
	}
}

// Serve registers the client and blocks until the connection goes away.
func (c *WsClient) Serve(hub *WsHub) {
	hub.Register <- c
	go c.writePump()
	c.readPump()
	select {
	case hub.Unregister <- c:
	case <-c.done:
	}
	c.close()
}

func (c *WsClient) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump only services control frames; clients are not expected to send data.
func (c *WsClient) readPump() {
	pongWait := c.pingPeriod * 10 / 9
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", c.UserID.String()).Msg("Unexpected WebSocket close error")
			}
			return
		}
	}
}

func (c *WsClient) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(message); err != nil {
				log.Error().Err(err).Str("user_id", c.UserID.String()).Msg("Failed to send WebSocket message")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
