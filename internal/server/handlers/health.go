package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tuncanbit/ledger/internal/infrastructure/database"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db *database.DBManager
}

func NewHealthHandler(db *database.DBManager) *HealthHandler {
	return &HealthHandler{db: db}
}

// Health returns basic liveness status
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "ledger",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC(),
	})
}

// Ready reports whether the database answers.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.db == nil || h.db.Db.PingContext(ctx) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "unavailable",
			"service": "ledger",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"service":   "ledger",
		"version":   "1.0.0",
		"timestamp": time.Now().UTC(),
	})
}
