package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	apikeyservice "github.com/tuncanbit/ledger/internal/application/apikeys"
	"github.com/tuncanbit/ledger/internal/domain"
	"github.com/tuncanbit/ledger/internal/server/middleware"
)

type APIKeyHandler struct {
	apiKeySvc apikeyservice.IAPIKeyService
	logger    zerolog.Logger
}

type createKeyRequest struct {
	Name        string   `json:"name"`
	Permissions []string `json:"permissions"`
	Expiry      string   `json:"expiry"`
}

type rolloverKeyRequest struct {
	ExpiredKeyID string `json:"expired_key_id" binding:"required"`
	Expiry       string `json:"expiry"`
}

func NewAPIKeyHandler(apiKeySvc apikeyservice.IAPIKeyService, logger zerolog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		apiKeySvc: apiKeySvc,
		logger:    logger,
	}
}

func (h *APIKeyHandler) Create(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var req createKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, domain.ErrInvalidRequest.WithMessage("%s", err.Error()))
		return
	}

	issued, err := h.apiKeySvc.Issue(c.Request.Context(), principal, req.Name, req.Permissions, req.Expiry)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, issued)
}

func (h *APIKeyHandler) Rollover(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	var req rolloverKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, domain.ErrInvalidRequest.WithMessage("%s", err.Error()))
		return
	}
	keyID, err := uuid.Parse(req.ExpiredKeyID)
	if err != nil {
		middleware.AbortWithError(c, domain.ErrKeyNotFound)
		return
	}

	issued, err := h.apiKeySvc.Rollover(c.Request.Context(), principal, keyID, req.Expiry)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, issued)
}

func (h *APIKeyHandler) List(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	keys, err := h.apiKeySvc.List(c.Request.Context(), principal.User)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, keys)
}

func (h *APIKeyHandler) Revoke(c *gin.Context) {
	principal, _ := middleware.PrincipalFrom(c)

	keyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		middleware.AbortWithError(c, domain.ErrKeyNotFound)
		return
	}

	if err := h.apiKeySvc.Revoke(c.Request.Context(), principal.User, keyID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "API key revoked"})
}
