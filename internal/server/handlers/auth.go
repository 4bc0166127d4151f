package handlers

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	authservice "github.com/tuncanbit/ledger/internal/application/auth"
	"github.com/tuncanbit/ledger/internal/infrastructure/identity"
	"github.com/tuncanbit/ledger/internal/server/middleware"
)

const (
	oauthStateCookie = "oauth_state"
	oauthStateMaxAge = 600
)

type AuthHandler struct {
	authSvc  authservice.IAuthService
	provider identity.Provider
	logger   zerolog.Logger
}

func NewAuthHandler(authSvc authservice.IAuthService, provider identity.Provider, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authSvc:  authSvc,
		provider: provider,
		logger:   logger,
	}
}

// GoogleLogin redirects the browser to the provider's consent screen.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		h.logger.Error().Err(err).Msg("Failed to generate oauth state")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error", "message": "Internal server error"})
		return
	}
	state := hex.EncodeToString(b)

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(oauthStateCookie, state, oauthStateMaxAge, "/auth/google", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthCodeURL(state))
}

func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	expected, err := c.Cookie(oauthStateCookie)
	state := c.Query("state")
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(expected), []byte(state)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth_error", "message": "Authentication failed"})
		return
	}
	c.SetCookie(oauthStateCookie, "", -1, "/auth/google", "", c.Request.TLS != nil, true)

	ext, err := h.provider.Exchange(c.Request.Context(), c.Query("code"))
	if err != nil {
		h.logger.Warn().Err(err).Msg("Google login failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth_error", "message": "Authentication failed"})
		return
	}

	token, user, err := h.authSvc.Login(c.Request.Context(), ext)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
	})
}
