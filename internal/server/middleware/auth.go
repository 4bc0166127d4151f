package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tuncanbit/ledger/internal/domain"
)

const principalKey = "principal"

// Authenticate resolves the caller from the Authorization bearer token, the
// X-API-Key header or, for websocket upgrades, the token query parameter.
func (m *Middleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		creds, err := credentialsFrom(c)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		principal, err := m.AuthSvc.Authenticate(c.Request.Context(), creds)
		if err != nil {
			m.logger.Debug().Err(err).Str("path", c.Request.URL.Path).Msg("Authentication failed")
			AbortWithError(c, err)
			return
		}

		c.Set(principalKey, principal)
		c.Set("user_id", principal.User.ID.String())
		c.Next()
	}
}

// RequirePermission rejects callers whose principal lacks permission.
func (m *Middleware) RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, ok := PrincipalFrom(c)
		if !ok {
			AbortWithError(c, domain.ErrMissingCredential)
			return
		}
		if err := m.AuthSvc.Authorize(principal, permission); err != nil {
			m.logger.Info().
				Str("user_id", principal.User.ID.String()).
				Str("permission", permission).
				Msg("Permission denied")
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func PrincipalFrom(c *gin.Context) (domain.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return domain.Principal{}, false
	}
	principal, ok := v.(domain.Principal)
	return principal, ok
}

func credentialsFrom(c *gin.Context) (domain.Credentials, error) {
	var creds domain.Credentials

	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			return creds, domain.ErrInvalidToken.WithMessage("Invalid Authorization header format, expected 'Bearer <token>'")
		}
		creds.BearerToken = strings.TrimSpace(token)
	}
	creds.APIKey = strings.TrimSpace(c.GetHeader("X-API-Key"))

	if creds.BearerToken == "" && creds.APIKey == "" {
		creds.BearerToken = c.Query("token")
	}
	return creds, nil
}
