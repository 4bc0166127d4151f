package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/tuncanbit/ledger/internal/domain"
)

// StatusFor maps an error's kind onto an HTTP status code.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindPermission:
		return http.StatusForbidden
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// AbortWithError writes the error body and stops the handler chain. Internal
// errors are logged and replaced by a generic message.
func AbortWithError(c *gin.Context, err error) {
	status := StatusFor(err)

	var de *domain.Error
	if status == http.StatusInternalServerError || !errors.As(err, &de) {
		log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error":   domain.ErrInternal.Code,
			"message": domain.ErrInternal.Message,
		})
		return
	}

	c.AbortWithStatusJSON(status, gin.H{
		"error":   de.Code,
		"message": de.Message,
	})
}
