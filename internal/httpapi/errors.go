package httpapi

import (
	"errors"
	"net/http"

	"dialer-platform/internal/apperr"
	"dialer-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// writeError is the single place error kinds become status codes.
// Unknown errors are logged and reported as a generic 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperr.ErrConfirmationMismatch):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": apperr.Message(err),
			"code":  "confirmation_mismatch",
		})
	case errors.Is(err, apperr.ErrValidation):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err)})
	case errors.Is(err, apperr.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": apperr.Message(err)})
	case errors.Is(err, apperr.ErrForbidden):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": apperr.Message(err)})
	default:
		_ = c.Error(err)
		logger.FromGin(c).Error("dialer action failed", "action", c.Query("action"), "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": msg})
}
