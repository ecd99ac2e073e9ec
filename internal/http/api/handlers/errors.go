package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/igifu/campus-meals/internal/accounts"
	"github.com/igifu/campus-meals/internal/ledger"
	log "github.com/sirupsen/logrus"
)

// writeError maps ledger and account errors onto HTTP responses.
// Unclassified failures are logged and reported with fallback.
func writeError(c *gin.Context, err error, fallback string) {
	switch {
	case ledger.IsValidation(err), errors.Is(err, accounts.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case ledger.IsNotFound(err), errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInsufficientCapacity), errors.Is(err, ledger.ErrInsufficientBalance):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidState), errors.Is(err, accounts.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case ledger.IsRetryable(err):
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "concurrent update, please retry"})
	default:
		log.WithError(err).WithField("path", c.FullPath()).Error(fallback)
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
