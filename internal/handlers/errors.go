package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/gin-gonic/gin"
)

// respondError maps err to a status code and writes the error body. Internal
// failures are logged with their cause and answered with the generic message.
func respondError(c *gin.Context, logger *slog.Logger, err error, internalMessage string) {
	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		logger.Error(internalMessage, slog.String("error", err.Error()))
		c.JSON(status, gin.H{"error": internalMessage})
		return
	}

	logger.Warn(internalMessage, slog.String("error", err.Error()), slog.Int("status", status))
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		c.JSON(status, gin.H{"error": appErr.Message})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// bindError answers a request whose body could not be bound.
func bindError(c *gin.Context, logger *slog.Logger, err error) {
	logger.Warn("Failed to bind request", slog.String("error", err.Error()))
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
}
