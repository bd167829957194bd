package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/dto"
	"github.com/SscSPs/card_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

type spendLimitHandler struct {
	spendLimitService portssvc.SpendLimitConfigSvc
}

// RegisterSpendLimitRoutes registers spend limit configuration routes.
func RegisterSpendLimitRoutes(rg *gin.RouterGroup, spendLimitService portssvc.SpendLimitConfigSvc) {
	h := &spendLimitHandler{spendLimitService: spendLimitService}

	limits := rg.Group("/businesses/:id/spend-limits/:ownerType/:ownerID")
	{
		limits.GET("", h.getSpendLimit)
		limits.PUT("", h.putSpendLimit)
	}
}

// ownerParams reads the owner from the path; "card" and "CARD" are both accepted.
func ownerParams(c *gin.Context) (businessID string, ownerType domain.SpendLimitOwnerType, ownerID string) {
	return c.Param("id"), domain.SpendLimitOwnerType(strings.ToUpper(c.Param("ownerType"))), c.Param("ownerID")
}

func (h *spendLimitHandler) getSpendLimit(c *gin.Context) {
	businessID, ownerType, ownerID := ownerParams(c)
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(
		slog.String("business_id", businessID),
		slog.String("owner_type", string(ownerType)),
		slog.String("owner_id", ownerID),
	)

	config, err := h.spendLimitService.GetSpendLimit(c.Request.Context(), businessID, ownerType, ownerID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve spend limit")
		return
	}
	c.JSON(http.StatusOK, dto.ToSpendLimitResponse(config))
}

// putSpendLimit replaces the whole configuration of the owner.
func (h *spendLimitHandler) putSpendLimit(c *gin.Context) {
	businessID, ownerType, ownerID := ownerParams(c)
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(
		slog.String("business_id", businessID),
		slog.String("owner_type", string(ownerType)),
		slog.String("owner_id", ownerID),
	)

	var req dto.SpendLimitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}

	config, err := h.spendLimitService.UpsertSpendLimit(c.Request.Context(), req.ToDomain(businessID, ownerType, ownerID))
	if err != nil {
		respondError(c, logger, err, "Failed to update spend limit")
		return
	}

	logger.Info("Spend limit updated")
	c.JSON(http.StatusOK, dto.ToSpendLimitResponse(config))
}
