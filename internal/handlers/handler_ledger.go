package handlers

import (
	"log/slog"
	"net/http"

	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/dto"
	"github.com/SscSPs/card_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ledgerHandler handles HTTP requests related to balances and adjustments.
type ledgerHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

// RegisterLedgerRoutes registers account and business ledger routes.
func RegisterLedgerRoutes(rg *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := &ledgerHandler{ledgerService: ledgerService}

	accounts := rg.Group("/accounts/:id")
	{
		accounts.GET("/balance", h.getAccountBalance)
		accounts.GET("/activities", h.listActivities)
		accounts.POST("/adjustments", h.createAdjustment)
	}

	businesses := rg.Group("/businesses/:id")
	{
		businesses.GET("/balances", h.listBusinessBalances)
		businesses.POST("/reallocations", h.reallocateFunds)
	}
}

// getAccountBalance returns the ledger and available balance of an account.
func (h *ledgerHandler) getAccountBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("account_id", c.Param("id")))
	ctx := c.Request.Context()
	accountID := c.Param("id")

	ledger, err := h.ledgerService.LedgerBalance(ctx, accountID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve balance")
		return
	}
	available, err := h.ledgerService.AvailableBalance(ctx, accountID)
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve balance")
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		AccountID:        accountID,
		Currency:         ledger.Currency,
		LedgerBalance:    ledger.Amount,
		AvailableBalance: available.Amount,
	})
}

// listActivities returns one page of the account's activity feed.
func (h *ledgerHandler) listActivities(c *gin.Context) {
	accountID := c.Param("id")
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("account_id", accountID))

	var params dto.ListActivitiesParams
	if err := c.ShouldBindQuery(&params); err != nil {
		bindError(c, logger, err)
		return
	}

	page, err := h.ledgerService.ListActivities(c.Request.Context(), accountID, params.Limit, params.NextToken)
	if err != nil {
		respondError(c, logger, err, "Failed to list activities")
		return
	}
	c.JSON(http.StatusOK, dto.ToListActivitiesResponse(page))
}

func (h *ledgerHandler) listBusinessBalances(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("business_id", c.Param("id")))

	balances, err := h.ledgerService.BusinessBalances(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, logger, err, "Failed to retrieve balances")
		return
	}
	c.JSON(http.StatusOK, dto.ToListBalanceResponse(balances))
}

// createAdjustment records a deposit, withdrawal or manual adjustment.
func (h *ledgerHandler) createAdjustment(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.CreateAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}

	accountID := c.Param("id")
	logger = logger.With(slog.String("account_id", accountID), slog.String("adjustment_type", string(req.Type)))
	logger.Info("Received request to record adjustment", slog.String("amount", req.Amount.String()))

	adjustment, err := h.ledgerService.RecordAdjustment(c.Request.Context(), req.ToParams(accountID))
	if err != nil {
		respondError(c, logger, err, "Failed to record adjustment")
		return
	}

	logger.Info("Adjustment recorded", slog.String("adjustment_id", adjustment.AdjustmentID))
	c.JSON(http.StatusCreated, dto.ToAdjustmentResponse(adjustment))
}

// reallocateFunds moves funds between two allocations of the business.
func (h *ledgerHandler) reallocateFunds(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.ReallocationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}

	businessID := c.Param("id")
	logger = logger.With(
		slog.String("business_id", businessID),
		slog.String("from_allocation_id", req.FromAllocationID),
		slog.String("to_allocation_id", req.ToAllocationID),
	)

	reallocation, err := h.ledgerService.ReallocateFunds(c.Request.Context(), businessID, req.FromAllocationID, req.ToAllocationID, req.AmountValue())
	if err != nil {
		respondError(c, logger, err, "Failed to reallocate funds")
		return
	}

	logger.Info("Funds reallocated", slog.String("amount", req.Amount.String()))
	c.JSON(http.StatusCreated, dto.ToReallocationResponse(reallocation))
}
