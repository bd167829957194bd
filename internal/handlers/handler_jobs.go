package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/dto"
	"github.com/SscSPs/card_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// jobHandler exposes the maintenance jobs so an external scheduler can trigger them.
type jobHandler struct {
	holdSweeper     portssvc.HoldSweeperSvc
	negativeBalance portssvc.NegativeBalanceSvc
}

// RegisterJobRoutes registers job triggers and the per business correction endpoint.
func RegisterJobRoutes(rg *gin.RouterGroup, holdSweeper portssvc.HoldSweeperSvc, negativeBalance portssvc.NegativeBalanceSvc) {
	h := &jobHandler{holdSweeper: holdSweeper, negativeBalance: negativeBalance}

	jobs := rg.Group("/jobs")
	{
		jobs.POST("/hold-expiry", h.runHoldExpiry)
		jobs.POST("/negative-balance", h.runNegativeBalance)
	}
	rg.POST("/businesses/:id/corrections", h.correctBusiness)
}

// bindJobRequest accepts an empty body.
func bindJobRequest(c *gin.Context) (dto.RunJobRequest, error) {
	var req dto.RunJobRequest
	if c.Request.Body == nil || c.Request.Body == http.NoBody || c.Request.ContentLength == 0 {
		return req, nil
	}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, err
	}
	return req, nil
}

func (h *jobHandler) runHoldExpiry(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("job", "hold-expiry"))
	req, err := bindJobRequest(c)
	if err != nil {
		bindError(c, logger, err)
		return
	}

	summary, err := h.holdSweeper.SweepExpiredHolds(c.Request.Context(), req.Time(time.Now().UTC()))
	if err != nil {
		respondError(c, logger, err, "Failed to sweep expired holds")
		return
	}

	logger.Info("Hold expiry sweep finished", slog.Int("expired", summary.Expired), slog.Int("failed", summary.Failed))
	c.JSON(http.StatusOK, dto.ToHoldSweepResponse(summary))
}

func (h *jobHandler) runNegativeBalance(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("job", "negative-balance"))
	req, err := bindJobRequest(c)
	if err != nil {
		bindError(c, logger, err)
		return
	}

	summary, err := h.negativeBalance.RunDueCorrections(c.Request.Context(), req.Time(time.Now().UTC()))
	if err != nil {
		respondError(c, logger, err, "Failed to run negative balance corrections")
		return
	}

	logger.Info("Negative balance corrections finished",
		slog.Int("reviewed", summary.Reviewed),
		slog.Int("claimed", summary.Claimed),
		slog.Int("corrected", summary.Corrected),
		slog.Int("failed", summary.Failed))
	c.JSON(http.StatusOK, dto.ToCorrectionRunResponse(summary))
}

// correctBusiness runs the corrector for one business immediately.
func (h *jobHandler) correctBusiness(c *gin.Context) {
	businessID := c.Param("id")
	logger := middleware.GetLoggerFromCtx(c.Request.Context()).With(slog.String("business_id", businessID))

	result, err := h.negativeBalance.CorrectNegativeBalances(c.Request.Context(), businessID)
	if err != nil {
		respondError(c, logger, err, "Failed to correct negative balances")
		return
	}

	logger.Info("Negative balances corrected", slog.Int("transfers", len(result.Transfers)), slog.Bool("suspended", result.Suspended))
	c.JSON(http.StatusOK, dto.ToCorrectionResponse(result))
}
