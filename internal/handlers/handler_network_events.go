package handlers

import (
	"log/slog"
	"net/http"
	"time"

	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/dto"
	"github.com/SscSPs/card_ledger/internal/middleware"
	"github.com/gin-gonic/gin"
)

// networkEventHandler handles card network webhooks.
type networkEventHandler struct {
	authorizationService portssvc.AuthorizationSvc
}

// RegisterNetworkEventRoutes registers the webhook endpoint on rg.
func RegisterNetworkEventRoutes(rg *gin.RouterGroup, authorizationService portssvc.AuthorizationSvc) {
	h := &networkEventHandler{authorizationService: authorizationService}
	rg.POST("/network-events", h.receiveNetworkEvent)
}

// receiveNetworkEvent processes one network event. Declines are answered with
// 200 and the decline reason; only malformed or unprocessable events fail.
func (h *networkEventHandler) receiveNetworkEvent(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())
	var req dto.NetworkEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, logger, err)
		return
	}

	logger = logger.With(
		slog.String("external_ref", req.ExternalRef),
		slog.String("event_type", string(req.Type)),
	)
	ctx := middleware.WithLogger(c.Request.Context(), logger)

	outcome, err := h.authorizationService.Process(ctx, req.ToDomain(time.Now().UTC()))
	if err != nil {
		respondError(c, logger, err, "Failed to process network event")
		return
	}

	logger.Info("Network event processed",
		slog.String("decision", string(outcome.Decision)),
		slog.String("reason", string(outcome.Reason)),
		slog.Bool("duplicate", outcome.Duplicate))
	c.JSON(http.StatusOK, dto.ToNetworkEventResponse(outcome))
}
