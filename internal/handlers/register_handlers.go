package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/SscSPs/card_ledger/internal/adapters/notify"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/middleware"
	"github.com/SscSPs/card_ledger/internal/platform/config"
	"github.com/SscSPs/card_ledger/internal/platform/metrics"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	posthogClient *notify.PosthogClientWrapper,
) error {
	r.Use(metrics.GinMiddleware())
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORSAllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/metrics", metrics.Handler())

	if err := setupWebhookRoutes(r, cfg, services); err != nil {
		return err
	}
	setupAPIV1Routes(r, cfg, services, posthogClient)
	return nil
}

// setupWebhookRoutes configures the card network entry point. It is rate limited
// and authenticated by body signature instead of operator tokens.
func setupWebhookRoutes(r *gin.Engine, cfg *config.Config, services *portssvc.ServiceContainer) error {
	webhooks := r.Group("/webhooks")
	if cfg.WebhookRateLimit != "" {
		limiterInstance, err := middleware.NewRateLimiter(cfg.WebhookRateLimit)
		if err != nil {
			return fmt.Errorf("invalid webhook rate limit %q: %w", cfg.WebhookRateLimit, err)
		}
		webhooks.Use(middleware.RateLimit(limiterInstance))
	}
	webhooks.Use(middleware.WebhookSignature(cfg.WebhookSecret))

	RegisterNetworkEventRoutes(webhooks, services.Authorization)
	return nil
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
	posthogClient *notify.PosthogClientWrapper,
) {
	v1 := r.Group("/api/v1", middleware.AuthMiddleware(cfg.JWTSecret), middleware.PosthogMiddleware(posthogClient))

	RegisterLedgerRoutes(v1, services.Ledger)
	RegisterSpendLimitRoutes(v1, services.SpendLimits)
	RegisterJobRoutes(v1, services.HoldSweeper, services.NegativeBalance)
}
