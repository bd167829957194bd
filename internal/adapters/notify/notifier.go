package notify

import (
	"context"
	"log/slog"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
)

const (
	EventHoldsExpired      = "holds_expired"
	EventBusinessSuspended = "business_suspended"
)

// PosthogNotifier publishes notifications as PostHog events keyed by business id.
type PosthogNotifier struct {
	client *PosthogClientWrapper
	logger *slog.Logger
}

var _ portssvc.Notifier = (*PosthogNotifier)(nil)

func NewPosthogNotifier(client *PosthogClientWrapper, logger *slog.Logger) *PosthogNotifier {
	return &PosthogNotifier{client: client, logger: logger}
}

func (n *PosthogNotifier) HoldsExpired(_ context.Context, notice domain.HoldExpiryNotice) {
	n.client.Enqueue(notice.BusinessID, EventHoldsExpired, map[string]any{
		"count":    notice.Count,
		"amount":   notice.Amount.Amount.StringFixed(2),
		"currency": string(notice.Amount.Currency),
		"swept_at": notice.SweptAt,
	})
}

func (n *PosthogNotifier) BusinessSuspended(_ context.Context, notice domain.BusinessSuspensionNotice) {
	n.client.Enqueue(notice.BusinessID, EventBusinessSuspended, map[string]any{
		"total_balance": notice.TotalBalance.Amount.StringFixed(2),
		"currency":      string(notice.TotalBalance.Currency),
		"suspended_at":  notice.SuspendedAt,
	})
}

// LogNotifier writes notifications to the log. Used when no PostHog key is configured.
type LogNotifier struct {
	logger *slog.Logger
}

var _ portssvc.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) HoldsExpired(_ context.Context, notice domain.HoldExpiryNotice) {
	n.logger.Info("Holds expired",
		slog.String("business_id", notice.BusinessID),
		slog.Int("count", notice.Count),
		slog.String("amount", notice.Amount.String()))
}

func (n *LogNotifier) BusinessSuspended(_ context.Context, notice domain.BusinessSuspensionNotice) {
	n.logger.Warn("Business suspended for negative balance",
		slog.String("business_id", notice.BusinessID),
		slog.String("total_balance", notice.TotalBalance.String()))
}

// New picks the PostHog notifier when the client is configured and the log notifier otherwise.
func New(client *PosthogClientWrapper, logger *slog.Logger) portssvc.Notifier {
	if client.IsInitialized() {
		return NewPosthogNotifier(client, logger)
	}
	return NewLogNotifier(logger)
}
