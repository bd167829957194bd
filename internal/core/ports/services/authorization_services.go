package services

import (
	"context"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

// AuthorizationSvc turns card network events into funds decisions.
type AuthorizationSvc interface {
	// Process handles one network event. Declines are outcomes, not errors.
	Process(ctx context.Context, event domain.NetworkEvent) (*domain.ProcessingOutcome, error)
}
