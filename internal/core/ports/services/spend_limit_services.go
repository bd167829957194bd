package services

import (
	"context"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/SscSPs/card_ledger/internal/core/ports/repositories"
)

// SpendLimitCheckerSvc evaluates spend limits and controls.
type SpendLimitCheckerSvc interface {
	Check(ctx context.Context, req domain.SpendCheckRequest) (domain.SpendCheckResult, error)
	CheckTx(ctx context.Context, tx repositories.Tx, req domain.SpendCheckRequest) (domain.SpendCheckResult, error)
}

// SpendLimitConfigSvc manages spend limit configurations.
type SpendLimitConfigSvc interface {
	GetSpendLimit(ctx context.Context, businessID string, ownerType domain.SpendLimitOwnerType, ownerID string) (*domain.SpendLimitConfig, error)
	UpsertSpendLimit(ctx context.Context, config domain.SpendLimitConfig) (*domain.SpendLimitConfig, error)
}

// SpendLimitSvcFacade combines all spend limit service interfaces
type SpendLimitSvcFacade interface {
	SpendLimitCheckerSvc
	SpendLimitConfigSvc
}
