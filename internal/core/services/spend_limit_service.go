package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
)

// spendLimitService evaluates per-period caps and spend controls of cards and allocations.
type spendLimitService struct {
	BaseService
	store portsrepo.TransactionManager
}

// NewSpendLimitService creates a new SpendLimitService.
func NewSpendLimitService(store portsrepo.TransactionManager, settings Settings) portssvc.SpendLimitSvcFacade {
	return &spendLimitService{
		BaseService: BaseService{clock: settings.Clock},
		store:       store,
	}
}

var _ portssvc.SpendLimitSvcFacade = (*spendLimitService)(nil)

func (s *spendLimitService) Check(ctx context.Context, req domain.SpendCheckRequest) (domain.SpendCheckResult, error) {
	var result domain.SpendCheckResult
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		result, err = s.CheckTx(ctx, tx, req)
		return err
	})
	return result, err
}

// CheckTx reports the first violation found. Card configuration is evaluated before
// allocation configuration; within one configuration MCC group, payment type and foreign
// controls come before the caps, which are evaluated by limit type then period.
func (s *spendLimitService) CheckTx(ctx context.Context, tx portsrepo.Tx, req domain.SpendCheckRequest) (domain.SpendCheckResult, error) {
	if req.AsOf.IsZero() {
		req.AsOf = s.Now()
	}

	owners := []struct {
		ownerType domain.SpendLimitOwnerType
		ownerID   string
		usage     domain.SpendUsageQuery
	}{
		{domain.OwnerCard, req.CardID, domain.SpendUsageQuery{CardID: req.CardID}},
		{domain.OwnerAllocation, req.AllocationID, domain.SpendUsageQuery{AccountID: req.AccountID}},
	}

	for _, owner := range owners {
		if owner.ownerID == "" {
			continue
		}
		config, err := tx.SpendLimits().FindSpendLimit(ctx, owner.ownerType, owner.ownerID)
		if errors.Is(err, apperrors.ErrNotFound) {
			continue
		}
		if err != nil {
			return domain.SpendCheckResult{}, fmt.Errorf("failed to load spend limits for %s %s: %w", owner.ownerType, owner.ownerID, err)
		}

		if result, violated := checkControls(*config, req); violated {
			return result, nil
		}
		if owner.ownerType == domain.OwnerAllocation && req.AccountID == "" {
			continue
		}
		result, err := s.checkCaps(ctx, tx, *config, owner.usage, req)
		if err != nil {
			return domain.SpendCheckResult{}, err
		}
		if !result.Allowed {
			return result, nil
		}
	}
	return domain.SpendAllowed, nil
}

func checkControls(config domain.SpendLimitConfig, req domain.SpendCheckRequest) (domain.SpendCheckResult, bool) {
	details := domain.DeclineDetails{OwnerType: config.OwnerType}
	switch {
	case config.DisablesMccGroup(req.MccGroup):
		details.MccGroup = req.MccGroup
	case config.DisablesPaymentType(req.PaymentType):
		details.PaymentType = req.PaymentType
	case config.DisableForeign && req.Foreign:
		details.Foreign = true
	default:
		return domain.SpendAllowed, false
	}
	return domain.SpendCheckResult{Reason: domain.DeclineSpendControlViolated, Details: details}, true
}

// checkCaps applies `cap + usage + amount < 0` per period. Usage is negative for spend,
// so a request exactly consuming the remaining cap is allowed.
func (s *spendLimitService) checkCaps(ctx context.Context, tx portsrepo.Tx, config domain.SpendLimitConfig, usageQuery domain.SpendUsageQuery, req domain.SpendCheckRequest) (domain.SpendCheckResult, error) {
	if !req.Amount.IsNegative() {
		return domain.SpendAllowed, nil
	}
	for _, periodCap := range config.CapsFor(req.Amount.Currency) {
		query := usageQuery
		query.Currency = req.Amount.Currency
		query.From = req.AsOf.Add(-periodCap.Period.Duration())
		query.To = req.AsOf

		usage, err := s.usage(ctx, tx, query)
		if err != nil {
			return domain.SpendCheckResult{}, err
		}
		remaining := periodCap.Cap.Add(usage).Add(req.Amount.Amount)
		if remaining.IsNegative() {
			exceeded := domain.NewAmount(req.Amount.Currency, remaining.Neg())
			s.GetLogger(ctx).Info("Spend limit exceeded",
				slog.String("owner_type", string(config.OwnerType)),
				slog.String("owner_id", config.OwnerID),
				slog.String("limit_type", string(periodCap.LimitType)),
				slog.String("period", string(periodCap.Period)),
				slog.String("exceeded_by", exceeded.String()))
			return domain.SpendCheckResult{
				Reason: domain.DeclineLimitExceeded,
				Details: domain.DeclineDetails{
					OwnerType:      config.OwnerType,
					LimitType:      periodCap.LimitType,
					LimitPeriod:    periodCap.Period,
					ExceededAmount: &exceeded,
				},
			}, nil
		}
	}
	return domain.SpendAllowed, nil
}

func (s *spendLimitService) usage(ctx context.Context, tx portsrepo.Tx, query domain.SpendUsageQuery) (decimal.Decimal, error) {
	settled, err := tx.Adjustments().SumNetworkAdjustments(ctx, query)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum network adjustments: %w", err)
	}
	pending, err := tx.Holds().SumPlacedHoldsForOwner(ctx, query)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum placed holds: %w", err)
	}
	return settled.Add(pending), nil
}

func (s *spendLimitService) GetSpendLimit(ctx context.Context, businessID string, ownerType domain.SpendLimitOwnerType, ownerID string) (*domain.SpendLimitConfig, error) {
	if !ownerType.Valid() {
		return nil, fmt.Errorf("%w: unknown owner type %q", apperrors.ErrValidation, ownerType)
	}
	var config *domain.SpendLimitConfig
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		config, err = tx.SpendLimits().FindSpendLimit(ctx, ownerType, ownerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if config.BusinessID != businessID {
		return nil, fmt.Errorf("spend limit %s %s: %w", ownerType, ownerID, apperrors.ErrNotFound)
	}
	return config, nil
}

func (s *spendLimitService) UpsertSpendLimit(ctx context.Context, config domain.SpendLimitConfig) (*domain.SpendLimitConfig, error) {
	if err := validateSpendLimitConfig(config); err != nil {
		return nil, err
	}

	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		ownerBusinessID, err := spendLimitOwnerBusiness(ctx, tx, config.OwnerType, config.OwnerID)
		if err != nil {
			return err
		}
		if ownerBusinessID != config.BusinessID {
			return fmt.Errorf("%s %s: %w", config.OwnerType, config.OwnerID, apperrors.ErrNotFound)
		}
		now := s.Now()
		config.CreatedAt = now
		config.LastUpdatedAt = now
		if existing, err := tx.SpendLimits().FindSpendLimit(ctx, config.OwnerType, config.OwnerID); err == nil {
			config.CreatedAt = existing.CreatedAt
		} else if !errors.Is(err, apperrors.ErrNotFound) {
			return err
		}
		return tx.SpendLimits().UpsertSpendLimit(ctx, config)
	})
	if err != nil {
		return nil, err
	}

	s.GetLogger(ctx).Info("Spend limit updated",
		slog.String("business_id", config.BusinessID),
		slog.String("owner_type", string(config.OwnerType)),
		slog.String("owner_id", config.OwnerID))
	return &config, nil
}

func spendLimitOwnerBusiness(ctx context.Context, tx portsrepo.Tx, ownerType domain.SpendLimitOwnerType, ownerID string) (string, error) {
	if ownerType == domain.OwnerCard {
		card, err := tx.Cards().FindCardByID(ctx, ownerID)
		if err != nil {
			return "", err
		}
		return card.BusinessID, nil
	}
	allocation, err := tx.Allocations().FindAllocationByID(ctx, ownerID)
	if err != nil {
		return "", err
	}
	return allocation.BusinessID, nil
}

func validateSpendLimitConfig(config domain.SpendLimitConfig) error {
	if config.BusinessID == "" || config.OwnerID == "" {
		return fmt.Errorf("%w: business id and owner id are required", apperrors.ErrValidation)
	}
	if !config.OwnerType.Valid() {
		return fmt.Errorf("%w: unknown owner type %q", apperrors.ErrValidation, config.OwnerType)
	}
	for currency, types := range config.Limits {
		for limitType, periods := range types {
			if limitType != domain.LimitPurchase {
				return fmt.Errorf("%w: unknown limit type %q", apperrors.ErrValidation, limitType)
			}
			for period, limit := range periods {
				if !period.Valid() {
					return fmt.Errorf("%w: unknown limit period %q", apperrors.ErrValidation, period)
				}
				if limit.IsNegative() {
					return fmt.Errorf("%w: %s %s %s cap must not be negative", apperrors.ErrValidation, currency, limitType, period)
				}
			}
		}
	}
	return nil
}
