package handlers_test

import (
	"context"
	"time"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	"github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/stretchr/testify/mock"
)

// --- Mock AuthorizationService ---
type MockAuthorizationService struct {
	mock.Mock
}

func (m *MockAuthorizationService) Process(ctx context.Context, event domain.NetworkEvent) (*domain.ProcessingOutcome, error) {
	args := m.Called(ctx, event)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProcessingOutcome), args.Error(1)
}

var _ portssvc.AuthorizationSvc = (*MockAuthorizationService)(nil)

// --- Mock LedgerService ---
type MockLedgerService struct {
	mock.Mock
}

func (m *MockLedgerService) LedgerBalance(ctx context.Context, accountID string) (domain.Amount, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(domain.Amount), args.Error(1)
}
func (m *MockLedgerService) AvailableBalance(ctx context.Context, accountID string) (domain.Amount, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(domain.Amount), args.Error(1)
}
func (m *MockLedgerService) BusinessBalances(ctx context.Context, businessID string) ([]domain.AccountBalance, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.AccountBalance), args.Error(1)
}
func (m *MockLedgerService) ListActivities(ctx context.Context, accountID string, limit int, pageToken string) (*domain.ActivityPage, error) {
	args := m.Called(ctx, accountID, limit, pageToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ActivityPage), args.Error(1)
}
func (m *MockLedgerService) RecordAdjustment(ctx context.Context, params domain.AdjustmentParams) (*domain.Adjustment, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Adjustment), args.Error(1)
}
func (m *MockLedgerService) ReallocateFunds(ctx context.Context, businessID, fromAllocationID, toAllocationID string, amount domain.Amount) (*domain.Reallocation, error) {
	args := m.Called(ctx, businessID, fromAllocationID, toAllocationID, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reallocation), args.Error(1)
}
func (m *MockLedgerService) RecordAdjustmentTx(ctx context.Context, tx repositories.Tx, params domain.AdjustmentParams) (*domain.Adjustment, error) {
	args := m.Called(ctx, tx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Adjustment), args.Error(1)
}
func (m *MockLedgerService) AvailableBalanceTx(ctx context.Context, tx repositories.Tx, accountID string) (domain.Amount, error) {
	args := m.Called(ctx, tx, accountID)
	return args.Get(0).(domain.Amount), args.Error(1)
}
func (m *MockLedgerService) TransferTx(ctx context.Context, tx repositories.Tx, from, to domain.Account, amount domain.Amount) (*domain.Reallocation, error) {
	args := m.Called(ctx, tx, from, to, amount)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reallocation), args.Error(1)
}

var _ portssvc.LedgerSvcFacade = (*MockLedgerService)(nil)

// --- Mock SpendLimitService ---
type MockSpendLimitService struct {
	mock.Mock
}

func (m *MockSpendLimitService) GetSpendLimit(ctx context.Context, businessID string, ownerType domain.SpendLimitOwnerType, ownerID string) (*domain.SpendLimitConfig, error) {
	args := m.Called(ctx, businessID, ownerType, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SpendLimitConfig), args.Error(1)
}
func (m *MockSpendLimitService) UpsertSpendLimit(ctx context.Context, config domain.SpendLimitConfig) (*domain.SpendLimitConfig, error) {
	args := m.Called(ctx, config)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SpendLimitConfig), args.Error(1)
}

var _ portssvc.SpendLimitConfigSvc = (*MockSpendLimitService)(nil)

// --- Mock job services ---
type MockHoldSweeper struct {
	mock.Mock
}

func (m *MockHoldSweeper) SweepExpiredHolds(ctx context.Context, now time.Time) (*domain.SweepSummary, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SweepSummary), args.Error(1)
}

var _ portssvc.HoldSweeperSvc = (*MockHoldSweeper)(nil)

type MockNegativeBalanceService struct {
	mock.Mock
}

func (m *MockNegativeBalanceService) OnAdjustment(ctx context.Context, event domain.AdjustmentPersisted) error {
	return m.Called(ctx, event).Error(0)
}
func (m *MockNegativeBalanceService) CorrectNegativeBalances(ctx context.Context, businessID string) (*domain.CorrectionResult, error) {
	args := m.Called(ctx, businessID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CorrectionResult), args.Error(1)
}
func (m *MockNegativeBalanceService) RunDueCorrections(ctx context.Context, now time.Time) (*domain.CorrectionRunSummary, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.CorrectionRunSummary), args.Error(1)
}

var _ portssvc.NegativeBalanceSvc = (*MockNegativeBalanceService)(nil)
