package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/utils/pagination"
)

// ledgerService owns the adjustment log and the balances derived from it.
type ledgerService struct {
	BaseService
	store     portsrepo.TransactionManager
	locker    portssvc.Locker
	publisher portssvc.AdjustmentPublisher
}

// NewLedgerService creates a new LedgerService. publisher may be nil.
func NewLedgerService(store portsrepo.TransactionManager, locker portssvc.Locker, publisher portssvc.AdjustmentPublisher, settings Settings) portssvc.LedgerSvcFacade {
	return &ledgerService{
		BaseService: BaseService{clock: settings.Clock},
		store:       store,
		locker:      locker,
		publisher:   publisher,
	}
}

var _ portssvc.LedgerSvcFacade = (*ledgerService)(nil)

func (s *ledgerService) LedgerBalance(ctx context.Context, accountID string) (domain.Amount, error) {
	var balance domain.Amount
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		account, err := tx.Accounts().FindAccountByID(ctx, accountID)
		if err != nil {
			return err
		}
		balance = account.LedgerBalance
		return nil
	})
	return balance, err
}

func (s *ledgerService) AvailableBalance(ctx context.Context, accountID string) (domain.Amount, error) {
	var available domain.Amount
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		available, err = s.AvailableBalanceTx(ctx, tx, accountID)
		return err
	})
	return available, err
}

func (s *ledgerService) AvailableBalanceTx(ctx context.Context, tx portsrepo.Tx, accountID string) (domain.Amount, error) {
	balance, err := tx.Accounts().FindAccountBalance(ctx, accountID)
	if err != nil {
		return domain.Amount{}, err
	}
	return balance.AvailableBalance, nil
}

func (s *ledgerService) BusinessBalances(ctx context.Context, businessID string) ([]domain.AccountBalance, error) {
	var balances []domain.AccountBalance
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		if _, err := tx.Businesses().FindBusinessByID(ctx, businessID); err != nil {
			return err
		}
		var err error
		balances, err = tx.Accounts().FindAccountBalancesByBusinessID(ctx, businessID)
		return err
	})
	return balances, err
}

// maxActivityPageSize caps a feed page regardless of the requested limit.
const maxActivityPageSize = 100

func (s *ledgerService) ListActivities(ctx context.Context, accountID string, limit int, pageToken string) (*domain.ActivityPage, error) {
	if limit <= 0 || limit > maxActivityPageSize {
		limit = maxActivityPageSize
	}
	query := domain.ActivityQuery{AccountID: accountID, AsOf: s.Now(), Limit: limit + 1}
	if pageToken != "" {
		activityTime, activityID, err := pagination.DecodeToken(pageToken)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
		}
		query.After = &domain.ActivityCursor{ActivityTime: activityTime, ActivityID: activityID}
	}

	var activities []domain.AccountActivity
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		if _, err := tx.Accounts().FindAccountByID(ctx, accountID); err != nil {
			return err
		}
		var err error
		activities, err = tx.Activities().ListActivities(ctx, query)
		return err
	})
	if err != nil {
		return nil, err
	}

	// One extra row tells whether another page exists.
	page := &domain.ActivityPage{Activities: activities}
	if len(activities) > limit {
		page.Activities = activities[:limit]
		last := page.Activities[limit-1]
		page.NextToken = pagination.EncodeToken(last.ActivityTime, last.ActivityID)
	}
	if page.Activities == nil {
		page.Activities = []domain.AccountActivity{}
	}
	return page, nil
}

// RecordAdjustment validates and appends a funds movement requested through the API.
// DEPOSIT must be positive; WITHDRAW must be negative and covered by the available balance.
func (s *ledgerService) RecordAdjustment(ctx context.Context, params domain.AdjustmentParams) (*domain.Adjustment, error) {
	logger := s.GetLogger(ctx)

	if err := validateAdjustmentParams(params); err != nil {
		return nil, err
	}

	var adjustment *domain.Adjustment
	err := s.locker.WithLock(ctx, AccountLockKey(params.AccountID), func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			if params.Type == domain.AdjustmentWithdraw {
				available, err := s.AvailableBalanceTx(ctx, tx, params.AccountID)
				if err != nil {
					return err
				}
				if available.Add(params.Amount).IsNegative() {
					return fmt.Errorf("%w: available %s, withdrawal %s", apperrors.ErrInsufficientFunds, available, params.Amount.Abs())
				}
			}
			var err error
			adjustment, err = s.RecordAdjustmentTx(ctx, tx, params)
			if err != nil {
				return err
			}
			return s.recordAdjustmentActivity(ctx, tx, *adjustment)
		})
	})
	if err != nil {
		if !errors.Is(err, apperrors.ErrNotFound) && !errors.Is(err, apperrors.ErrInsufficientFunds) && !errors.Is(err, apperrors.ErrValidation) {
			s.LogError(ctx, err, "Failed to record adjustment", slog.String("account_id", params.AccountID))
		}
		return nil, err
	}

	logger.Info("Adjustment recorded",
		slog.String("adjustment_id", adjustment.AdjustmentID),
		slog.String("account_id", adjustment.AccountID),
		slog.String("type", string(adjustment.Type)),
		slog.String("amount", adjustment.Amount.String()))
	return adjustment, nil
}

func validateAdjustmentParams(params domain.AdjustmentParams) error {
	if params.AccountID == "" {
		return fmt.Errorf("%w: account id is required", apperrors.ErrValidation)
	}
	if !params.Type.Valid() {
		return fmt.Errorf("%w: unknown adjustment type %q", apperrors.ErrValidation, params.Type)
	}
	if params.Amount.IsZero() {
		return fmt.Errorf("%w: adjustment amount must not be zero", apperrors.ErrValidation)
	}
	switch params.Type {
	case domain.AdjustmentDeposit:
		if params.Amount.IsNegative() {
			return fmt.Errorf("%w: deposits must be positive", apperrors.ErrValidation)
		}
	case domain.AdjustmentWithdraw:
		if params.Amount.IsPositive() {
			return fmt.Errorf("%w: withdrawals must be negative", apperrors.ErrValidation)
		}
	case domain.AdjustmentReallocate:
		return fmt.Errorf("%w: use reallocation to move funds between allocations", apperrors.ErrValidation)
	}
	return nil
}

// RecordAdjustmentTx appends the adjustment and applies it to the ledger balance inside tx.
// The AdjustmentPersisted event is published once tx commits.
func (s *ledgerService) RecordAdjustmentTx(ctx context.Context, tx portsrepo.Tx, params domain.AdjustmentParams) (*domain.Adjustment, error) {
	account, err := tx.Accounts().FindAccountForUpdate(ctx, params.AccountID)
	if err != nil {
		return nil, err
	}
	if err := account.LedgerBalance.SameCurrency(params.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}

	now := s.Now()
	adjustment := domain.Adjustment{
		AdjustmentID:     uuid.NewString(),
		BusinessID:       account.BusinessID,
		AllocationID:     account.AllocationID,
		AccountID:        account.AccountID,
		CardID:           params.CardID,
		NetworkMessageID: params.NetworkMessageID,
		Type:             params.Type,
		Amount:           params.Amount,
		EffectiveDate:    now,
		CreatedAt:        now,
	}
	if err := tx.Adjustments().SaveAdjustment(ctx, adjustment); err != nil {
		return nil, fmt.Errorf("failed to save adjustment: %w", err)
	}
	if err := tx.Accounts().AddToLedgerBalance(ctx, account.AccountID, params.Amount.Amount, now); err != nil {
		return nil, fmt.Errorf("failed to update ledger balance: %w", err)
	}

	if s.publisher != nil {
		event := domain.AdjustmentPersisted{
			AdjustmentID: adjustment.AdjustmentID,
			BusinessID:   adjustment.BusinessID,
			AllocationID: adjustment.AllocationID,
			AccountID:    adjustment.AccountID,
			Type:         adjustment.Type,
			Amount:       adjustment.Amount,
			OccurredAt:   now,
		}
		tx.OnCommit(func() { s.publisher.Publish(event) })
	}
	return &adjustment, nil
}

func (s *ledgerService) ReallocateFunds(ctx context.Context, businessID, fromAllocationID, toAllocationID string, amount domain.Amount) (*domain.Reallocation, error) {
	if fromAllocationID == toAllocationID {
		return nil, fmt.Errorf("%w: cannot reallocate funds to the same allocation", apperrors.ErrValidation)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: reallocation amount must be positive", apperrors.ErrValidation)
	}

	var from, to *domain.Allocation
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		if from, err = tx.Allocations().FindAllocationByID(ctx, fromAllocationID); err != nil {
			return err
		}
		to, err = tx.Allocations().FindAllocationByID(ctx, toAllocationID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if from.BusinessID != businessID || to.BusinessID != businessID {
		return nil, fmt.Errorf("%w: allocations must belong to business %s", apperrors.ErrValidation, businessID)
	}

	var reallocation *domain.Reallocation
	keys := []string{AccountLockKey(from.AccountID), AccountLockKey(to.AccountID)}
	err = withLocks(ctx, s.locker, keys, func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			accounts, err := tx.Accounts().FindAccountsForUpdate(ctx, []string{from.AccountID, to.AccountID})
			if err != nil {
				return err
			}
			available, err := s.AvailableBalanceTx(ctx, tx, from.AccountID)
			if err != nil {
				return err
			}
			if available.Sub(amount).IsNegative() {
				return fmt.Errorf("%w: allocation %s has %s available", apperrors.ErrInsufficientFunds, fromAllocationID, available)
			}
			reallocation, err = s.TransferTx(ctx, tx, accounts[from.AccountID], accounts[to.AccountID], amount)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	s.GetLogger(ctx).Info("Funds reallocated",
		slog.String("business_id", businessID),
		slog.String("from_allocation_id", fromAllocationID),
		slog.String("to_allocation_id", toAllocationID),
		slog.String("amount", amount.String()))
	return reallocation, nil
}

func (s *ledgerService) TransferTx(ctx context.Context, tx portsrepo.Tx, from, to domain.Account, amount domain.Amount) (*domain.Reallocation, error) {
	if from.BusinessID != to.BusinessID {
		return nil, fmt.Errorf("%w: accounts belong to different businesses", apperrors.ErrValidation)
	}
	debit, err := s.RecordAdjustmentTx(ctx, tx, domain.AdjustmentParams{
		AccountID: from.AccountID,
		Type:      domain.AdjustmentReallocate,
		Amount:    amount.Abs().Neg(),
	})
	if err != nil {
		return nil, err
	}
	credit, err := s.RecordAdjustmentTx(ctx, tx, domain.AdjustmentParams{
		AccountID: to.AccountID,
		Type:      domain.AdjustmentReallocate,
		Amount:    amount.Abs(),
	})
	if err != nil {
		return nil, err
	}
	if err := s.recordAdjustmentActivity(ctx, tx, *debit); err != nil {
		return nil, err
	}
	if err := s.recordAdjustmentActivity(ctx, tx, *credit); err != nil {
		return nil, err
	}
	return &domain.Reallocation{BusinessID: from.BusinessID, From: *debit, To: *credit}, nil
}

func (s *ledgerService) recordAdjustmentActivity(ctx context.Context, tx portsrepo.Tx, adjustment domain.Adjustment) error {
	activity := domain.AccountActivity{
		ActivityID:   uuid.NewString(),
		BusinessID:   adjustment.BusinessID,
		AllocationID: adjustment.AllocationID,
		AccountID:    adjustment.AccountID,
		CardID:       adjustment.CardID,
		Type:         domain.ActivityTypeFor(adjustment.Type),
		Status:       domain.ActivityProcessed,
		Amount:       adjustment.Amount,
		AdjustmentID: adjustment.AdjustmentID,
		ActivityTime: adjustment.CreatedAt,
	}
	if err := tx.Activities().SaveActivity(ctx, activity); err != nil {
		return fmt.Errorf("failed to save activity: %w", err)
	}
	return nil
}
