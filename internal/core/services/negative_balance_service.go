package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/platform/metrics"
)

// negativeBalanceService suspends businesses whose total balance goes negative and
// rebalances allocations when only some of them are negative.
type negativeBalanceService struct {
	BaseService
	store    portsrepo.TransactionManager
	locker   portssvc.Locker
	ledger   portssvc.LedgerTxSvc
	notifier portssvc.Notifier
	settings Settings
}

// NewNegativeBalanceService creates a new NegativeBalanceSvc.
func NewNegativeBalanceService(store portsrepo.TransactionManager, locker portssvc.Locker, ledger portssvc.LedgerTxSvc, notifier portssvc.Notifier, settings Settings) portssvc.NegativeBalanceSvc {
	return &negativeBalanceService{
		BaseService: BaseService{clock: settings.Clock},
		store:       store,
		locker:      locker,
		ledger:      ledger,
		notifier:    notifier,
		settings:    settings,
	}
}

var _ portssvc.NegativeBalanceSvc = (*negativeBalanceService)(nil)

// businessSnapshot is the balance position of a business.
type businessSnapshot struct {
	total       domain.Amount
	anyNegative bool
}

func snapshotOf(currency domain.Currency, accounts []domain.Account) businessSnapshot {
	snap := businessSnapshot{total: domain.ZeroAmount(currency)}
	for _, a := range accounts {
		snap.total = snap.total.Add(a.LedgerBalance)
		if a.LedgerBalance.IsNegative() {
			snap.anyNegative = true
		}
	}
	return snap
}

// OnAdjustment reacts to a persisted adjustment. Reallocations move funds inside a
// business and never change its total, so they are ignored.
func (s *negativeBalanceService) OnAdjustment(ctx context.Context, event domain.AdjustmentPersisted) error {
	if event.Type == domain.AdjustmentReallocate {
		return nil
	}
	return s.reviewBusiness(ctx, event.BusinessID)
}

// reviewBusiness suspends, schedules a correction for, or reactivates the business
// depending on its current balances.
func (s *negativeBalanceService) reviewBusiness(ctx context.Context, businessID string) error {
	logger := s.GetLogger(ctx).With(slog.String("business_id", businessID))

	return s.locker.WithLock(ctx, BusinessLockKey(businessID), func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			business, err := tx.Businesses().FindBusinessForUpdate(ctx, businessID)
			if err != nil {
				return err
			}
			accounts, err := tx.Accounts().FindAccountsByBusinessID(ctx, businessID)
			if err != nil {
				return err
			}
			snap := snapshotOf(business.Currency, accounts)
			now := s.Now()

			switch business.Status {
			case domain.BusinessActive:
				if snap.total.IsNegative() {
					return s.suspendTx(ctx, tx, *business, snap.total, now)
				}
				if snap.anyNegative {
					return s.scheduleTx(ctx, tx, businessID, now)
				}
			case domain.BusinessSuspendedExpenditure:
				if snap.total.IsNegative() {
					return nil
				}
				if snap.anyNegative {
					return s.scheduleTx(ctx, tx, businessID, now)
				}
				if err := tx.Businesses().UpdateBusinessStatus(ctx, businessID, domain.BusinessActive, now); err != nil {
					return err
				}
				if _, err := tx.CorrectionJobs().CancelCorrectionJob(ctx, businessID); err != nil {
					return err
				}
				tx.OnCommit(func() { logger.Info("Business reactivated, balances healthy") })
			}
			return nil
		})
	})
}

func (s *negativeBalanceService) scheduleTx(ctx context.Context, tx portsrepo.Tx, businessID string, now time.Time) error {
	runAt := now.Add(s.settings.CorrectionDelay)
	scheduled, err := tx.CorrectionJobs().ScheduleCorrectionJob(ctx, businessID, runAt, now)
	if err != nil {
		return err
	}
	if scheduled {
		logger := s.GetLogger(ctx)
		tx.OnCommit(func() {
			logger.Info("Negative balance correction scheduled",
				slog.String("business_id", businessID),
				slog.Time("run_at", runAt))
		})
	}
	return nil
}

func (s *negativeBalanceService) suspendTx(ctx context.Context, tx portsrepo.Tx, business domain.Business, total domain.Amount, now time.Time) error {
	if err := tx.Businesses().UpdateBusinessStatus(ctx, business.BusinessID, domain.BusinessSuspendedExpenditure, now); err != nil {
		return err
	}
	notice := domain.BusinessSuspensionNotice{
		BusinessID:   business.BusinessID,
		TotalBalance: total,
		SuspendedAt:  now,
	}
	logger := s.GetLogger(ctx)
	detached := context.WithoutCancel(ctx)
	tx.OnCommit(func() {
		metrics.IncSuspension()
		logger.Warn("Business suspended, total balance negative",
			slog.String("business_id", business.BusinessID),
			slog.String("total_balance", total.String()))
		if s.notifier != nil {
			s.notifier.BusinessSuspended(detached, notice)
		}
	})
	return nil
}

// CorrectNegativeBalances moves funds from positive allocations into negative ones.
// A business whose total is negative cannot be healed and is suspended instead.
func (s *negativeBalanceService) CorrectNegativeBalances(ctx context.Context, businessID string) (*domain.CorrectionResult, error) {
	var result *domain.CorrectionResult
	err := s.locker.WithLock(ctx, BusinessLockKey(businessID), func(ctx context.Context) error {
		var allocations []domain.Allocation
		var accounts []domain.Account
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			if _, err := tx.Businesses().FindBusinessByID(ctx, businessID); err != nil {
				return err
			}
			var err error
			if allocations, err = tx.Allocations().FindAllocationsByBusinessID(ctx, businessID); err != nil {
				return err
			}
			accounts, err = tx.Accounts().FindAccountsByBusinessID(ctx, businessID)
			return err
		})
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(accounts))
		accountIDs := make([]string, 0, len(accounts))
		for _, a := range accounts {
			keys = append(keys, AccountLockKey(a.AccountID))
			accountIDs = append(accountIDs, a.AccountID)
		}
		return withLocks(ctx, s.locker, keys, func(ctx context.Context) error {
			return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
				var err error
				result, err = s.correctTx(ctx, tx, businessID, allocations, accountIDs)
				return err
			})
		})
	})
	if err != nil {
		metrics.IncCorrection("failed")
		if !errors.Is(err, apperrors.ErrNotFound) {
			s.LogError(ctx, err, "Negative balance correction failed", slog.String("business_id", businessID))
		}
		return nil, err
	}

	outcome := "corrected"
	if result.Suspended {
		outcome = "suspended"
	}
	metrics.IncCorrection(outcome)
	s.GetLogger(ctx).Info("Negative balance correction finished",
		slog.String("business_id", businessID),
		slog.Int("transfers", len(result.Transfers)),
		slog.Bool("suspended", result.Suspended),
		slog.String("remaining", result.Remaining.String()))
	return result, nil
}

func (s *negativeBalanceService) correctTx(ctx context.Context, tx portsrepo.Tx, businessID string, allocations []domain.Allocation, accountIDs []string) (*domain.CorrectionResult, error) {
	business, err := tx.Businesses().FindBusinessForUpdate(ctx, businessID)
	if err != nil {
		return nil, err
	}
	locked, err := tx.Accounts().FindAccountsForUpdate(ctx, accountIDs)
	if err != nil {
		return nil, err
	}
	current := make([]domain.Account, 0, len(locked))
	for _, a := range locked {
		current = append(current, a)
	}
	snap := snapshotOf(business.Currency, current)
	now := s.Now()

	result := &domain.CorrectionResult{
		BusinessID: businessID,
		Remaining:  domain.ZeroAmount(business.Currency),
	}
	if snap.total.IsNegative() {
		result.Suspended = true
		result.Remaining = snap.total
		if business.Status == domain.BusinessActive {
			return result, s.suspendTx(ctx, tx, *business, snap.total, now)
		}
		return result, nil
	}

	var ordered []allocationBalance
	for _, allocation := range traversalOrder(allocations) {
		account, ok := locked[allocation.AccountID]
		if !ok {
			continue
		}
		ordered = append(ordered, allocationBalance{allocation: allocation, account: account})
	}
	byAllocation := make(map[string]domain.Account, len(ordered))
	for _, ab := range ordered {
		byAllocation[ab.allocation.AllocationID] = ab.account
	}

	transfers, remaining := planCorrection(ordered, business.Currency)
	for _, t := range transfers {
		from, to := byAllocation[t.FromAllocationID], byAllocation[t.ToAllocationID]
		if _, err := s.ledger.TransferTx(ctx, tx, from, to, t.Amount); err != nil {
			return nil, fmt.Errorf("failed to move %s from %s to %s: %w", t.Amount, t.FromAllocationID, t.ToAllocationID, err)
		}
	}
	result.Transfers = transfers
	result.Remaining = remaining

	if business.Status == domain.BusinessSuspendedExpenditure && remaining.IsZero() {
		if err := tx.Businesses().UpdateBusinessStatus(ctx, businessID, domain.BusinessActive, now); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// RunDueCorrections first reviews every business with a negative account or a suspension,
// so a business whose adjustment event never reached OnAdjustment is still suspended or
// scheduled. It then claims due jobs, plus RUNNING jobs whose lease has lapsed, and runs
// them one by one. A failed job is kept as FAILED with its cause; a successful one is
// removed. Jobs left unrun when ctx ends are put back to SCHEDULED.
func (s *negativeBalanceService) RunDueCorrections(ctx context.Context, now time.Time) (*domain.CorrectionRunSummary, error) {
	summary := &domain.CorrectionRunSummary{}
	reviewed, err := s.reviewBusinesses(ctx)
	if err != nil {
		return nil, err
	}
	summary.Reviewed = reviewed

	lease := s.settings.CorrectionLease
	if lease <= 0 {
		lease = DefaultSettings().CorrectionLease
	}
	var jobs []domain.CorrectionJob
	err = s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		jobs, err = tx.CorrectionJobs().ClaimDueCorrectionJobs(ctx, now.UTC(), now.UTC().Add(-lease), max(s.settings.CorrectionBatchSize, 1))
		return err
	})
	if err != nil {
		return nil, err
	}
	summary.Claimed = len(jobs)

	next := 0
	for ; next < len(jobs) && ctx.Err() == nil; next++ {
		job := jobs[next]
		_, runErr := s.CorrectNegativeBalances(ctx, job.BusinessID)
		interrupted := runErr != nil && ctx.Err() != nil
		err := s.store.WithinTx(context.WithoutCancel(ctx), func(ctx context.Context, tx portsrepo.Tx) error {
			switch {
			case runErr == nil:
				return tx.CorrectionJobs().DeleteCorrectionJob(ctx, job.BusinessID)
			case interrupted:
				return tx.CorrectionJobs().ReleaseCorrectionJob(ctx, job.BusinessID, s.Now())
			default:
				return tx.CorrectionJobs().FailCorrectionJob(ctx, job.BusinessID, runErr.Error(), s.Now())
			}
		})
		if err != nil {
			s.LogError(ctx, err, "Failed to record correction job result", slog.String("business_id", job.BusinessID))
		}
		switch {
		case runErr == nil:
			summary.Corrected++
		case interrupted:
			summary.Released++
		default:
			summary.Failed++
		}
	}
	if next < len(jobs) {
		summary.Released += s.releaseJobs(context.WithoutCancel(ctx), jobs[next:])
	}

	s.GetLogger(ctx).Info("Due corrections processed",
		slog.Int("reviewed", summary.Reviewed),
		slog.Int("claimed", summary.Claimed),
		slog.Int("corrected", summary.Corrected),
		slog.Int("failed", summary.Failed),
		slog.Int("released", summary.Released))
	return summary, ctx.Err()
}

// reviewBusinesses runs reviewBusiness for every business that may need it. Failures are
// logged per business and do not stop the review.
func (s *negativeBalanceService) reviewBusinesses(ctx context.Context) (int, error) {
	var ids []string
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		ids, err = tx.Businesses().FindBusinessIDsNeedingReview(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to list businesses needing review: %w", err)
	}
	reviewed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		if err := s.reviewBusiness(ctx, id); err != nil {
			s.LogError(ctx, err, "Business balance review failed", slog.String("business_id", id))
			continue
		}
		reviewed++
	}
	return reviewed, nil
}

func (s *negativeBalanceService) releaseJobs(ctx context.Context, jobs []domain.CorrectionJob) int {
	released := 0
	for _, job := range jobs {
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			return tx.CorrectionJobs().ReleaseCorrectionJob(ctx, job.BusinessID, s.Now())
		})
		if err != nil {
			s.LogError(ctx, err, "Failed to release correction job", slog.String("business_id", job.BusinessID))
			continue
		}
		released++
	}
	return released
}
