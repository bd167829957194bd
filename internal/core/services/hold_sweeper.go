package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/platform/metrics"
)

type holdSweeper struct {
	BaseService
	store    portsrepo.TransactionManager
	locker   portssvc.Locker
	holds    portssvc.HoldTxSvc
	notifier portssvc.Notifier
	settings Settings
}

// NewHoldSweeper creates the periodic hold expiry job.
func NewHoldSweeper(store portsrepo.TransactionManager, locker portssvc.Locker, holds portssvc.HoldTxSvc, notifier portssvc.Notifier, settings Settings) portssvc.HoldSweeperSvc {
	return &holdSweeper{
		BaseService: BaseService{clock: settings.Clock},
		store:       store,
		locker:      locker,
		holds:       holds,
		notifier:    notifier,
		settings:    settings,
	}
}

var _ portssvc.HoldSweeperSvc = (*holdSweeper)(nil)

// SweepExpiredHolds expires PLACED holds whose expiration lies in [now-lookback, now].
// A hold that fails to expire is counted and left for the next run.
func (s *holdSweeper) SweepExpiredHolds(ctx context.Context, now time.Time) (*domain.SweepSummary, error) {
	logger := s.GetLogger(ctx)
	now = now.UTC()
	from := now.Add(-s.settings.HoldSweepLookback)
	batchSize := max(s.settings.HoldSweepBatchSize, 1)
	concurrency := max(s.settings.HoldSweepConcurrency, 1)

	summary := &domain.SweepSummary{ByBusiness: map[string]domain.BusinessExpiry{}}
	attempted := map[string]struct{}{}

	for {
		var batch []domain.Hold
		err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			var err error
			batch, err = tx.Holds().FindExpiredPlacedHolds(ctx, from, now, batchSize)
			return err
		})
		if err != nil {
			return summary, err
		}

		pending := make([]domain.Hold, 0, len(batch))
		for _, h := range batch {
			if _, seen := attempted[h.HoldID]; !seen {
				attempted[h.HoldID] = struct{}{}
				pending = append(pending, h)
			}
		}
		if len(pending) == 0 {
			break
		}

		results := make([]sweepResult, len(pending))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(concurrency)
		for i, hold := range pending {
			g.Go(func() error {
				results[i] = s.expireOne(gctx, hold, now)
				return nil
			})
		}
		_ = g.Wait()

		for i, r := range results {
			switch {
			case r.err != nil:
				summary.Failed++
				s.LogError(ctx, r.err, "Failed to expire hold", slog.String("hold_id", pending[i].HoldID))
			case r.expired:
				summary.Expired++
				agg, ok := summary.ByBusiness[pending[i].BusinessID]
				if !ok {
					agg.Amount = domain.ZeroAmount(pending[i].Amount.Currency)
				}
				agg.Count++
				agg.Amount = agg.Amount.Add(pending[i].Amount.Abs())
				summary.ByBusiness[pending[i].BusinessID] = agg
			}
		}

		if len(batch) < batchSize || ctx.Err() != nil {
			break
		}
	}

	metrics.AddHoldsExpired("expired", summary.Expired)
	metrics.AddHoldsExpired("failed", summary.Failed)
	logger.Info("Hold expiry sweep finished",
		slog.Int("expired", summary.Expired),
		slog.Int("failed", summary.Failed),
		slog.Int("businesses", len(summary.ByBusiness)))

	s.notify(ctx, summary, now)
	return summary, ctx.Err()
}

type sweepResult struct {
	expired bool
	err     error
}

func (s *holdSweeper) expireOne(ctx context.Context, hold domain.Hold, now time.Time) sweepResult {
	var expired bool
	err := s.locker.WithLock(ctx, AccountLockKey(hold.AccountID), func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			var err error
			expired, err = s.holds.ExpireTx(ctx, tx, hold.HoldID)
			if err != nil || !expired {
				return err
			}
			return s.markAuthorizationExpired(ctx, tx, hold, now)
		})
	})
	return sweepResult{expired: expired, err: err}
}

// markAuthorizationExpired moves the hold's authorization to EXPIRED and records the release.
func (s *holdSweeper) markAuthorizationExpired(ctx context.Context, tx portsrepo.Tx, hold domain.Hold, now time.Time) error {
	activity := domain.AccountActivity{
		ActivityID:   uuid.NewString(),
		BusinessID:   hold.BusinessID,
		AccountID:    hold.AccountID,
		CardID:       hold.CardID,
		Type:         domain.ActivityHoldRelease,
		Status:       domain.ActivityExpired,
		Amount:       hold.Amount,
		HoldID:       hold.HoldID,
		ActivityTime: now,
	}

	if hold.NetworkMessageID != "" {
		message, err := tx.NetworkMessages().FindNetworkMessageByID(ctx, hold.NetworkMessageID)
		if err != nil {
			return err
		}
		activity.AllocationID = message.AllocationID
		activity.NetworkMessageID = message.NetworkMessageID
		activity.MerchantName = message.Merchant.Name

		authID := message.NetworkMessageID
		if message.GroupID != "" && message.GroupID != message.NetworkMessageID {
			auth, err := tx.NetworkMessages().FindNetworkMessageByID(ctx, message.GroupID)
			if err != nil {
				return err
			}
			authID = auth.NetworkMessageID
		}
		if _, err := tx.NetworkMessages().TransitionNetworkMessage(ctx, authID, domain.StatusApproved, domain.StatusExpired, now); err != nil {
			return err
		}
	}
	return tx.Activities().SaveActivity(ctx, activity)
}

func (s *holdSweeper) notify(ctx context.Context, summary *domain.SweepSummary, now time.Time) {
	if s.notifier == nil {
		return
	}
	detached := context.WithoutCancel(ctx)
	for businessID, agg := range summary.ByBusiness {
		notice := domain.HoldExpiryNotice{
			BusinessID: businessID,
			Count:      agg.Count,
			Amount:     agg.Amount,
			SweptAt:    now,
		}
		go s.notifier.HoldsExpired(detached, notice)
	}
}
