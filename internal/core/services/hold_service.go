package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	"github.com/SscSPs/card_ledger/internal/core/domain"
	portsrepo "github.com/SscSPs/card_ledger/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
)

// holdService places and terminates holds. Every mutation of an account's holds runs
// under that account's lock.
type holdService struct {
	BaseService
	store  portsrepo.TransactionManager
	locker portssvc.Locker
	ledger portssvc.LedgerTxSvc
}

// NewHoldService creates a new HoldService.
func NewHoldService(store portsrepo.TransactionManager, locker portssvc.Locker, ledger portssvc.LedgerTxSvc, settings Settings) portssvc.HoldSvcFacade {
	return &holdService{
		BaseService: BaseService{clock: settings.Clock},
		store:       store,
		locker:      locker,
		ledger:      ledger,
	}
}

var _ portssvc.HoldSvcFacade = (*holdService)(nil)

func (s *holdService) Place(ctx context.Context, req domain.PlaceHoldRequest) (*domain.Hold, error) {
	var hold *domain.Hold
	err := s.locker.WithLock(ctx, AccountLockKey(req.AccountID), func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			var err error
			hold, err = s.PlaceTx(ctx, tx, req)
			return err
		})
	})
	return hold, err
}

// PlaceTx places a hold. It rejects the hold when it would take the available balance below zero.
func (s *holdService) PlaceTx(ctx context.Context, tx portsrepo.Tx, req domain.PlaceHoldRequest) (*domain.Hold, error) {
	if req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: hold amount must not be positive", apperrors.ErrValidation)
	}
	account, err := tx.Accounts().FindAccountForUpdate(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if err := account.LedgerBalance.SameCurrency(req.Amount); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrValidation, err)
	}
	available, err := s.ledger.AvailableBalanceTx(ctx, tx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if available.Add(req.Amount).IsNegative() {
		return nil, fmt.Errorf("%w: available %s, hold %s", apperrors.ErrInsufficientFunds, available, req.Amount.Abs())
	}

	now := s.Now()
	hold := domain.Hold{
		HoldID:           uuid.NewString(),
		BusinessID:       account.BusinessID,
		AccountID:        account.AccountID,
		CardID:           req.CardID,
		NetworkMessageID: req.NetworkMessageID,
		Amount:           req.Amount,
		Status:           domain.HoldPlaced,
		ExpirationDate:   req.ExpirationDate.UTC(),
		Version:          1,
		AuditFields:      domain.AuditFields{CreatedAt: now, LastUpdatedAt: now},
	}
	if err := tx.Holds().SaveHold(ctx, hold); err != nil {
		return nil, fmt.Errorf("failed to save hold: %w", err)
	}
	return &hold, nil
}

func (s *holdService) Release(ctx context.Context, holdID string) (bool, error) {
	return s.terminate(ctx, holdID, domain.HoldReleased)
}

func (s *holdService) Expire(ctx context.Context, holdID string) (bool, error) {
	return s.terminate(ctx, holdID, domain.HoldExpired)
}

func (s *holdService) terminate(ctx context.Context, holdID string, to domain.HoldStatus) (bool, error) {
	hold, err := s.findHold(ctx, holdID)
	if err != nil {
		return false, err
	}
	var transitioned bool
	err = s.locker.WithLock(ctx, AccountLockKey(hold.AccountID), func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			var err error
			transitioned, err = tx.Holds().TransitionPlacedHold(ctx, holdID, to, s.Now())
			return err
		})
	})
	if err != nil {
		return false, err
	}
	if !transitioned {
		s.GetLogger(ctx).Debug("Hold already terminal", slog.String("hold_id", holdID), slog.String("requested_status", string(to)))
	}
	return transitioned, nil
}

func (s *holdService) ReleaseTx(ctx context.Context, tx portsrepo.Tx, holdID string) (bool, error) {
	return tx.Holds().TransitionPlacedHold(ctx, holdID, domain.HoldReleased, s.Now())
}

func (s *holdService) ExpireTx(ctx context.Context, tx portsrepo.Tx, holdID string) (bool, error) {
	return tx.Holds().TransitionPlacedHold(ctx, holdID, domain.HoldExpired, s.Now())
}

func (s *holdService) Replace(ctx context.Context, oldHoldID string, newAmount domain.Amount, newExpiration time.Time) (*domain.Hold, error) {
	old, err := s.findHold(ctx, oldHoldID)
	if err != nil {
		return nil, err
	}
	var hold *domain.Hold
	err = s.locker.WithLock(ctx, AccountLockKey(old.AccountID), func(ctx context.Context) error {
		return s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
			current, err := tx.Holds().FindHoldByID(ctx, oldHoldID)
			if err != nil {
				return err
			}
			hold, err = s.ReplaceTx(ctx, tx, *current, newAmount, newExpiration, current.NetworkMessageID)
			return err
		})
	})
	return hold, err
}

// ReplaceTx releases old and places a hold for newAmount in the same transaction.
// The released amount counts towards the funds check of the new hold.
func (s *holdService) ReplaceTx(ctx context.Context, tx portsrepo.Tx, old domain.Hold, newAmount domain.Amount, newExpiration time.Time, networkMessageID string) (*domain.Hold, error) {
	released, err := tx.Holds().TransitionPlacedHold(ctx, old.HoldID, domain.HoldReleased, s.Now())
	if err != nil {
		return nil, err
	}
	if !released {
		return nil, fmt.Errorf("%w: hold %s is no longer placed", apperrors.ErrInvalidStateTransition, old.HoldID)
	}
	return s.PlaceTx(ctx, tx, domain.PlaceHoldRequest{
		AccountID:        old.AccountID,
		CardID:           old.CardID,
		NetworkMessageID: networkMessageID,
		Amount:           newAmount,
		ExpirationDate:   newExpiration,
	})
}

func (s *holdService) findHold(ctx context.Context, holdID string) (*domain.Hold, error) {
	var hold *domain.Hold
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx portsrepo.Tx) error {
		var err error
		hold, err = tx.Holds().FindHoldByID(ctx, holdID)
		return err
	})
	return hold, err
}
