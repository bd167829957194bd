package services

import (
	"context"

	"github.com/SscSPs/card_ledger/internal/core/domain"
)

// Locker provides keyed critical sections.
type Locker interface {
	// WithLock runs fn while holding the lock for key. The lock is released on every exit
	// path, panics included. Failing to acquire before ctx ends returns apperrors.ErrLockTimeout.
	WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error
}

// Notifier dispatches notifications. Implementations must not block the caller on delivery.
type Notifier interface {
	HoldsExpired(ctx context.Context, notice domain.HoldExpiryNotice)
	BusinessSuspended(ctx context.Context, notice domain.BusinessSuspensionNotice)
}
