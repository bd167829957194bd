package pgsql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AdvisoryLocker implements keyed critical sections with session level advisory
// locks, so every replica sharing the database is serialized. The lock holds a
// pool connection for the duration of fn; size the pool for lock holders plus
// their transactions.
type AdvisoryLocker struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	logger  *slog.Logger
}

var _ portssvc.Locker = (*AdvisoryLocker)(nil)

func NewAdvisoryLocker(pool *pgxpool.Pool, timeout time.Duration, logger *slog.Logger) *AdvisoryLocker {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdvisoryLocker{pool: pool, timeout: timeout, logger: logger}
}

func (l *AdvisoryLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	acquireCtx := ctx
	if l.timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	conn, err := l.pool.Acquire(acquireCtx)
	if err != nil {
		if acquireCtx.Err() != nil {
			return fmt.Errorf("%w: %s", apperrors.ErrLockTimeout, key)
		}
		return fmt.Errorf("failed to acquire connection for lock %s: %w", key, err)
	}
	defer conn.Release()

	if _, err := conn.Exec(acquireCtx, `SELECT pg_advisory_lock(hashtextextended($1, 0));`, key); err != nil {
		if acquireCtx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: %s", apperrors.ErrLockTimeout, key)
		}
		return fmt.Errorf("failed to take advisory lock %s: %w", key, err)
	}
	defer func() {
		unlockCtx := context.WithoutCancel(ctx)
		if _, err := conn.Exec(unlockCtx, `SELECT pg_advisory_unlock(hashtextextended($1, 0));`, key); err != nil {
			// Closing the session releases every lock it holds.
			l.logger.Error("Failed to release advisory lock, closing connection",
				slog.String("key", key), slog.String("error", err.Error()))
			_ = conn.Conn().Close(unlockCtx)
		}
	}()

	return fn(ctx)
}
