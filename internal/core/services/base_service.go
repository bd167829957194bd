package services

import (
	"context"
	"log/slog"
	"sort"
	"time"

	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
	"github.com/SscSPs/card_ledger/internal/middleware"
)

// BaseService provides common functionality for all services
type BaseService struct {
	clock func() time.Time
}

// Now returns the current time in UTC from the configured clock.
func (s *BaseService) Now() time.Time {
	if s.clock != nil {
		return s.clock().UTC()
	}
	return time.Now().UTC()
}

// GetLogger gets the logger from context or returns a default one
func (s *BaseService) GetLogger(ctx context.Context) *slog.Logger {
	return middleware.GetLoggerFromCtx(ctx)
}

// LogError logs an error with consistent formatting
func (s *BaseService) LogError(ctx context.Context, err error, msg string, keyvals ...any) {
	args := make([]any, 0, len(keyvals)+1)
	args = append(args, slog.String("error", err.Error()))
	args = append(args, keyvals...)
	s.GetLogger(ctx).Error(msg, args...)
}

// AccountLockKey is the critical section key guarding an account's balances and holds.
func AccountLockKey(accountID string) string {
	return "account:" + accountID
}

// BusinessLockKey is the critical section key guarding a business's status and corrections.
func BusinessLockKey(businessID string) string {
	return "business:" + businessID
}

func cardRefLockKey(externalRef string) string {
	return "card-ref:" + externalRef
}

// withLocks acquires every key in ascending order, then runs fn.
// Holding keys in a single global order keeps multi-key callers deadlock free.
func withLocks(ctx context.Context, locker portssvc.Locker, keys []string, fn func(ctx context.Context) error) error {
	unique := make([]string, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		unique = append(unique, k)
	}
	sort.Strings(unique)
	return lockChain(ctx, locker, unique, fn)
}

func lockChain(ctx context.Context, locker portssvc.Locker, keys []string, fn func(ctx context.Context) error) error {
	if len(keys) == 0 {
		return fn(ctx)
	}
	return locker.WithLock(ctx, keys[0], func(ctx context.Context) error {
		return lockChain(ctx, locker, keys[1:], fn)
	})
}
