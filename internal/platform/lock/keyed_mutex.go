// Package lock provides the in-process implementation of keyed critical sections.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SscSPs/card_ledger/internal/apperrors"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
)

type entry struct {
	sem  chan struct{}
	refs int
}

// KeyedMutex serializes work per key inside one process. Entries are dropped once no
// goroutine holds or waits for them.
type KeyedMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
	timeout time.Duration
}

var _ portssvc.Locker = (*KeyedMutex)(nil)

// NewKeyedMutex creates a locker. A positive timeout bounds the wait for each acquisition.
func NewKeyedMutex(timeout time.Duration) *KeyedMutex {
	return &KeyedMutex{entries: map[string]*entry{}, timeout: timeout}
}

func (k *KeyedMutex) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	acquireCtx := ctx
	if k.timeout > 0 {
		var cancel context.CancelFunc
		acquireCtx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	e := k.ref(key)
	select {
	case e.sem <- struct{}{}:
	case <-acquireCtx.Done():
		k.unref(key, e)
		return fmt.Errorf("%w: %s", apperrors.ErrLockTimeout, key)
	}
	defer func() {
		<-e.sem
		k.unref(key, e)
	}()

	return fn(ctx)
}

func (k *KeyedMutex) ref(key string) *entry {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[key]
	if !ok {
		e = &entry{sem: make(chan struct{}, 1)}
		k.entries[key] = e
	}
	e.refs++
	return e
}

func (k *KeyedMutex) unref(key string, e *entry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(k.entries, key)
	}
}

// size reports the number of live entries.
func (k *KeyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}
