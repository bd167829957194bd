package services

import (
	"context"
	"log/slog"
	"sync"

	"github.com/SscSPs/card_ledger/internal/core/domain"
	portssvc "github.com/SscSPs/card_ledger/internal/core/ports/services"
)

// AdjustmentDispatcher fans persisted adjustments out to a listener on a bounded queue.
// Publish never blocks: when the queue is full the event is dropped and logged. The
// business review at the start of RunDueCorrections re-evaluates every business with a
// negative account, so a dropped event delays suspension or scheduling until the next run.
type AdjustmentDispatcher struct {
	events  chan domain.AdjustmentPersisted
	workers int
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewAdjustmentDispatcher creates a dispatcher; call Start before publishing.
func NewAdjustmentDispatcher(queueSize, workers int, logger *slog.Logger) *AdjustmentDispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdjustmentDispatcher{
		events:  make(chan domain.AdjustmentPersisted, max(queueSize, 1)),
		workers: max(workers, 1),
		logger:  logger,
	}
}

var _ portssvc.AdjustmentPublisher = (*AdjustmentDispatcher)(nil)

// Publish enqueues the event.
func (d *AdjustmentDispatcher) Publish(event domain.AdjustmentPersisted) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return
	}
	select {
	case d.events <- event:
	default:
		d.logger.Warn("Adjustment queue full, dropping event",
			slog.String("adjustment_id", event.AdjustmentID),
			slog.String("business_id", event.BusinessID))
	}
}

// Start runs the workers until Stop is called.
func (d *AdjustmentDispatcher) Start(ctx context.Context, listener portssvc.AdjustmentListener) {
	for range d.workers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for event := range d.events {
				if err := listener.OnAdjustment(ctx, event); err != nil {
					d.logger.Error("Adjustment listener failed",
						slog.String("adjustment_id", event.AdjustmentID),
						slog.String("business_id", event.BusinessID),
						slog.String("error", err.Error()))
				}
			}
		}()
	}
}

// Stop closes the queue, drains what is buffered and waits for the workers.
func (d *AdjustmentDispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()
	d.wg.Wait()
}
