// Package aggregator buffers bursty producer events per source key and
// collapses each cooldown window into a single digest publication.
package aggregator

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Aggregator owns one PendingBatch per hot source key. A single mutex
// guards the batch map, so a flush removing a batch and a Record
// re-creating one can never interleave: an event arriving after
// flush-start always lands in a fresh batch with its own timer.
//
// The flush window is fixed, not sliding. The timer is armed once, on
// the first event of a cold key, and never reset, which bounds the
// worst-case notification latency to one window.
type Aggregator struct {
	mu        sync.Mutex
	batches   map[string]*domain.PendingBatch
	window    time.Duration
	publisher contract.IPublisher
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

var _ contract.IAggregator = (*Aggregator)(nil)

func New(log *slog.Logger, publisher contract.IPublisher, window time.Duration) *Aggregator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Aggregator{
		batches:   make(map[string]*domain.PendingBatch),
		window:    window,
		publisher: publisher,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Record buffers an event into its source key's batch, last status
// wins per subject. The first event for a cold key schedules the one
// and only flush for this window.
func (a *Aggregator) Record(e domain.Event) {
	if !e.Valid() {
		a.log.Warn("Dropping malformed event", "source", e.SourceKey, "kind", e.Kind)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	batch, ok := a.batches[e.SourceKey]
	if !ok {
		batch = domain.NewPendingBatch(e.SourceKey, time.Now().UTC().Add(a.window))
		a.batches[e.SourceKey] = batch
		key := e.SourceKey
		time.AfterFunc(a.window, func() { a.flush(key) })
	}
	batch.Record(e)
}

// flush runs in the timer goroutine, one per key, so a delivery
// blocking on the network never stalls another key's window.
func (a *Aggregator) flush(sourceKey string) {
	a.mu.Lock()
	batch := a.batches[sourceKey]
	delete(a.batches, sourceKey)
	a.mu.Unlock()

	if batch == nil || batch.Empty() {
		return
	}
	if a.ctx.Err() != nil {
		a.log.Debug("Aggregator stopped, discarding flush", "source", sourceKey)
		return
	}

	digest := batch.Drain(time.Now().UTC())
	if digest.Empty() {
		return
	}

	err := a.publisher.Publish(a.ctx, sourceKey, digest.Render(), digest.Kind())
	if err != nil {
		// Failure stays local to this key; the next window starts clean.
		a.log.Error("Digest publication failed", "source", sourceKey, "error", err)
	}
}

// Pending reports how many keys currently hold a buffered batch.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.batches)
}

// Stop discards flushes that fire after shutdown started.
func (a *Aggregator) Stop() {
	a.cancel()
}
