// Package worker implements the pool of concurrent consumers that drive
// events from the Event Queue into the Dedup Store. Each worker owns
// no shared mutable state: concurrency safety comes entirely from the
// store's unique constraint, not from any lock in this package.
package worker

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aggregator/pubsub-log-aggregator/internal/logging"
	"github.com/aggregator/pubsub-log-aggregator/internal/models"
	"github.com/aggregator/pubsub-log-aggregator/internal/queue"
	"github.com/aggregator/pubsub-log-aggregator/internal/store"
)

// Retry policy for transient ApplyEvent failures: bounded exponential
// backoff starting at 50ms, doubling, capped at 1s.
const (
	maxAttempts  = 5
	initialDelay = 50 * time.Millisecond
	maxDelay     = time.Second
)

// Pool is a fixed number of homogeneous workers, each continuously
// pulling from q and applying events to st via ApplyEvent.
type Pool struct {
	q       queue.Queue
	st      store.Store
	count   int
	wg      sync.WaitGroup
	stop    chan struct{}
	dropped atomic.Int64
}

// New returns a Pool of count workers reading from q and writing to st.
// count is clamped to at least 1.
func New(q queue.Queue, st store.Store, count int) *Pool {
	if count < 1 {
		count = 1
	}
	return &Pool{q: q, st: st, count: count, stop: make(chan struct{})}
}

// Start launches the worker goroutines. It returns immediately.
func (p *Pool) Start() {
	for i := 0; i < p.count; i++ {
		workerID := fmt.Sprintf("worker-%d", i)
		p.wg.Add(1)
		go p.loop(workerID)
	}
	logging.Info().Int("worker_count", p.count).Msg("worker pool started")
}

// Stop signals every worker to stop pulling new entries and blocks
// until any in-flight ApplyEvent call has completed. Entries still in
// the queue remain for the next run.
func (p *Pool) Stop(ctx context.Context) error {
	close(p.stop)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DeadLettered returns the count of events dropped after exhausting the
// retry budget. Supplemental to the core contract; surfaced via
// /queue/stats.
func (p *Pool) DeadLettered() int64 {
	return p.dropped.Load()
}

func (p *Pool) loop(workerID string) {
	defer p.wg.Done()
	logging.Info().Str("worker_id", workerID).Msg("worker started")

	// dequeueCtx is cancelled by Stop, so a Dequeue blocked on an empty
	// queue returns at once instead of waiting out its poll timeout.
	dequeueCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stop:
		case <-dequeueCtx.Done():
		}
		cancel()
	}()

	for {
		select {
		case <-p.stop:
			logging.Info().Str("worker_id", workerID).Msg("worker stopping")
			return
		default:
		}

		entry, ok, err := p.q.Dequeue(dequeueCtx, 2*time.Second)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			logging.Warn().Str("worker_id", workerID).Err(err).Msg("dequeue error")
			continue
		}
		if !ok {
			// Timeout: loop back to the shutdown check.
			continue
		}

		p.processWithRetry(workerID, entry.Event)
	}
}

// processWithRetry applies event to the store, retrying transient
// failures with bounded exponential backoff. Persistent failures are
// logged and the event is dropped to avoid head-of-line blocking.
func (p *Pool) processWithRetry(workerID string, event models.Event) {
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		outcome, err := p.st.ApplyEvent(ctx, event, workerID)
		cancel()

		if err == nil {
			logging.Debug().
				Str("worker_id", workerID).
				Str("topic", event.Topic).
				Str("event_id", event.EventID).
				Str("outcome", outcome.String()).
				Msg("event applied")
			return
		}

		if attempt == maxAttempts {
			p.dropped.Add(1)
			logging.Error().
				Str("worker_id", workerID).
				Str("topic", event.Topic).
				Str("event_id", event.EventID).
				Err(err).
				Msg("dropping event after exhausting retry budget")
			return
		}

		logging.Warn().
			Str("worker_id", workerID).
			Str("topic", event.Topic).
			Str("event_id", event.EventID).
			Int("attempt", attempt).
			Err(err).
			Msg("transient store error, retrying")

		sleepWithJitter(delay)
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}

// sleepWithJitter sleeps for d plus up to 20% jitter, so that many
// workers retrying at once do not retry in lockstep.
func sleepWithJitter(d time.Duration) {
	jitter := time.Duration(rand.Int63n(int64(d) / 5))
	time.Sleep(d + jitter)
}
