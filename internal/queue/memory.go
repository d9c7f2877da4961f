package queue

import (
	"context"
	"sync"
	"time"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// InMemoryQueue is a test double selected via USE_INMEMORY_QUEUE. It is
// not durable — entries do not survive a process restart — and is not
// a production substitute for RedisQueue.
type InMemoryQueue struct {
	mu      sync.Mutex
	items   []models.Event
	ordinal int64
	notify  chan struct{}
	closed  bool
}

// NewInMemoryQueue returns an empty InMemoryQueue.
func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{notify: make(chan struct{}, 1)}
}

// Enqueue implements Queue.
func (q *InMemoryQueue) Enqueue(_ context.Context, event models.Event) error {
	q.mu.Lock()
	q.items = append(q.items, event)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue implements Queue, blocking up to timeout for an item.
func (q *InMemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (Entry, bool, error) {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if entry, ok := q.tryTake(); ok {
			return entry, true, nil
		}
		if q.isClosed() {
			// Pass the wake-up on so every other blocked caller also sees Close.
			select {
			case q.notify <- struct{}{}:
			default:
			}
			return Entry{}, false, nil
		}

		select {
		case <-ctx.Done():
			return Entry{}, false, ctx.Err()
		case <-deadline.C:
			return Entry{}, false, nil
		case <-q.notify:
			// loop and retry the take; another waiter may have won the race.
		}
	}
}

func (q *InMemoryQueue) tryTake() (Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return Entry{}, false
	}
	event := q.items[0]
	q.items = q.items[1:]
	q.ordinal++
	return Entry{Event: event, Ordinal: q.ordinal}, true
}

func (q *InMemoryQueue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Size implements Queue.
func (q *InMemoryQueue) Size(_ context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.items)), nil
}

// Close implements Queue, waking any blocked Dequeue callers.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}
