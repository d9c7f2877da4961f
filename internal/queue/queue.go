// Package queue implements the durable FIFO buffer between ingestion
// and the worker pool. Entries are returned to at most one caller
// (competing consumers); this implementation intentionally omits
// visibility-timeout/acknowledgement semantics, so a worker crash
// between Dequeue and a successful ApplyEvent commit drops that one
// entry. Losses are bounded to entries in flight at crash time.
package queue

import (
	"context"
	"time"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// Entry is a dequeued Event plus an ordinal. InMemoryQueue numbers
// entries 1, 2, 3, ... in the order they are taken, which for a FIFO is
// also enqueue order; RedisQueue stores no ordinal and leaves it zero.
type Entry struct {
	Event   models.Event
	Ordinal int64
}

// Queue is the contract both the Redis-backed queue and the in-memory
// test double satisfy.
type Queue interface {
	// Enqueue appends event, returning once it is durably recorded.
	Enqueue(ctx context.Context, event models.Event) error

	// Dequeue blocks up to timeout for the next entry in FIFO order. ok
	// is false on timeout (not an error).
	Dequeue(ctx context.Context, timeout time.Duration) (entry Entry, ok bool, err error)

	// Size returns a best-effort snapshot of the current queue depth.
	Size(ctx context.Context) (int64, error)

	// Close releases the queue's resources.
	Close() error
}
