package store

import (
	"context"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// Store is the durable dedup store contract. Implementations must make
// TryInsert/ApplyEvent/ApplyBatch serialize concurrent inserts of the
// same (topic, event_id) key so that exactly one caller observes
// Inserted.
type Store interface {
	// TryInsert atomically inserts a StoredEvent if its key is absent.
	// It does not touch the counters.
	TryInsert(ctx context.Context, event models.Event, workerID string) (models.InsertOutcome, error)

	// ApplyEvent performs TryInsert and the matching counter increment
	// in one transaction.
	ApplyEvent(ctx context.Context, event models.Event, workerID string) (models.InsertOutcome, error)

	// ApplyBatch performs TryInsert for every event in one transaction
	// and applies both counter deltas at the end.
	ApplyBatch(ctx context.Context, events []models.Event) (inserted, duplicate int, err error)

	// IncrementReceived atomically adds n to the received counter.
	IncrementReceived(ctx context.Context, n int64) error

	// EventsByTopic returns up to limit StoredEvents for topic, ordered
	// by descending timestamp with insert sequence breaking ties.
	EventsByTopic(ctx context.Context, topic string, limit int) ([]models.StoredEvent, error)

	// Counters returns a point-in-time snapshot of the aggregate counters.
	Counters(ctx context.Context) (models.Counters, error)

	// Topics returns the distinct set of topics with at least one
	// stored event, in arbitrary stable order.
	Topics(ctx context.Context) ([]string, error)

	// ResetMetrics zeroes the counters. It does not delete events.
	ResetMetrics(ctx context.Context) error

	// DeleteEvents deletes events for topic, or all events if topic is
	// empty, returning the number of rows removed.
	DeleteEvents(ctx context.Context, topic string) (int64, error)

	// Ping verifies connectivity to the backing store.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close()
}
