// Package storetest provides an in-memory store.Store double for unit
// tests that exercise the ingestion and worker-pool logic without a
// live Postgres instance. It implements the same serialization
// guarantees the real store provides (one winner per key) using a
// mutex instead of a unique constraint.
package storetest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// FakeStore is a mutex-guarded, in-process implementation of store.Store.
type FakeStore struct {
	mu       sync.Mutex
	byKey    map[models.EventKey]models.StoredEvent
	nextSeq  int64
	counters models.Counters
	auditLen int
}

// New returns an empty FakeStore.
func New() *FakeStore {
	return &FakeStore{byKey: make(map[models.EventKey]models.StoredEvent)}
}

// TryInsert implements store.Store.
func (f *FakeStore) TryInsert(_ context.Context, event models.Event, _ string) (models.InsertOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tryInsertLocked(event)
}

func (f *FakeStore) tryInsertLocked(event models.Event) (models.InsertOutcome, error) {
	key := event.Key()
	if _, exists := f.byKey[key]; exists {
		f.auditLen++
		return models.Duplicate, nil
	}
	f.nextSeq++
	f.byKey[key] = models.StoredEvent{
		Seq:         f.nextSeq,
		Topic:       event.Topic,
		EventID:     event.EventID,
		Timestamp:   event.Timestamp,
		Source:      event.Source,
		Payload:     event.Payload,
		ProcessedAt: time.Now().UTC(),
	}
	f.auditLen++
	return models.Inserted, nil
}

// ApplyEvent implements store.Store.
func (f *FakeStore) ApplyEvent(ctx context.Context, event models.Event, workerID string) (models.InsertOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	outcome, err := f.tryInsertLocked(event)
	if err != nil {
		return outcome, err
	}
	if outcome == models.Inserted {
		f.counters.UniqueProcessed++
	} else {
		f.counters.DuplicateDropped++
	}
	return outcome, nil
}

// ApplyBatch implements store.Store.
func (f *FakeStore) ApplyBatch(ctx context.Context, events []models.Event) (inserted, duplicate int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, event := range events {
		outcome, err := f.tryInsertLocked(event)
		if err != nil {
			return 0, 0, err
		}
		if outcome == models.Inserted {
			inserted++
		} else {
			duplicate++
		}
	}
	f.counters.UniqueProcessed += int64(inserted)
	f.counters.DuplicateDropped += int64(duplicate)
	return inserted, duplicate, nil
}

// IncrementReceived implements store.Store.
func (f *FakeStore) IncrementReceived(_ context.Context, n int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters.Received += n
	return nil
}

// EventsByTopic implements store.Store.
func (f *FakeStore) EventsByTopic(_ context.Context, topic string, limit int) ([]models.StoredEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.StoredEvent
	for _, ev := range f.byKey {
		if ev.Topic == topic {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.After(out[j].Timestamp)
		}
		return out[i].Seq > out[j].Seq
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Counters implements store.Store.
func (f *FakeStore) Counters(_ context.Context) (models.Counters, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters, nil
}

// Topics implements store.Store.
func (f *FakeStore) Topics(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	seen := map[string]bool{}
	var topics []string
	for key := range f.byKey {
		if !seen[key.Topic] {
			seen[key.Topic] = true
			topics = append(topics, key.Topic)
		}
	}
	sort.Strings(topics)
	return topics, nil
}

// ResetMetrics implements store.Store.
func (f *FakeStore) ResetMetrics(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counters = models.Counters{}
	return nil
}

// DeleteEvents implements store.Store.
func (f *FakeStore) DeleteEvents(_ context.Context, topic string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for key := range f.byKey {
		if topic == "" || key.Topic == topic {
			delete(f.byKey, key)
			n++
		}
	}
	return n, nil
}

// Ping implements store.Store.
func (f *FakeStore) Ping(_ context.Context) error { return nil }

// Close implements store.Store.
func (f *FakeStore) Close() {}
