// Package models defines the wire and storage shapes shared across the
// ingestion, queue, worker, and store layers.
package models

import (
	"encoding/json"
	"time"
)

// Event is the validated, internal representation of a submitted
// record. All fields are required and non-empty by the time an Event
// exists; parsing is total at the boundary (see handlers.parseBatch).
type Event struct {
	Topic     string          `json:"topic"`
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// Key returns the deduplication key for this event.
func (e Event) Key() EventKey {
	return EventKey{Topic: e.Topic, EventID: e.EventID}
}

// EventKey is the unique pair (topic, event_id) that identifies an event.
type EventKey struct {
	Topic   string
	EventID string
}

// StoredEvent is a durably persisted Event, owned exclusively by the
// dedup store. Seq is assigned on first successful insert and is the
// secondary, stable sort key for events_by_topic.
type StoredEvent struct {
	Seq         int64           `json:"seq"`
	Topic       string          `json:"topic"`
	EventID     string          `json:"event_id"`
	Timestamp   time.Time       `json:"timestamp"`
	Source      string          `json:"source"`
	Payload     json.RawMessage `json:"payload"`
	ProcessedAt time.Time       `json:"processed_at"`
}

// InsertOutcome is the two-variant result of try_insert. It replaces
// exception-driven duplicate detection with an explicit result type, so
// error returns are reserved for genuine store failures.
type InsertOutcome int

const (
	// Inserted means the event was new and is now durably stored.
	Inserted InsertOutcome = iota
	// Duplicate means an event with the same (topic, event_id) already existed.
	Duplicate
)

func (o InsertOutcome) String() string {
	if o == Inserted {
		return "INSERTED"
	}
	return "DUPLICATE_DROPPED"
}

// Counters is a point-in-time snapshot of the aggregate counters.
type Counters struct {
	Received         int64
	UniqueProcessed  int64
	DuplicateDropped int64
}

// EventInput is a single event exactly as it arrives on the wire,
// before timestamp parsing and field validation.
type EventInput struct {
	Topic     string          `json:"topic"`
	EventID   string          `json:"event_id"`
	Timestamp string          `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// PublishRequest is the POST /publish body.
type PublishRequest struct {
	Events []EventInput `json:"events"`
}

// PublishResponse is returned by POST /publish. Queued is populated in
// queued mode; Inserted/Duplicate are populated in atomic mode. Fields
// with a zero value are omitted, so an atomic response with no
// duplicates has no duplicate key.
type PublishResponse struct {
	Accepted  int `json:"accepted"`
	Queued    int `json:"queued,omitempty"`
	Inserted  int `json:"inserted,omitempty"`
	Duplicate int `json:"duplicate,omitempty"`
}

// StatsResponse is returned by GET /stats.
type StatsResponse struct {
	Received         int64    `json:"received"`
	UniqueProcessed  int64    `json:"unique_processed"`
	DuplicateDropped int64    `json:"duplicate_dropped"`
	DedupRatePercent float64  `json:"dedup_rate_percent"`
	Topics           []string `json:"topics"`
	UptimeSeconds    float64  `json:"uptime_seconds"`
}

// QueueStatsResponse is returned by GET /queue/stats.
type QueueStatsResponse struct {
	QueueSize      int64  `json:"queue_size"`
	QueueType      string `json:"queue_type"`
	WorkerCount    int    `json:"worker_count"`
	WorkersEnabled bool   `json:"workers_enabled"`
	DeadLettered   int64  `json:"dead_lettered"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status   string  `json:"status"`
	Database bool    `json:"database"`
	Queue    bool    `json:"queue"`
	Uptime   float64 `json:"uptime_seconds"`
}

// ErrorResponse is the small JSON error body used across the API.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}
