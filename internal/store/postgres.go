package store

import (
	"context"
	_ "embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// schemaSQL is embedded so the service can self-bootstrap its database
// schema; starting the binary against a fresh database is enough, no
// separate migration step.
//
//go:embed schema.sql
var schemaSQL string

// PostgresStore is the durable, crash-safe persistence layer: events
// deduplicated on (topic, event_id), with aggregate counters updated
// atomically in the same transaction as the insert.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a connection pool and fails fast if the
// database is unreachable.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, databaseURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema applies schema.sql. Safe to run multiple times.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, schemaSQL)
	return err
}

// Ping is used by the health/readiness path to validate DB connectivity.
func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close shuts down the connection pool.
func (p *PostgresStore) Close() {
	p.pool.Close()
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx, letting
// tryInsertOn run standalone or inside a caller's transaction.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// TryInsert atomically inserts a StoredEvent if (topic, event_id) is
// absent. ON CONFLICT DO NOTHING ... RETURNING makes the duplicate case
// a normal query result (no row returned) rather than a thrown error,
// reserving the error return for genuine failures.
func (p *PostgresStore) TryInsert(ctx context.Context, event models.Event, workerID string) (models.InsertOutcome, error) {
	return p.tryInsertOn(ctx, p.pool, event, workerID)
}

func (p *PostgresStore) tryInsertOn(ctx context.Context, q querier, event models.Event, workerID string) (models.InsertOutcome, error) {
	var seq int64
	err := q.QueryRow(ctx, `
		INSERT INTO events(topic, event_id, ts, source, payload)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (topic, event_id) DO NOTHING
		RETURNING seq
	`, event.Topic, event.EventID, event.Timestamp, event.Source, []byte(event.Payload)).Scan(&seq)

	outcome := models.Inserted
	if errors.Is(err, pgx.ErrNoRows) {
		outcome = models.Duplicate
		err = nil
	}
	if err != nil {
		return models.Duplicate, err
	}

	if _, auditErr := q.Exec(ctx, `
		INSERT INTO audit_log(topic, event_id, action, worker_id) VALUES ($1,$2,$3,$4)
	`, event.Topic, event.EventID, outcome.String(), workerID); auditErr != nil {
		return models.Duplicate, auditErr
	}

	return outcome, nil
}

// ApplyEvent performs TryInsert and the matching counter increment in a
// single transaction, so a crash between the two is impossible: either
// both land or neither does. The counter update is an atomic
// `count = count + 1` expression evaluated by Postgres, never a
// client-side read-modify-write.
func (p *PostgresStore) ApplyEvent(ctx context.Context, event models.Event, workerID string) (models.InsertOutcome, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return models.Duplicate, err
	}
	defer tx.Rollback(ctx)

	outcome, err := p.tryInsertOn(ctx, tx, event, workerID)
	if err != nil {
		return models.Duplicate, err
	}

	column := "duplicate_dropped"
	if outcome == models.Inserted {
		column = "unique_processed"
	}
	if _, err := tx.Exec(ctx, `UPDATE metrics SET `+column+` = `+column+` + 1 WHERE id = 1`); err != nil {
		return models.Duplicate, err
	}

	return outcome, tx.Commit(ctx)
}

// ApplyBatch performs TryInsert for every event in events within one
// transaction, then applies both counter deltas at the end with two
// atomic increments. Two events in the batch sharing a key are
// resolved deterministically: exactly the first becomes Inserted, the
// rest Duplicate, because each TryInsert sees rows already written
// earlier in the same transaction.
func (p *PostgresStore) ApplyBatch(ctx context.Context, events []models.Event) (inserted, duplicate int, err error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, 0, err
	}
	defer tx.Rollback(ctx)

	for _, event := range events {
		outcome, err := p.tryInsertOn(ctx, tx, event, "")
		if err != nil {
			return 0, 0, err
		}
		if outcome == models.Inserted {
			inserted++
		} else {
			duplicate++
		}
	}

	if inserted > 0 {
		if _, err := tx.Exec(ctx, `UPDATE metrics SET unique_processed = unique_processed + $1 WHERE id = 1`, inserted); err != nil {
			return 0, 0, err
		}
	}
	if duplicate > 0 {
		if _, err := tx.Exec(ctx, `UPDATE metrics SET duplicate_dropped = duplicate_dropped + $1 WHERE id = 1`, duplicate); err != nil {
			return 0, 0, err
		}
	}

	return inserted, duplicate, tx.Commit(ctx)
}

// IncrementReceived atomically adds n to the received counter in its
// own, independent transaction.
func (p *PostgresStore) IncrementReceived(ctx context.Context, n int64) error {
	_, err := p.pool.Exec(ctx, `UPDATE metrics SET received = received + $1 WHERE id = 1`, n)
	return err
}

// EventsByTopic returns up to limit StoredEvents for topic, newest
// first, with insert sequence breaking timestamp ties.
func (p *PostgresStore) EventsByTopic(ctx context.Context, topic string, limit int) ([]models.StoredEvent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT seq, topic, event_id, ts, source, payload, processed_at
		FROM events
		WHERE topic = $1
		ORDER BY ts DESC, seq DESC
		LIMIT $2
	`, topic, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.StoredEvent, 0, limit)
	for rows.Next() {
		var ev models.StoredEvent
		var payload []byte
		if err := rows.Scan(&ev.Seq, &ev.Topic, &ev.EventID, &ev.Timestamp, &ev.Source, &payload, &ev.ProcessedAt); err != nil {
			return nil, err
		}
		ev.Payload = payload
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Counters returns a point-in-time snapshot; it is not required to be
// consistent with concurrent writes beyond read-committed semantics.
func (p *PostgresStore) Counters(ctx context.Context) (models.Counters, error) {
	var c models.Counters
	err := p.pool.QueryRow(ctx, `
		SELECT received, unique_processed, duplicate_dropped FROM metrics WHERE id = 1
	`).Scan(&c.Received, &c.UniqueProcessed, &c.DuplicateDropped)
	return c, err
}

// Topics returns the distinct topic list in arbitrary stable order.
func (p *PostgresStore) Topics(ctx context.Context) ([]string, error) {
	rows, err := p.pool.Query(ctx, `SELECT DISTINCT topic FROM events ORDER BY topic`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var topics []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// ResetMetrics zeroes the counters. Stored events and the audit log are
// left untouched, which desynchronizes I4 (unique_processed vs. the
// count of StoredEvents): later inserts raise both by one, so the gap
// left by the reset remains until those events are deleted.
func (p *PostgresStore) ResetMetrics(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE metrics SET received = 0, unique_processed = 0, duplicate_dropped = 0 WHERE id = 1
	`)
	return err
}

// DeleteEvents deletes events for topic, or every event if topic is
// empty. Operational/test aid, not part of the core dedup contract.
func (p *PostgresStore) DeleteEvents(ctx context.Context, topic string) (int64, error) {
	var tag pgconn.CommandTag
	var err error
	if topic == "" {
		tag, err = p.pool.Exec(ctx, `DELETE FROM events`)
	} else {
		tag, err = p.pool.Exec(ctx, `DELETE FROM events WHERE topic = $1`, topic)
	}
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
