package queue

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// RedisQueue is a durable FIFO backed by a Redis list: RPUSH to
// enqueue, BLPOP to dequeue, LLEN for size.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// wireEntry is the JSON shape stored in Redis for one queue entry.
type wireEntry struct {
	Topic     string          `json:"topic"`
	EventID   string          `json:"event_id"`
	Timestamp time.Time       `json:"timestamp"`
	Source    string          `json:"source"`
	Payload   json.RawMessage `json:"payload"`
}

// NewRedisQueue connects to Redis from a redis:// URL or bare host:port,
// mirroring the URL-or-host connect pattern used elsewhere in the
// retrieval pack's Redis adapters.
func NewRedisQueue(redisURL, key string) (*RedisQueue, error) {
	var opts *redis.Options
	if strings.HasPrefix(redisURL, "redis://") || strings.HasPrefix(redisURL, "rediss://") {
		parsed, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, err
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: redisURL}
	}

	return &RedisQueue{client: redis.NewClient(opts), key: key}, nil
}

// Enqueue implements Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, event models.Event) error {
	raw, err := json.Marshal(wireEntry{
		Topic:     event.Topic,
		EventID:   event.EventID,
		Timestamp: event.Timestamp,
		Source:    event.Source,
		Payload:   event.Payload,
	})
	if err != nil {
		return err
	}
	return q.client.RPush(ctx, q.key, raw).Err()
}

// Dequeue implements Queue. BLPOP timeout of 0 would block forever, so
// a zero or negative timeout is replaced by 1ms; the call then still
// waits a bounded time on an empty list rather than returning at once.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (Entry, bool, error) {
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	result, err := q.client.BLPop(ctx, timeout, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if len(result) != 2 {
		return Entry{}, false, errors.New("queue: unexpected BLPOP result shape")
	}

	var we wireEntry
	if err := json.Unmarshal([]byte(result[1]), &we); err != nil {
		return Entry{}, false, err
	}

	return Entry{Event: models.Event{
		Topic:     we.Topic,
		EventID:   we.EventID,
		Timestamp: we.Timestamp,
		Source:    we.Source,
		Payload:   we.Payload,
	}}, true, nil
}

// Size implements Queue.
func (q *RedisQueue) Size(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close implements Queue.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
