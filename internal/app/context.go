// Package app builds the single application context threaded through
// the HTTP router and the worker pool, so config, the store, and the
// queue never need to live behind a package-level singleton.
package app

import (
	"time"

	"github.com/aggregator/pubsub-log-aggregator/internal/config"
	"github.com/aggregator/pubsub-log-aggregator/internal/queue"
	"github.com/aggregator/pubsub-log-aggregator/internal/store"
	"github.com/aggregator/pubsub-log-aggregator/internal/worker"
)

// Context holds everything a handler or worker needs: configuration,
// the store, the queue, and the process start time used for uptime
// reporting. It is built once in main and never replaced.
type Context struct {
	Config    config.Config
	Store     store.Store
	Queue     queue.Queue
	Pool      *worker.Pool
	StartedAt time.Time
}

// New assembles a Context from already-constructed dependencies.
func New(cfg config.Config, st store.Store, q queue.Queue, pool *worker.Pool) *Context {
	return &Context{
		Config:    cfg,
		Store:     st,
		Queue:     q,
		Pool:      pool,
		StartedAt: time.Now(),
	}
}

// Uptime returns elapsed time since the Context was constructed.
func (c *Context) Uptime() time.Duration {
	return time.Since(c.StartedAt)
}
