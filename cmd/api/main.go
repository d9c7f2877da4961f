package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aggregator/pubsub-log-aggregator/internal/app"
	"github.com/aggregator/pubsub-log-aggregator/internal/config"
	"github.com/aggregator/pubsub-log-aggregator/internal/httpserver"
	"github.com/aggregator/pubsub-log-aggregator/internal/logging"
	"github.com/aggregator/pubsub-log-aggregator/internal/queue"
	"github.com/aggregator/pubsub-log-aggregator/internal/store"
	"github.com/aggregator/pubsub-log-aggregator/internal/worker"
)

// main boots the service: config → logging → store → queue → worker
// pool → HTTP server, then waits for SIGINT/SIGTERM to shut down in the
// reverse order.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(cfg.LogLevel)

	ctx := context.Background()

	db, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to apply schema")
	}

	q, err := newQueue(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to initialize queue")
	}
	defer q.Close()

	pool := worker.New(q, db, cfg.WorkerCount)
	if !cfg.DisableWorkers {
		pool.Start()
	} else {
		logging.Info().Msg("workers disabled (DISABLE_WORKERS=true)")
	}

	appCtx := app.New(cfg, db, q, pool)
	router := httpserver.NewRouter(appCtx)

	server := &http.Server{
		Addr:    ":8080",
		Handler: router,
	}

	go func() {
		logging.Info().Str("addr", server.Addr).Msg("server started")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	waitForShutdown(server, pool)
}

func newQueue(cfg config.Config) (queue.Queue, error) {
	if cfg.UseInMemoryQueue {
		return queue.NewInMemoryQueue(), nil
	}
	return queue.NewRedisQueue(cfg.QueueURL, cfg.QueueKey)
}

// waitForShutdown blocks until SIGINT/SIGTERM, then stops accepting new
// HTTP connections, tells the worker pool to stop pulling new entries,
// and waits (bounded) for in-flight work to finish.
func waitForShutdown(server *http.Server, pool *worker.Pool) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	logging.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("http server shutdown did not complete cleanly")
	}

	if err := pool.Stop(shutdownCtx); err != nil {
		logging.Warn().Err(err).Msg("worker pool shutdown did not complete cleanly")
	}

	logging.Info().Msg("shutdown complete")
}
