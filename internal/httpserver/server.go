package httpserver

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/aggregator/pubsub-log-aggregator/internal/app"
	"github.com/aggregator/pubsub-log-aggregator/internal/handlers"
	"github.com/aggregator/pubsub-log-aggregator/internal/logging"
)

// requestIDHeader is the header used both to accept an upstream-supplied
// correlation ID and to echo it back to the caller.
const requestIDHeader = "X-Request-ID"

// NewRouter wires the ingestion, query, and operational endpoints:
// /publish, /events, /stats, /queue/stats, /health, /metrics/reset.
func NewRouter(ctx *app.Context) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger())

	handlers.RegisterPublishRoute(r, ctx)
	handlers.RegisterEventsRoutes(r, ctx)
	handlers.RegisterStatsRoute(r, ctx)
	handlers.RegisterQueueStatsRoute(r, ctx)
	handlers.RegisterHealthRoute(r, ctx)
	handlers.RegisterMetricsResetRoute(r, ctx)

	return r
}

// requestID assigns a correlation ID to every request, reusing one
// supplied by an upstream proxy if present, otherwise minting a UUIDv4.
// The ID is echoed in the response header and carried into the
// structured log line so a single request can be traced across the
// ingestion handler and any store/queue errors it logs.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(requestIDHeader, id)
		c.Set(requestIDHeader, id)
		c.Next()
	}
}

// requestLogger logs each request through the shared structured logger
// instead of gin's default writer, keeping all service output in one
// place.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logging.Info().
			Str("request_id", c.GetString(requestIDHeader)).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("request")
	}
}
