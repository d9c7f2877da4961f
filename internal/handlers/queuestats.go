package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aggregator/pubsub-log-aggregator/internal/app"
	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// RegisterQueueStatsRoute registers the queue statistics endpoint.
//
// GET /queue/stats -> {queue_size, queue_type, worker_count, workers_enabled, dead_lettered}
func RegisterQueueStatsRoute(r gin.IRoutes, ctx *app.Context) {
	r.GET("/queue/stats", func(c *gin.Context) {
		size, err := ctx.Queue.Size(c.Request.Context())
		if err != nil {
			writeError(c, http.StatusInternalServerError, "queue_error", "failed to read queue size")
			return
		}

		queueType := "redis"
		if ctx.Config.UseInMemoryQueue {
			queueType = "inmemory"
		}

		var deadLettered int64
		if ctx.Pool != nil {
			deadLettered = ctx.Pool.DeadLettered()
		}

		c.JSON(http.StatusOK, models.QueueStatsResponse{
			QueueSize:      size,
			QueueType:      queueType,
			WorkerCount:    ctx.Config.WorkerCount,
			WorkersEnabled: !ctx.Config.DisableWorkers,
			DeadLettered:   deadLettered,
		})
	})
}
