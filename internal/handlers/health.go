package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aggregator/pubsub-log-aggregator/internal/app"
	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// RegisterHealthRoute registers the liveness/dependency health endpoint.
//
// GET /health -> {status: "healthy"|"degraded", database, queue, uptime_seconds}
//
// An unreachable database or queue is surfaced here as
// status=degraded rather than as an HTTP error from the dependency
// itself.
func RegisterHealthRoute(r gin.IRoutes, ctx *app.Context) {
	r.GET("/health", func(c *gin.Context) {
		checkCtx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		dbHealthy := ctx.Store.Ping(checkCtx) == nil

		queueHealthy := true
		if _, err := ctx.Queue.Size(checkCtx); err != nil {
			queueHealthy = false
		}

		status := "healthy"
		httpStatus := http.StatusOK
		if !dbHealthy || !queueHealthy {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
		}

		c.JSON(httpStatus, models.HealthResponse{
			Status:   status,
			Database: dbHealthy,
			Queue:    queueHealthy,
			Uptime:   ctx.Uptime().Seconds(),
		})
	})
}
