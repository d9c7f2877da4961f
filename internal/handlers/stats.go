package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aggregator/pubsub-log-aggregator/internal/app"
	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// RegisterStatsRoute registers the statistics endpoint.
//
// GET /stats -> {received, unique_processed, duplicate_dropped,
//                dedup_rate_percent, topics, uptime_seconds}
func RegisterStatsRoute(r gin.IRoutes, ctx *app.Context) {
	r.GET("/stats", func(c *gin.Context) {
		counters, err := ctx.Store.Counters(c.Request.Context())
		if err != nil {
			writeError(c, http.StatusInternalServerError, "store_error", "failed to read counters")
			return
		}

		topics, err := ctx.Store.Topics(c.Request.Context())
		if err != nil {
			writeError(c, http.StatusInternalServerError, "store_error", "failed to read topics")
			return
		}
		if topics == nil {
			topics = []string{}
		}

		c.JSON(http.StatusOK, models.StatsResponse{
			Received:         counters.Received,
			UniqueProcessed:  counters.UniqueProcessed,
			DuplicateDropped: counters.DuplicateDropped,
			DedupRatePercent: dedupRate(counters),
			Topics:           topics,
			UptimeSeconds:    ctx.Uptime().Seconds(),
		})
	})
}

// dedupRate computes duplicate_dropped / max(received, 1) * 100, a
// pure function of the current counters.
func dedupRate(c models.Counters) float64 {
	received := c.Received
	if received < 1 {
		received = 1
	}
	return float64(c.DuplicateDropped) / float64(received) * 100
}

// RegisterMetricsResetRoute registers the operational aid that zeroes
// the counters without touching stored events. Afterwards
// unique_processed no longer equals the number of StoredEvents: each
// later insert raises both by one, so the gap left by the reset stays.
func RegisterMetricsResetRoute(r gin.IRoutes, ctx *app.Context) {
	r.POST("/metrics/reset", func(c *gin.Context) {
		if err := ctx.Store.ResetMetrics(c.Request.Context()); err != nil {
			writeError(c, http.StatusInternalServerError, "store_error", "failed to reset metrics")
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "reset"})
	})
}
