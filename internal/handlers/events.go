package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aggregator/pubsub-log-aggregator/internal/app"
	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

const (
	defaultEventsLimit = 100
	maxEventsLimit     = 1000
)

// RegisterEventsRoutes registers the read-side query endpoint for
// stored events.
//
// GET /events?topic=...&limit=...  -> [StoredEvent, ...]
// DELETE /events?topic=...         -> {deleted, topic} (operational aid)
func RegisterEventsRoutes(r gin.IRoutes, ctx *app.Context) {
	r.GET("/events", func(c *gin.Context) {
		topic := c.Query("topic")
		if topic == "" {
			writeError(c, http.StatusUnprocessableEntity, "validation_error", "topic is required")
			return
		}

		limit := defaultEventsLimit
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 || n > maxEventsLimit {
				writeError(c, http.StatusUnprocessableEntity, "validation_error", "limit must be an integer between 0 and 1000")
				return
			}
			limit = n
		}

		events, err := ctx.Store.EventsByTopic(c.Request.Context(), topic, limit)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "store_error", "failed to query events")
			return
		}
		if events == nil {
			events = []models.StoredEvent{}
		}
		c.JSON(http.StatusOK, events)
	})

	r.DELETE("/events", func(c *gin.Context) {
		topic := c.Query("topic")
		deleted, err := ctx.Store.DeleteEvents(c.Request.Context(), topic)
		if err != nil {
			writeError(c, http.StatusInternalServerError, "store_error", "failed to delete events")
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": deleted, "topic": topicOrAll(topic)})
	})
}

func topicOrAll(topic string) string {
	if topic == "" {
		return "all"
	}
	return topic
}
