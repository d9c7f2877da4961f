package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// writeError writes the small JSON error body used across the API:
// {error: kind, detail: string}.
func writeError(c *gin.Context, status int, kind, detail string) {
	c.JSON(status, models.ErrorResponse{Error: kind, Detail: detail})
}
