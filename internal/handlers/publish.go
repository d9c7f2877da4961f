package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/aggregator/pubsub-log-aggregator/internal/app"
	"github.com/aggregator/pubsub-log-aggregator/internal/logging"
	"github.com/aggregator/pubsub-log-aggregator/internal/models"
)

// RegisterPublishRoute registers the ingestion endpoint.
//
// POST /publish?atomic=true|false
//   - Queued mode (default): validate, increment_received, enqueue each
//     event in input order, respond {accepted, queued}.
//   - Atomic mode: validate, increment_received, apply_batch under one
//     transaction, respond {accepted, inserted, duplicate}; a zero
//     inserted or duplicate count is left out of the body.
//
// A validation failure never mutates state: received is only
// incremented after the batch has parsed successfully.
//
// increment_received runs before the enqueue/apply_batch call in both
// modes, not after. The two calls are against independent stores and
// can't be made transactional with each other, so one of the two
// orderings has to be chosen: incrementing first means a failure in
// the following enqueue/apply_batch call leaves received ahead of
// unique_processed+duplicate_dropped (a gap the invariant already
// tolerates — events in flight or pending retry); incrementing after
// would instead let unique_processed/duplicate_dropped run ahead of
// received whenever the increment itself fails following a successful
// enqueue/apply_batch, which breaks received >= unique_processed +
// duplicate_dropped permanently. Only the first ordering keeps the
// invariant, so it's the one used here.
func RegisterPublishRoute(r gin.IRoutes, ctx *app.Context) {
	r.POST("/publish", func(c *gin.Context) {
		atomic, err := parseAtomicFlag(c.Query("atomic"))
		if err != nil {
			writeError(c, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}

		var req models.PublishRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusUnprocessableEntity, "validation_error", "invalid JSON body")
			return
		}

		events, err := parseBatch(req)
		if err != nil {
			writeError(c, http.StatusUnprocessableEntity, "validation_error", err.Error())
			return
		}

		if atomic {
			publishAtomic(c, ctx, events)
			return
		}
		publishQueued(c, ctx, events)
	})
}

func parseAtomicFlag(raw string) (bool, error) {
	if raw == "" {
		return false, nil
	}
	return strconv.ParseBool(raw)
}

func publishQueued(c *gin.Context, ctx *app.Context, events []models.Event) {
	reqCtx := c.Request.Context()

	if err := ctx.Store.IncrementReceived(reqCtx, int64(len(events))); err != nil {
		logging.Error().Err(err).Msg("increment_received failed")
		writeError(c, http.StatusInternalServerError, "store_error", "failed to record received count")
		return
	}

	for _, event := range events {
		if err := ctx.Queue.Enqueue(reqCtx, event); err != nil {
			logging.Error().Err(err).Msg("enqueue failed after increment_received")
			writeError(c, http.StatusServiceUnavailable, "queue_unavailable", "failed to enqueue events")
			return
		}
	}

	c.JSON(http.StatusOK, models.PublishResponse{
		Accepted: len(events),
		Queued:   len(events),
	})
}

func publishAtomic(c *gin.Context, ctx *app.Context, events []models.Event) {
	reqCtx := c.Request.Context()

	if err := ctx.Store.IncrementReceived(reqCtx, int64(len(events))); err != nil {
		logging.Error().Err(err).Msg("increment_received failed")
		writeError(c, http.StatusInternalServerError, "store_error", "failed to record received count")
		return
	}

	inserted, duplicate, err := ctx.Store.ApplyBatch(reqCtx, events)
	if err != nil {
		logging.Error().Err(err).Msg("apply_batch failed after increment_received")
		writeError(c, http.StatusInternalServerError, "store_error", "failed to apply batch")
		return
	}

	c.JSON(http.StatusOK, models.PublishResponse{
		Accepted:  len(events),
		Inserted:  inserted,
		Duplicate: duplicate,
	})
}
