package handler

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/jobpilot/internal/api/middleware"
	"github.com/kiranshivaraju/jobpilot/internal/api/response"
	"github.com/kiranshivaraju/jobpilot/internal/cache"
)

// CycleEnqueuer queues a cycle run for later execution by the worker.
type CycleEnqueuer interface {
	EnqueueCycleRun(ctx context.Context, userID uuid.UUID) (string, error)
}

// NewTriggerCycleHandler returns POST /api/v1/cycles. The cycle itself runs
// on the worker; the handler only queues it.
func NewTriggerCycleHandler(enq CycleEnqueuer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		taskID, err := enq.EnqueueCycleRun(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE",
				"Could not queue the cycle", nil)
			return
		}

		response.Accepted(w, map[string]string{
			"task_id": taskID,
			"status":  "queued",
		})
	}
}

// NewCycleStatusHandler returns GET /api/v1/cycles/status: the state of the
// user's current or most recent cycle, as published by the worker.
func NewCycleStatusHandler(ca cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		status, found, err := ca.GetCycleStatus(r.Context(), userID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not read cycle status", nil)
			return
		}
		if !found {
			response.Error(w, http.StatusNotFound, "NO_CYCLE",
				"No cycle has run for this user yet", nil)
			return
		}

		response.JSON(w, map[string]string{"status": status})
	}
}
