// Package worker runs cycle tasks off the asynq queue.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
	"github.com/kiranshivaraju/jobpilot/internal/agent"
	"github.com/kiranshivaraju/jobpilot/internal/metrics"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/internal/tasks"
)

// CycleHandler processes cycle:run and cycle:run_all tasks.
type CycleHandler struct {
	controller *agent.Controller
	store      store.Store
}

// NewCycleHandler creates a CycleHandler.
func NewCycleHandler(ctrl *agent.Controller, st store.Store) *CycleHandler {
	return &CycleHandler{controller: ctrl, store: st}
}

// HandleCycleRun runs one cycle for the user named in the payload. A cycle
// that made no forward progress returns an error so asynq retries it.
func (h *CycleHandler) HandleCycleRun(ctx context.Context, task *asynq.Task) error {
	var payload tasks.CycleRunPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decoding payload: %v: %w", err, asynq.SkipRetry)
	}

	start := time.Now()
	report, ok := h.controller.RunCycle(ctx, payload.UserID)
	h.observe(report, ok, time.Since(start))

	if !ok {
		return fmt.Errorf("cycle for user %s made no progress", payload.UserID)
	}
	return nil
}

// HandleCycleRunAll fans one cycle:run out per active user, in-process. The
// fan-out stays sequential so one worker never floods the AI provider.
func (h *CycleHandler) HandleCycleRunAll(ctx context.Context, _ *asynq.Task) error {
	users, err := h.store.ListActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		start := time.Now()
		report, ok := h.controller.RunCycle(ctx, u.ID)
		h.observe(report, ok, time.Since(start))
		if !ok {
			slog.Warn("cycle made no progress", "user_id", u.ID)
		}
	}

	slog.Info("cycle fan-out finished", "users", len(users))
	return nil
}

func (h *CycleHandler) observe(report *agent.CycleReport, ok bool, elapsed time.Duration) {
	phases := make([]string, 0, len(report.PhaseErrors))
	for _, pe := range report.PhaseErrors {
		phases = append(phases, pe.Phase)
	}
	metrics.ObserveCycle(report.Status(ok), elapsed, phases)
	metrics.ObserveCycleCounts(report.JobsFound, report.ApplicationsDrafted, report.FollowUpsSent)
}

// NewMux wires the task handlers and metrics middleware into an asynq mux.
func NewMux(h *CycleHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Use(metrics.AsynqMiddleware())
	mux.HandleFunc(tasks.TypeCycleRun, h.HandleCycleRun)
	mux.HandleFunc(tasks.TypeCycleRunAll, h.HandleCycleRunAll)
	return mux
}
