// Package tasks defines the asynq task types and the enqueue-side client.
package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task types.
const (
	// TypeCycleRun runs one orchestrator cycle for a single user.
	TypeCycleRun = "cycle:run"
	// TypeCycleRunAll fans out a cycle run for every active user. Enqueued by
	// the periodic scheduler.
	TypeCycleRunAll = "cycle:run_all"
)

// QueueCycles is the queue all cycle tasks run on.
const QueueCycles = "cycles"

// CycleRunPayload identifies the user a cycle:run task targets.
type CycleRunPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// NewCycleRunTask builds a cycle:run task for one user.
func NewCycleRunTask(userID uuid.UUID) (*asynq.Task, error) {
	payload, err := json.Marshal(CycleRunPayload{UserID: userID})
	if err != nil {
		return nil, fmt.Errorf("encoding payload: %w", err)
	}
	return asynq.NewTask(TypeCycleRun, payload,
		asynq.Queue(QueueCycles),
		asynq.MaxRetry(2),
		asynq.Timeout(30*time.Minute),
	), nil
}

// NewCycleRunAllTask builds the fan-out task.
func NewCycleRunAllTask() *asynq.Task {
	return asynq.NewTask(TypeCycleRunAll, nil,
		asynq.Queue(QueueCycles),
		asynq.MaxRetry(1),
		asynq.Timeout(2*time.Hour),
	)
}

// Enqueuer submits tasks to the queue. The API server uses it to trigger
// cycles without running them in-process.
type Enqueuer struct {
	client *asynq.Client
}

// NewEnqueuer creates an Enqueuer from a Redis URL.
func NewEnqueuer(redisURL string) (*Enqueuer, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	return &Enqueuer{client: asynq.NewClient(opt)}, nil
}

// EnqueueCycleRun queues one cycle for the user and returns the task ID.
func (e *Enqueuer) EnqueueCycleRun(ctx context.Context, userID uuid.UUID) (string, error) {
	task, err := NewCycleRunTask(userID)
	if err != nil {
		return "", err
	}
	info, err := e.client.EnqueueContext(ctx, task)
	if err != nil {
		return "", fmt.Errorf("enqueueing cycle: %w", err)
	}
	return info.ID, nil
}

// Close releases the underlying client connection.
func (e *Enqueuer) Close() error {
	return e.client.Close()
}
