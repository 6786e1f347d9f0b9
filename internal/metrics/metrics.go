// Package metrics exposes Prometheus instrumentation for cycle runs and
// background task processing.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	cyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobpilot",
			Subsystem: "cycle",
			Name:      "runs_total",
			Help:      "Completed cycle runs, labelled by final status.",
		},
		[]string{"status"},
	)

	cycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "jobpilot",
			Subsystem: "cycle",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a full cycle run.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		},
	)

	phaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobpilot",
			Subsystem: "cycle",
			Name:      "phase_errors_total",
			Help:      "Phase failures recorded during cycle runs.",
		},
		[]string{"phase"},
	)

	jobsDiscovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jobpilot",
			Subsystem: "cycle",
			Name:      "jobs_discovered_total",
			Help:      "Jobs accepted by the search phase.",
		},
	)

	applicationsDrafted = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jobpilot",
			Subsystem: "cycle",
			Name:      "applications_drafted_total",
			Help:      "Applications drafted across all cycles.",
		},
	)

	followUpsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "jobpilot",
			Subsystem: "cycle",
			Name:      "follow_ups_sent_total",
			Help:      "Follow-up emails sent across all cycles.",
		},
	)

	taskProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobpilot",
			Subsystem: "asynq",
			Name:      "tasks_processed_total",
			Help:      "Background tasks processed, labelled by type.",
		},
		[]string{"task_type"},
	)

	taskFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "jobpilot",
			Subsystem: "asynq",
			Name:      "tasks_failed_total",
			Help:      "Background tasks that returned an error.",
		},
		[]string{"task_type"},
	)

	tasksInProgress = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "jobpilot",
			Subsystem: "asynq",
			Name:      "tasks_in_progress",
			Help:      "Background tasks currently being processed.",
		},
		[]string{"task_type"},
	)
)

// ObserveCycle records the outcome of one cycle run.
func ObserveCycle(status string, duration time.Duration, phaseErrors []string) {
	cyclesTotal.WithLabelValues(status).Inc()
	cycleDuration.Observe(duration.Seconds())
	for _, phase := range phaseErrors {
		phaseErrorsTotal.WithLabelValues(phase).Inc()
	}
}

// ObserveCycleCounts records throughput counters from a cycle report.
func ObserveCycleCounts(jobs, drafts, followUps int) {
	jobsDiscovered.Add(float64(jobs))
	applicationsDrafted.Add(float64(drafts))
	followUpsSent.Add(float64(followUps))
}

// AsynqMiddleware records task processing metrics for the worker.
func AsynqMiddleware() asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
			taskType := task.Type()
			tasksInProgress.WithLabelValues(taskType).Inc()
			defer tasksInProgress.WithLabelValues(taskType).Dec()

			err := next.ProcessTask(ctx, task)
			if err != nil {
				taskFailedTotal.WithLabelValues(taskType).Inc()
			}
			taskProcessedTotal.WithLabelValues(taskType).Inc()

			return err
		})
	}
}

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
