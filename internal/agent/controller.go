package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/cache"
	"github.com/kiranshivaraju/jobpilot/internal/store"
)

// Cycle statuses published to the cache for status queries.
const (
	CycleStatusRunning   = "running"
	CycleStatusCompleted = "completed"
	CycleStatusPartial   = "completed_with_errors"
	CycleStatusFailed    = "failed"
	CycleStatusCancelled = "cancelled"
)

// cycleStatusTTL keeps the last cycle outcome queryable for a day.
const cycleStatusTTL = 24 * time.Hour

// PhaseError records one failed phase of a cycle.
type PhaseError struct {
	Phase string `json:"phase"`
	Error string `json:"error"`
}

// CycleReport summarizes one cycle run for a user.
type CycleReport struct {
	UserID              uuid.UUID    `json:"user_id"`
	StartedAt           time.Time    `json:"started_at"`
	FinishedAt          time.Time    `json:"finished_at"`
	JobsFound           int          `json:"jobs_found"`
	ApplicationsDrafted int          `json:"applications_drafted"`
	FollowUpsSent       int          `json:"follow_ups_sent"`
	MessagesProcessed   int          `json:"messages_processed"`
	InterviewsScheduled int          `json:"interviews_scheduled"`
	ProposalsCreated    int          `json:"proposals_created"`
	Cancelled           bool         `json:"cancelled"`
	PhaseErrors         []PhaseError `json:"phase_errors,omitempty"`
}

func (r *CycleReport) recordError(phase string, err error) {
	r.PhaseErrors = append(r.PhaseErrors, PhaseError{Phase: phase, Error: err.Error()})
}

// Status maps the report and the forward-progress flag to a cycle status.
func (r *CycleReport) Status(ok bool) string {
	switch {
	case r.Cancelled:
		return CycleStatusCancelled
	case !ok:
		return CycleStatusFailed
	case len(r.PhaseErrors) > 0:
		return CycleStatusPartial
	default:
		return CycleStatusCompleted
	}
}

// Controller sequences the capability agents into one cycle per user.
type Controller struct {
	search        *SearchService
	draft         *DraftService
	comms         *CommsService
	sched         *SchedulingService
	gov           *GovernanceService
	store         store.Store
	cache         cache.Cache
	proposalEvery int64
}

// NewController creates a Controller. Every proposalEvery-th cycle for a user
// also runs the instruction-improvement phase.
func NewController(search *SearchService, draft *DraftService, comms *CommsService, sched *SchedulingService, gov *GovernanceService, st store.Store, ca cache.Cache, proposalEvery int) *Controller {
	if proposalEvery < 1 {
		proposalEvery = 1
	}
	return &Controller{
		search:        search,
		draft:         draft,
		comms:         comms,
		sched:         sched,
		gov:           gov,
		store:         st,
		cache:         ca,
		proposalEvery: int64(proposalEvery),
	}
}

// RunCycle runs one full cycle for the user: search, draft, follow-ups,
// inbox check, interview scheduling, and periodically instruction-improvement
// proposals. Each phase failure is recorded and the cycle moves on; the
// boolean is false only when no phase made any forward progress. Cancellation
// is honored between phases and never rolls back completed ones. RunCycle
// never panics.
func (c *Controller) RunCycle(ctx context.Context, userID uuid.UUID) (report *CycleReport, ok bool) {
	report = &CycleReport{UserID: userID, StartedAt: time.Now().UTC()}

	defer func() {
		if r := recover(); r != nil {
			slog.Error("cycle panicked", "user_id", userID, "panic", r)
			report.recordError("cycle", fmt.Errorf("panic: %v", r))
			ok = false
		}
		report.FinishedAt = time.Now().UTC()
		c.publishStatus(ctx, userID, report, ok)
	}()

	_ = c.cache.SetCycleStatus(ctx, userID, CycleStatusRunning, cycleStatusTTL)
	slog.Info("cycle started", "user_id", userID)

	phasesSucceeded := 0

	// Search.
	jobs, err := c.search.Run(ctx, userID)
	report.JobsFound = len(jobs)
	if err != nil {
		slog.Error("search phase failed", "user_id", userID, "error", err)
		report.recordError("search", err)
	} else {
		phasesSucceeded++
	}

	if cancelled(ctx, report) {
		return report, phasesSucceeded > 0
	}

	// Draft (+ conditional auto-submit inside).
	apps, err := c.draft.Run(ctx, userID)
	report.ApplicationsDrafted = len(apps)
	if err != nil {
		slog.Error("draft phase failed", "user_id", userID, "error", err)
		report.recordError("draft", err)
	} else {
		phasesSucceeded++
	}

	if cancelled(ctx, report) {
		return report, phasesSucceeded > 0
	}

	// Follow-ups.
	sent, err := c.comms.RunFollowUps(ctx, userID)
	report.FollowUpsSent = sent
	if err != nil {
		slog.Error("follow-up phase failed", "user_id", userID, "error", err)
		report.recordError("follow_ups", err)
	} else {
		phasesSucceeded++
	}

	if cancelled(ctx, report) {
		return report, phasesSucceeded > 0
	}

	// Inbox check.
	processed, invitations, err := c.comms.CheckInbox(ctx, userID)
	report.MessagesProcessed = processed
	if err != nil {
		slog.Error("inbox phase failed", "user_id", userID, "error", err)
		report.recordError("inbox", err)
	} else {
		phasesSucceeded++
	}

	if cancelled(ctx, report) {
		return report, phasesSucceeded > 0
	}

	// Interview scheduling for invitations the inbox scan surfaced.
	for _, inv := range invitations {
		if _, err := c.sched.Schedule(ctx, userID, inv); err != nil {
			slog.Error("scheduling failed", "user_id", userID, "job_id", inv.Job.ID, "error", err)
			report.recordError("scheduling", err)
			continue
		}
		report.InterviewsScheduled++
	}

	if cancelled(ctx, report) {
		return report, phasesSucceeded > 0
	}

	// Periodic instruction improvements, gated by the cycle counter so the
	// provider is not asked on every run.
	n, err := c.cache.IncrCycleCount(ctx, userID)
	if err != nil {
		slog.Warn("cycle counter unavailable, skipping proposals", "user_id", userID, "error", err)
	} else if n%c.proposalEvery == 0 {
		created, err := c.gov.ProposeImprovements(ctx, userID)
		report.ProposalsCreated = created
		if err != nil {
			slog.Error("proposal phase failed", "user_id", userID, "error", err)
			report.recordError("proposals", err)
		}
	}

	ok = phasesSucceeded > 0
	slog.Info("cycle finished",
		"user_id", userID,
		"jobs_found", report.JobsFound,
		"applications_drafted", report.ApplicationsDrafted,
		"follow_ups_sent", report.FollowUpsSent,
		"messages_processed", report.MessagesProcessed,
		"interviews_scheduled", report.InterviewsScheduled,
		"proposals_created", report.ProposalsCreated,
		"phase_errors", len(report.PhaseErrors),
	)
	return report, ok
}

// RunAllUsers runs one cycle for every active user, sequentially. Used by the
// periodic worker. One user's failure never blocks the next user's cycle.
func (c *Controller) RunAllUsers(ctx context.Context) error {
	users, err := c.store.ListActiveUsers(ctx)
	if err != nil {
		return fmt.Errorf("listing users: %w", err)
	}

	for _, u := range users {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if _, ok := c.RunCycle(ctx, u.ID); !ok {
			slog.Warn("cycle made no progress", "user_id", u.ID)
		}
	}
	return nil
}

// cancelled records a cancellation observed at a phase boundary.
func cancelled(ctx context.Context, report *CycleReport) bool {
	if ctx.Err() == nil {
		return false
	}
	report.Cancelled = true
	return true
}

func (c *Controller) publishStatus(ctx context.Context, userID uuid.UUID, report *CycleReport, ok bool) {
	status := report.Status(ok)
	// Publish with a fresh context so a cancelled cycle still reports.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	_ = c.cache.SetCycleStatus(pubCtx, userID, status, cycleStatusTTL)
}
