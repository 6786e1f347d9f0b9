package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// DraftService drafts applications for newly discovered jobs and, when the
// user's criteria allow it, submits them without manual review.
type DraftService struct {
	store    store.Store
	provider models.TextGenerator
	timeout  time.Duration
}

// NewDraftService creates a DraftService.
func NewDraftService(st store.Store, provider models.TextGenerator, timeout time.Duration) *DraftService {
	return &DraftService{store: st, provider: provider, timeout: timeout}
}

// Run drafts an application for every job in status new that has none yet.
// Returns the applications created (drafted or submitted). A provider failure
// on one job drops only that job. Returns ErrNoResume when the user has no
// default resume to draft from.
func (s *DraftService) Run(ctx context.Context, userID uuid.UUID) ([]*models.Application, error) {
	resume, err := s.store.GetDefaultResume(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoResume
		}
		return nil, fmt.Errorf("loading resume: %w", err)
	}

	jobs, err := s.store.ListJobsByStatus(ctx, userID, models.JobStatusNew)
	if err != nil {
		return nil, fmt.Errorf("listing new jobs: %w", err)
	}
	if len(jobs) == 0 {
		return nil, nil
	}

	instructions := activeInstructions(ctx, s.store, userID, models.AgentDraft)
	autoSubmit := s.autoSubmitEnabled(ctx, userID)

	var created []*models.Application
	for _, job := range jobs {
		if _, err := s.store.GetApplicationByJob(ctx, job.ID); err == nil {
			continue
		} else if !errors.Is(err, store.ErrNotFound) {
			slog.Error("application lookup failed", "user_id", userID, "job_id", job.ID, "error", err)
			continue
		}

		app, err := s.Draft(ctx, job, resume, instructions)
		if err != nil {
			slog.Warn("drafting failed", "user_id", userID, "job_id", job.ID, "error", err)
			continue
		}

		if autoSubmit {
			if err := s.Submit(ctx, app, job, models.SubmissionChannelAuto); err != nil {
				slog.Warn("auto-submit failed", "user_id", userID, "application_id", app.ID, "error", err)
			}
		}
		created = append(created, app)
	}
	return created, nil
}

// Draft generates a cover letter for the job and persists a draft application
// carrying the generation metadata. Fails with ErrProvider when generation
// fails; no retry is attempted here.
func (s *DraftService) Draft(ctx context.Context, job *models.Job, resume *models.Resume, instructions string) (*models.Application, error) {
	prompt := buildCoverLetterPrompt(job, resume, instructions)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	coverLetter, err := s.provider.Generate(genCtx, prompt, models.GenerateOptions{Temperature: 0.7})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	app := &models.Application{
		ID:          uuid.New(),
		UserID:      job.UserID,
		JobID:       job.ID,
		ResumeID:    resume.ID,
		CoverLetter: coverLetter,
		Status:      models.ApplicationStatusDraft,
		Meta: models.ApplicationMeta{
			Version:             models.ApplicationMetaVersion,
			GeneratedAt:         time.Now().UTC(),
			InstructionSnapshot: instructions,
			Provider:            s.provider.Name(),
		},
	}
	if err := s.store.CreateApplication(ctx, app); err != nil {
		return nil, fmt.Errorf("saving application: %w", err)
	}
	return app, nil
}

// Submit moves a drafted application to submitted and advances the job to
// applied. Returns an error when the application is not in draft.
func (s *DraftService) Submit(ctx context.Context, app *models.Application, job *models.Job, channel string) error {
	if !app.Submit(time.Now()) {
		return fmt.Errorf("application %s cannot be submitted from %s", app.ID, app.Status)
	}
	app.Meta.SubmissionChannel = channel
	if err := s.store.UpdateApplication(ctx, app); err != nil {
		return fmt.Errorf("saving application: %w", err)
	}

	if job.MarkApplied() {
		if err := s.store.UpdateJobStatus(ctx, job.ID, job.Status); err != nil {
			slog.Warn("advancing job failed", "job_id", job.ID, "error", err)
		}
	}
	return nil
}

// autoSubmitEnabled reports whether any active criterion opted into automatic
// submission. Jobs are not tied back to the criterion that found them, so the
// toggle is effectively per user.
func (s *DraftService) autoSubmitEnabled(ctx context.Context, userID uuid.UUID) bool {
	criteria, err := s.store.ListActiveCriteria(ctx, userID)
	if err != nil {
		slog.Warn("listing criteria failed", "user_id", userID, "error", err)
		return false
	}
	for _, c := range criteria {
		if c.AutoSubmit {
			return true
		}
	}
	return false
}
