package agent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// defaultInterviewLeadTime places an interview when the invitation names no
// concrete time.
const defaultInterviewLeadTime = 72 * time.Hour

// SchedulingService turns classified interview invitations into scheduled
// interviews.
type SchedulingService struct {
	store store.Store
}

// NewSchedulingService creates a SchedulingService.
func NewSchedulingService(st store.Store) *SchedulingService {
	return &SchedulingService{store: st}
}

// Schedule creates a scheduled interview for the job from an invitation. The
// invitation's proposed time is used when parseable, otherwise the interview
// is tentatively placed three days out. The job advances to interviewing when
// its current status allows it.
func (s *SchedulingService) Schedule(ctx context.Context, userID uuid.UUID, inv Invitation) (*models.Interview, error) {
	scheduledAt := time.Now().Add(defaultInterviewLeadTime).UTC()
	if inv.Classification.ProposedTime != "" {
		if t, err := time.Parse(time.RFC3339, inv.Classification.ProposedTime); err == nil {
			scheduledAt = t.UTC()
		} else {
			slog.Warn("unparseable proposed time, using default",
				"job_id", inv.Job.ID, "proposed_time", inv.Classification.ProposedTime)
		}
	}

	iv := &models.Interview{
		ID:              uuid.New(),
		UserID:          userID,
		JobID:           inv.Job.ID,
		Type:            models.InterviewTypeVideo,
		ScheduledAt:     scheduledAt,
		DurationMinutes: int(models.DefaultInterviewDuration.Minutes()),
		Notes:           inv.Classification.NextSteps,
		Status:          models.InterviewStatusScheduled,
	}
	if err := s.store.CreateInterview(ctx, iv); err != nil {
		return nil, fmt.Errorf("saving interview: %w", err)
	}

	if inv.Job.MarkInterviewing() {
		if err := s.store.UpdateJobStatus(ctx, inv.Job.ID, inv.Job.Status); err != nil {
			slog.Warn("advancing job failed", "job_id", inv.Job.ID, "error", err)
		}
	}
	return iv, nil
}
