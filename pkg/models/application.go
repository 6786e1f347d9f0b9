package models

import (
	"time"

	"github.com/google/uuid"
)

// Application statuses. Rejected, accepted and withdrawn are terminal,
// except that Withdraw is legal from any non-withdrawn status.
const (
	ApplicationStatusDraft       = "draft"
	ApplicationStatusSubmitted   = "submitted"
	ApplicationStatusUnderReview = "under_review"
	ApplicationStatusRejected    = "rejected"
	ApplicationStatusAccepted    = "accepted"
	ApplicationStatusWithdrawn   = "withdrawn"
)

// Application submission channels.
const (
	SubmissionChannelAuto   = "auto"
	SubmissionChannelManual = "manual"
)

// Application is a drafted (and possibly submitted) application for a Job.
type Application struct {
	ID          uuid.UUID       `db:"id"           json:"id"`
	UserID      uuid.UUID       `db:"user_id"      json:"user_id"`
	JobID       uuid.UUID       `db:"job_id"       json:"job_id"`
	ResumeID    uuid.UUID       `db:"resume_id"    json:"resume_id"`
	CoverLetter string          `db:"cover_letter" json:"cover_letter"`
	Status      string          `db:"status"       json:"status"`
	SubmittedAt *time.Time      `db:"submitted_at" json:"submitted_at,omitempty"`
	Meta        ApplicationMeta `db:"meta"         json:"meta"`
	CreatedAt   time.Time       `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at"   json:"updated_at"`
}

var applicationTransitions = map[string][]string{
	ApplicationStatusDraft:       {ApplicationStatusSubmitted},
	ApplicationStatusSubmitted:   {ApplicationStatusUnderReview, ApplicationStatusRejected, ApplicationStatusAccepted},
	ApplicationStatusUnderReview: {ApplicationStatusRejected, ApplicationStatusAccepted},
}

func (a *Application) transition(target string) bool {
	for _, allowed := range applicationTransitions[a.Status] {
		if allowed == target {
			a.Status = target
			return true
		}
	}
	return false
}

// Submit moves a draft to submitted and stamps the submission time.
func (a *Application) Submit(now time.Time) bool {
	if !a.transition(ApplicationStatusSubmitted) {
		return false
	}
	t := now.UTC()
	a.SubmittedAt = &t
	return true
}

// MarkUnderReview records that the company acknowledged the application.
func (a *Application) MarkUnderReview() bool { return a.transition(ApplicationStatusUnderReview) }

// MarkRejected records a rejection. Terminal.
func (a *Application) MarkRejected() bool { return a.transition(ApplicationStatusRejected) }

// MarkAccepted records an acceptance. Terminal.
func (a *Application) MarkAccepted() bool { return a.transition(ApplicationStatusAccepted) }

// Withdraw is legal from any status except withdrawn itself. Terminal.
func (a *Application) Withdraw() bool {
	if a.Status == ApplicationStatusWithdrawn {
		return false
	}
	a.Status = ApplicationStatusWithdrawn
	return true
}

// IsActive reports whether the application can still progress.
func (a *Application) IsActive() bool {
	switch a.Status {
	case ApplicationStatusRejected, ApplicationStatusAccepted, ApplicationStatusWithdrawn:
		return false
	}
	return true
}

// DaysSinceSubmission returns whole days elapsed since submission, or -1 if
// the application was never submitted.
func (a *Application) DaysSinceSubmission(now time.Time) int {
	if a.SubmittedAt == nil {
		return -1
	}
	return int(now.Sub(*a.SubmittedAt).Hours() / 24)
}
