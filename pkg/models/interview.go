package models

import (
	"time"

	"github.com/google/uuid"
)

// Interview types.
const (
	InterviewTypePhone      = "phone"
	InterviewTypeVideo      = "video"
	InterviewTypeOnsite     = "onsite"
	InterviewTypeTechnical  = "technical"
	InterviewTypeBehavioral = "behavioral"
)

// Interview statuses. Cancelled and completed block every further transition.
const (
	InterviewStatusScheduled   = "scheduled"
	InterviewStatusConfirmed   = "confirmed"
	InterviewStatusCompleted   = "completed"
	InterviewStatusCancelled   = "cancelled"
	InterviewStatusRescheduled = "rescheduled"
	InterviewStatusNoShow      = "no_show"
)

// DefaultInterviewDuration is used when the invitation carries no duration.
const DefaultInterviewDuration = 60 * time.Minute

// Interview is a scheduled interview for a Job.
type Interview struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	UserID          uuid.UUID `db:"user_id"          json:"user_id"`
	JobID           uuid.UUID `db:"job_id"           json:"job_id"`
	Type            string    `db:"type"             json:"type"`
	ScheduledAt     time.Time `db:"scheduled_at"     json:"scheduled_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Location        string    `db:"location"         json:"location"`
	Notes           string    `db:"notes"            json:"notes"`
	Status          string    `db:"status"           json:"status"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}

func (i *Interview) closed() bool {
	return i.Status == InterviewStatusCancelled || i.Status == InterviewStatusCompleted
}

// Confirm is legal only from scheduled.
func (i *Interview) Confirm() bool {
	if i.Status != InterviewStatusScheduled {
		return false
	}
	i.Status = InterviewStatusConfirmed
	return true
}

// Complete marks the interview as held. Not legal once cancelled or completed.
func (i *Interview) Complete() bool {
	if i.Status != InterviewStatusScheduled && i.Status != InterviewStatusConfirmed &&
		i.Status != InterviewStatusRescheduled {
		return false
	}
	i.Status = InterviewStatusCompleted
	return true
}

// Cancel is legal from any status except cancelled and completed.
func (i *Interview) Cancel() bool {
	if i.closed() {
		return false
	}
	i.Status = InterviewStatusCancelled
	return true
}

// Reschedule moves the interview to a new time. Not legal once cancelled or
// completed. A zero newDuration keeps the current duration.
func (i *Interview) Reschedule(newTime time.Time, newDurationMinutes int) bool {
	if i.closed() {
		return false
	}
	i.ScheduledAt = newTime.UTC()
	if newDurationMinutes > 0 {
		i.DurationMinutes = newDurationMinutes
	}
	i.Status = InterviewStatusRescheduled
	return true
}

// MarkNoShow records that nobody turned up.
func (i *Interview) MarkNoShow() bool {
	if i.Status != InterviewStatusScheduled && i.Status != InterviewStatusConfirmed {
		return false
	}
	i.Status = InterviewStatusNoShow
	return true
}

// EndTime returns the scheduled end of the interview.
func (i *Interview) EndTime() time.Time {
	return i.ScheduledAt.Add(time.Duration(i.DurationMinutes) * time.Minute)
}
