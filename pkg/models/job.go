// Package models contains shared data models used across the JobPilot codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

// Job statuses. A job only ever moves forward along the transition table
// below; rejected, accepted and declined are terminal.
const (
	JobStatusNew          = "new"
	JobStatusApplied      = "applied"
	JobStatusInterviewing = "interviewing"
	JobStatusOffered      = "offered"
	JobStatusRejected     = "rejected"
	JobStatusAccepted     = "accepted"
	JobStatusDeclined     = "declined"
)

// Job types.
const (
	JobTypeFullTime   = "full-time"
	JobTypePartTime   = "part-time"
	JobTypeContract   = "contract"
	JobTypeFreelance  = "freelance"
	JobTypeInternship = "internship"
)

// Job is a posting discovered by the search agent. Status is advanced by
// downstream agents through the transition methods only.
type Job struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	UserID          uuid.UUID `db:"user_id"          json:"user_id"`
	Title           string    `db:"title"            json:"title"`
	Company         string    `db:"company"          json:"company"`
	Location        string    `db:"location"         json:"location"`
	Description     string    `db:"description"      json:"description"`
	JobLink         string    `db:"job_link"         json:"job_link"`
	SalaryMin       *float64  `db:"salary_min"       json:"salary_min,omitempty"`
	SalaryMax       *float64  `db:"salary_max"       json:"salary_max,omitempty"`
	JobType         string    `db:"job_type"         json:"job_type"`
	RequiredSkills  []string  `db:"required_skills"  json:"required_skills"`
	PreferredSkills []string  `db:"preferred_skills" json:"preferred_skills"`
	Status          string    `db:"status"           json:"status"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}

var jobTransitions = map[string][]string{
	JobStatusNew:          {JobStatusApplied, JobStatusInterviewing, JobStatusRejected},
	JobStatusApplied:      {JobStatusInterviewing, JobStatusRejected},
	JobStatusInterviewing: {JobStatusOffered, JobStatusRejected},
	JobStatusOffered:      {JobStatusAccepted, JobStatusDeclined, JobStatusRejected},
}

// ValidJobTransition reports whether a job may move from one status to
// another. Used by the store to guard direct status updates.
func ValidJobTransition(from, to string) bool {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// transition moves the job to target if the current status allows it.
// Returns false and leaves the job unchanged otherwise.
func (j *Job) transition(target string) bool {
	for _, allowed := range jobTransitions[j.Status] {
		if allowed == target {
			j.Status = target
			return true
		}
	}
	return false
}

// MarkApplied records that an application for this job went out.
func (j *Job) MarkApplied() bool { return j.transition(JobStatusApplied) }

// MarkInterviewing records that an interview was scheduled for this job.
func (j *Job) MarkInterviewing() bool { return j.transition(JobStatusInterviewing) }

// MarkOffered records an offer from the company.
func (j *Job) MarkOffered() bool { return j.transition(JobStatusOffered) }

// Accept accepts an outstanding offer. Terminal.
func (j *Job) Accept() bool { return j.transition(JobStatusAccepted) }

// Decline declines an outstanding offer. Terminal.
func (j *Job) Decline() bool { return j.transition(JobStatusDeclined) }

// MarkRejected records a rejection by the company. Terminal, legal from any
// non-terminal status.
func (j *Job) MarkRejected() bool { return j.transition(JobStatusRejected) }

// IsActive reports whether the job is still worth acting on.
func (j *Job) IsActive() bool {
	switch j.Status {
	case JobStatusRejected, JobStatusAccepted, JobStatusDeclined:
		return false
	}
	return true
}

// Skills returns the union of required and preferred skills, in order,
// without duplicates.
func (j *Job) Skills() []string {
	seen := make(map[string]bool, len(j.RequiredSkills)+len(j.PreferredSkills))
	var out []string
	for _, s := range append(append([]string{}, j.RequiredSkills...), j.PreferredSkills...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
