package models

import (
	"time"

	"github.com/google/uuid"
)

// JobCriteria is the user's search profile, read-only input to one search
// cycle. AutoSubmit controls whether drafted applications are submitted
// without manual review.
type JobCriteria struct {
	ID              uuid.UUID `db:"id"               json:"id"`
	UserID          uuid.UUID `db:"user_id"          json:"user_id"`
	Title           string    `db:"title"            json:"title"`
	Keywords        []string  `db:"keywords"         json:"keywords"`
	Location        string    `db:"location"         json:"location"`
	MinSalary       *float64  `db:"min_salary"       json:"min_salary,omitempty"`
	JobType         string    `db:"job_type"         json:"job_type"`
	RequiredSkills  []string  `db:"required_skills"  json:"required_skills"`
	PreferredSkills []string  `db:"preferred_skills" json:"preferred_skills"`
	AutoSubmit      bool      `db:"auto_submit"      json:"auto_submit"`
	IsActive        bool      `db:"is_active"        json:"is_active"`
	CreatedAt       time.Time `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"       json:"updated_at"`
}

// Education is one entry in a resume's education history.
type Education struct {
	Degree string `json:"degree"`
	Field  string `json:"field"`
	School string `json:"school"`
	Year   int    `json:"year"`
}

// Resume holds the structured resume data the draft agent works from.
type Resume struct {
	ID              uuid.UUID   `db:"id"               json:"id"`
	UserID          uuid.UUID   `db:"user_id"          json:"user_id"`
	Name            string      `db:"name"             json:"name"`
	Skills          []string    `db:"skills"           json:"skills"`
	ExperienceYears int         `db:"experience_years" json:"experience_years"`
	Education       []Education `db:"education"        json:"education"`
	IsDefault       bool        `db:"is_default"       json:"is_default"`
	CreatedAt       time.Time   `db:"created_at"       json:"created_at"`
	UpdatedAt       time.Time   `db:"updated_at"       json:"updated_at"`
}
