package agent

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kiranshivaraju/jobpilot/internal/search"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

const (
	maxPromptContentChars = 4000
	maxEmailBodyChars     = 3000
)

// buildEvaluationPrompt asks the provider to compare one search hit against
// the user's criteria and answer with a structured verdict.
func buildEvaluationPrompt(criteria *models.JobCriteria, hit search.Result, instructions string) string {
	var b strings.Builder
	b.WriteString("You evaluate whether a web search result is a job posting that matches the given criteria.\n\n")
	if instructions != "" {
		b.WriteString("Operating instructions:\n")
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}

	b.WriteString("Criteria:\n")
	fmt.Fprintf(&b, "- title: %s\n", criteria.Title)
	if len(criteria.Keywords) > 0 {
		fmt.Fprintf(&b, "- keywords: %s\n", strings.Join(criteria.Keywords, ", "))
	}
	if criteria.Location != "" {
		fmt.Fprintf(&b, "- location: %s\n", criteria.Location)
	}
	if criteria.MinSalary != nil {
		fmt.Fprintf(&b, "- minimum salary: %.0f\n", *criteria.MinSalary)
	}
	if criteria.JobType != "" {
		fmt.Fprintf(&b, "- job type: %s\n", criteria.JobType)
	}
	if len(criteria.RequiredSkills) > 0 {
		fmt.Fprintf(&b, "- required skills: %s\n", strings.Join(criteria.RequiredSkills, ", "))
	}
	if len(criteria.PreferredSkills) > 0 {
		fmt.Fprintf(&b, "- preferred skills: %s\n", strings.Join(criteria.PreferredSkills, ", "))
	}

	b.WriteString("\nSearch result:\n")
	fmt.Fprintf(&b, "- title: %s\n", hit.Title)
	fmt.Fprintf(&b, "- url: %s\n", hit.URL)
	fmt.Fprintf(&b, "- content: %s\n", truncateString(hit.Content, maxPromptContentChars))

	b.WriteString(`
Respond with JSON only, no prose, in this exact shape:
{"matches_criteria": bool, "reason": string, "confidence_score": number between 0 and 1, "extracted_info": {"title": string, "company": string, "location": string, "salary_min": number or null, "salary_max": number or null, "job_type": string, "required_skills": [string], "preferred_skills": [string], "description": string}}`)
	return b.String()
}

// buildCoverLetterPrompt asks the provider for a cover letter tailored to the
// job, leading with the skills the resume shares with the posting.
func buildCoverLetterPrompt(job *models.Job, resume *models.Resume, instructions string) string {
	matched := intersectSkills(resume.Skills, job.Skills())

	var b strings.Builder
	b.WriteString("Write a concise, professional cover letter for the job below.\n\n")
	if instructions != "" {
		b.WriteString("Operating instructions:\n")
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Position: %s at %s (%s)\n", job.Title, job.Company, job.Location)
	fmt.Fprintf(&b, "Description: %s\n", truncateString(job.Description, maxPromptContentChars))
	if len(job.RequiredSkills) > 0 {
		fmt.Fprintf(&b, "Required skills: %s\n", strings.Join(job.RequiredSkills, ", "))
	}

	fmt.Fprintf(&b, "\nCandidate: %d years of experience\n", resume.ExperienceYears)
	if len(matched) > 0 {
		fmt.Fprintf(&b, "Skills matching the posting (emphasize these): %s\n", strings.Join(matched, ", "))
	}
	if len(resume.Skills) > 0 {
		fmt.Fprintf(&b, "All skills: %s\n", strings.Join(resume.Skills, ", "))
	}
	for _, ed := range resume.Education {
		fmt.Fprintf(&b, "Education: %s in %s, %s (%d)\n", ed.Degree, ed.Field, ed.School, ed.Year)
	}

	b.WriteString("\nReturn only the cover letter body, no subject line and no commentary.")
	return b.String()
}

// buildClassificationPrompt asks the provider to classify one inbox message.
func buildClassificationPrompt(from, subject, body, instructions string) string {
	var b strings.Builder
	b.WriteString("You classify inbox emails for a job seeker.\n\n")
	if instructions != "" {
		b.WriteString("Operating instructions:\n")
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "From: %s\nSubject: %s\nBody:\n%s\n", from, subject, truncateString(body, maxEmailBodyChars))

	b.WriteString(`
Respond with JSON only, no prose, in this exact shape:
{"is_job_related": bool, "email_type": one of "interview_invitation"|"application_received"|"rejection"|"follow_up_needed"|"other", "company_name": string, "position_title": string, "next_steps": string, "urgency_level": integer 1-5, "suggested_response": string, "proposed_time": RFC3339 timestamp or ""}`)
	return b.String()
}

// buildFollowUpPrompt asks the provider for a follow-up email body.
func buildFollowUpPrompt(job *models.Job, daysSinceSubmission, followUpNumber int, instructions string) string {
	var b strings.Builder
	b.WriteString("Write a short, polite follow-up email about a job application.\n\n")
	if instructions != "" {
		b.WriteString("Operating instructions:\n")
		b.WriteString(instructions)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Position: %s at %s\n", job.Title, job.Company)
	fmt.Fprintf(&b, "The application was submitted %d days ago.\n", daysSinceSubmission)
	fmt.Fprintf(&b, "This is follow-up number %d.\n", followUpNumber)
	b.WriteString("\nReturn only the email body, no subject line and no commentary.")
	return b.String()
}

// buildImprovementPrompt asks the provider to suggest better instructions for
// one agent based on recent pipeline outcomes.
func buildImprovementPrompt(agentType, current string, metrics *store.OutcomeMetrics, window time.Duration) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You tune the operating instructions of the %q agent in a job-search pipeline.\n\n", agentType)

	b.WriteString("Current instructions:\n")
	b.WriteString(current)
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Outcomes over the last %d days:\n", int(window.Hours()/24))
	fmt.Fprintf(&b, "- jobs discovered: %d\n", metrics.JobsDiscovered)
	fmt.Fprintf(&b, "- applications submitted: %d\n", metrics.ApplicationsSubmitted)
	fmt.Fprintf(&b, "- responses received: %d\n", metrics.ResponsesReceived)
	fmt.Fprintf(&b, "- interviews scheduled: %d\n", metrics.InterviewsScheduled)
	fmt.Fprintf(&b, "- offers: %d\n", metrics.Offers)
	fmt.Fprintf(&b, "- rejections: %d\n", metrics.Rejections)

	b.WriteString(`
If the instructions could plausibly be improved, respond with JSON only:
{"proposed_instructions": string, "reason": string}
If they are already good, return the current instructions unchanged as proposed_instructions.`)
	return b.String()
}

// intersectSkills returns the resume skills that also appear in the job's
// skill list, case-insensitively, preserving resume order.
func intersectSkills(resumeSkills, jobSkills []string) []string {
	wanted := make(map[string]bool, len(jobSkills))
	for _, s := range jobSkills {
		wanted[strings.ToLower(s)] = true
	}
	var out []string
	for _, s := range resumeSkills {
		if wanted[strings.ToLower(s)] {
			out = append(out, s)
		}
	}
	return out
}

// truncateString shortens s to maxLen characters without splitting a rune.
func truncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen]) + "..."
}
