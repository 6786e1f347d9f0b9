// Package searchquery builds web search queries from job criteria and
// classifies search hits as job postings or noise.
package searchquery

import (
	"strconv"
	"strings"
)

// DefaultJobBoards are the domains searches are restricted to by default.
var DefaultJobBoards = []string{"linkedin.com", "indeed.com", "glassdoor.com"}

// QueryBuilder constructs search query strings from job criteria.
// All methods are pure functions with no side effects.
// Zero value is ready to use.
type QueryBuilder struct{}

// Params defines inputs for a job search query.
type Params struct {
	Title     string
	Keywords  []string
	Location  string
	JobType   string
	MinSalary *float64
}

// BuildJobQuery returns a free-text search query for the given criteria.
// Empty fields are skipped.
func (b QueryBuilder) BuildJobQuery(p Params) string {
	var parts []string
	if p.Title != "" {
		parts = append(parts, p.Title)
	}
	for _, kw := range p.Keywords {
		if kw != "" {
			parts = append(parts, kw)
		}
	}
	if p.JobType != "" {
		parts = append(parts, p.JobType)
	}
	if p.Location != "" {
		parts = append(parts, p.Location)
	}
	if p.MinSalary != nil && *p.MinSalary > 0 {
		parts = append(parts, "$"+groupThousands(*p.MinSalary)+"+ salary")
	}
	parts = append(parts, "job opening")
	return strings.Join(parts, " ")
}

// groupThousands renders a salary with comma separators ("130000" -> "130,000").
func groupThousands(v float64) string {
	s := strconv.FormatFloat(v, 'f', 0, 64)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}

// URL fragments that identify a job-board posting regardless of page text.
var jobBoardPatterns = []string{
	"linkedin.com/jobs",
	"indeed.com/job",
	"glassdoor.com/job",
	"careers.",
	"jobs.",
	"/job/",
	"/careers/",
}

var jobKeywords = []string{"job", "career", "position", "opening", "hiring", "vacancy"}

var blogKeywords = []string{"blog", "article", "news", "about", "tips", "guide", "how to"}

// LooksLikeJobPosting reports whether a search hit is plausibly a job posting
// rather than a blog post or news page. A known job-board URL always passes;
// otherwise the title and snippet must mention a job keyword and not read
// like editorial content.
func LooksLikeJobPosting(url, title, snippet string) bool {
	lowerURL := strings.ToLower(url)
	for _, pattern := range jobBoardPatterns {
		if strings.Contains(lowerURL, pattern) {
			return true
		}
	}

	text := strings.ToLower(title + " " + snippet)
	for _, kw := range blogKeywords {
		if strings.Contains(text, kw) {
			return false
		}
	}
	for _, kw := range jobKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}
