// Package agent implements the capability agents of the job-search pipeline
// and the controller that sequences them into per-user cycles.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/search"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
	"github.com/kiranshivaraju/jobpilot/pkg/searchquery"
)

// SearchService discovers job postings for a user's active criteria.
type SearchService struct {
	store      store.Store
	search     search.Client
	provider   models.TextGenerator
	builder    searchquery.QueryBuilder
	timeout    time.Duration
	maxResults int
}

// NewSearchService creates a SearchService. timeout bounds each provider
// generation call.
func NewSearchService(st store.Store, sc search.Client, provider models.TextGenerator, timeout time.Duration, maxResults int) *SearchService {
	return &SearchService{
		store:      st,
		search:     sc,
		provider:   provider,
		timeout:    timeout,
		maxResults: maxResults,
	}
}

// Run searches for all active criteria of the user and persists matching hits
// as new jobs. Returns the jobs created. A search provider failure surfaces
// as ErrProvider together with whatever was created before it; a bad verdict
// or a provider failure on a single candidate only drops that candidate.
func (s *SearchService) Run(ctx context.Context, userID uuid.UUID) ([]*models.Job, error) {
	criteria, err := s.store.ListActiveCriteria(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing criteria: %w", err)
	}

	instructions := activeInstructions(ctx, s.store, userID, models.AgentSearch)

	var created []*models.Job
	seen := make(map[string]bool)
	for _, c := range criteria {
		query := s.builder.BuildJobQuery(searchquery.Params{
			Title:     c.Title,
			Keywords:  c.Keywords,
			Location:  c.Location,
			JobType:   c.JobType,
			MinSalary: c.MinSalary,
		})

		results, err := s.search.Search(ctx, search.Request{
			Query:          query,
			IncludeDomains: searchquery.DefaultJobBoards,
			MaxResults:     s.maxResults,
		})
		if err != nil {
			return created, fmt.Errorf("%w: search: %v", ErrProvider, err)
		}

		for _, hit := range results {
			if !searchquery.LooksLikeJobPosting(hit.URL, hit.Title, hit.Content) {
				continue
			}
			if seen[hit.URL] {
				continue
			}
			seen[hit.URL] = true

			exists, err := s.store.JobExistsByLink(ctx, userID, hit.URL)
			if err != nil {
				slog.Error("job dedup check failed", "user_id", userID, "url", hit.URL, "error", err)
				continue
			}
			if exists {
				continue
			}

			job, err := s.evaluate(ctx, userID, c, hit, instructions)
			if err != nil {
				slog.Warn("candidate dropped", "user_id", userID, "url", hit.URL, "error", err)
				continue
			}
			if job == nil {
				continue
			}

			if err := s.store.CreateJob(ctx, job); err != nil {
				if errors.Is(err, store.ErrDuplicateKey) {
					continue
				}
				slog.Error("saving job failed", "user_id", userID, "url", hit.URL, "error", err)
				continue
			}
			created = append(created, job)
		}
	}
	return created, nil
}

// evaluate asks the provider for a verdict on one candidate. Returns nil, nil
// when the candidate does not match.
func (s *SearchService) evaluate(ctx context.Context, userID uuid.UUID, c *models.JobCriteria, hit search.Result, instructions string) (*models.Job, error) {
	prompt := buildEvaluationPrompt(c, hit, instructions)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.provider.Generate(genCtx, prompt, models.GenerateOptions{Temperature: 0.2})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	verdict, err := parseVerdict(raw)
	if err != nil {
		return nil, err
	}
	if !verdict.MatchesCriteria {
		return nil, nil
	}

	info := verdict.ExtractedInfo
	title := info.Title
	if title == "" {
		title = hit.Title
	}
	company := info.Company
	if company == "" {
		company = "Unknown"
	}
	description := info.Description
	if description == "" {
		description = truncateString(hit.Content, maxPromptContentChars)
	}

	return &models.Job{
		ID:              uuid.New(),
		UserID:          userID,
		Title:           title,
		Company:         company,
		Location:        info.Location,
		Description:     description,
		JobLink:         hit.URL,
		SalaryMin:       info.SalaryMin,
		SalaryMax:       info.SalaryMax,
		JobType:         info.JobType,
		RequiredSkills:  info.RequiredSkills,
		PreferredSkills: info.PreferredSkills,
		Status:          models.JobStatusNew,
	}, nil
}

// activeInstructions loads the active instruction text for one agent type.
// Missing instructions are not an error; the agent runs without them.
func activeInstructions(ctx context.Context, st store.Store, userID uuid.UUID, agentType string) string {
	instr, err := st.GetActiveInstruction(ctx, userID, agentType)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("loading instructions failed", "user_id", userID, "agent_type", agentType, "error", err)
		}
		return ""
	}
	return instr.Instructions
}
