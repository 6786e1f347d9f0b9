package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/ai/mock"
	"github.com/kiranshivaraju/jobpilot/internal/mail"
	"github.com/kiranshivaraju/jobpilot/internal/search"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// routingProvider answers each agent's prompt by recognizing its preamble.
func routingProvider() *mock.MockProvider {
	invitation := `{
		"is_job_related": true,
		"email_type": "interview_invitation",
		"company_name": "Example Corp",
		"position_title": "Senior Software Engineer",
		"next_steps": "Pick a slot",
		"urgency_level": 4,
		"suggested_response": "",
		"proposed_time": ""
	}`
	return &mock.MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, prompt string, _ models.GenerateOptions) (string, error) {
			switch {
			case strings.Contains(prompt, "job posting that matches"):
				return matchingVerdict, nil
			case strings.Contains(prompt, "cover letter"):
				return "Dear hiring team, ...", nil
			case strings.Contains(prompt, "classify inbox emails"):
				return invitation, nil
			case strings.Contains(prompt, "tune the operating instructions"):
				return proposalVerdict, nil
			}
			return "", errors.New("unexpected prompt")
		},
	}
}

func controllerFixture(t *testing.T, provider models.TextGenerator, sc search.Client, mc mail.Client, proposalEvery int) (*Controller, *fakeStore, *fakeCache, uuid.UUID) {
	t.Helper()
	st := newFakeStore()
	ca := newFakeCache()
	userID := uuid.New()
	st.users = []*models.User{{ID: userID, Email: "user@example.com", IsActive: true}}
	for _, at := range models.AgentTypes {
		st.addInstruction(userID, at, "Baseline instructions for "+at+".")
	}
	st.resume = &models.Resume{
		ID: uuid.New(), UserID: userID, Name: "Default",
		Skills: []string{"php", "vue"}, IsDefault: true,
	}
	minSalary := 120000.0
	st.criteria = []*models.JobCriteria{{
		ID: uuid.New(), UserID: userID,
		Title: "Software Engineer", MinSalary: &minSalary, IsActive: true,
	}}

	timeout := time.Second
	ctrl := NewController(
		NewSearchService(st, sc, provider, timeout, 20),
		NewDraftService(st, provider, timeout),
		NewCommsService(st, mc, provider, timeout, 48*time.Hour, 50),
		NewSchedulingService(st),
		NewGovernanceService(st, provider, timeout),
		st, ca, proposalEvery,
	)
	return ctrl, st, ca, userID
}

func TestRunCycle_HappyPath(t *testing.T) {
	sc := &fakeSearch{searchFn: func(_ context.Context, _ search.Request) ([]search.Result, error) {
		return []search.Result{{
			Title:   "Senior Software Engineer - Example Corp",
			URL:     "https://www.linkedin.com/jobs/view/12345",
			Content: "Example Corp is hiring.",
		}}, nil
	}}
	mc := &fakeMail{messages: []mail.Message{{
		ID: "msg-1", From: "recruiter@example-corp.example",
		Subject: "Interview invitation", Body: "We would like to meet you",
	}}}

	ctrl, st, ca, userID := controllerFixture(t, routingProvider(), sc, mc, 1)
	report, ok := ctrl.RunCycle(context.Background(), userID)
	if !ok {
		t.Fatalf("RunCycle() ok = false, report = %+v", report)
	}
	if len(report.PhaseErrors) != 0 {
		t.Fatalf("phase errors: %+v", report.PhaseErrors)
	}
	if report.JobsFound != 1 {
		t.Errorf("jobs_found = %d, want 1", report.JobsFound)
	}
	if report.ApplicationsDrafted != 1 {
		t.Errorf("applications_drafted = %d, want 1", report.ApplicationsDrafted)
	}
	if report.MessagesProcessed != 1 {
		t.Errorf("messages_processed = %d, want 1", report.MessagesProcessed)
	}
	if report.InterviewsScheduled != 1 {
		t.Errorf("interviews_scheduled = %d, want 1", report.InterviewsScheduled)
	}
	if report.ProposalsCreated != len(models.AgentTypes) {
		t.Errorf("proposals_created = %d, want %d", report.ProposalsCreated, len(models.AgentTypes))
	}

	status, found, _ := ca.GetCycleStatus(context.Background(), userID)
	if !found || status != CycleStatusCompleted {
		t.Errorf("cycle status = %q, want %q", status, CycleStatusCompleted)
	}

	// The discovered job went new -> interviewing through the invitation.
	jobs, _ := st.ListJobsByStatus(context.Background(), userID, models.JobStatusInterviewing)
	if len(jobs) != 1 {
		t.Errorf("interviewing jobs = %d, want 1", len(jobs))
	}
}

func TestRunCycle_PhaseFailureIsolated(t *testing.T) {
	sc := &fakeSearch{searchFn: func(_ context.Context, _ search.Request) ([]search.Result, error) {
		return nil, search.ErrSearchUnavailable
	}}
	mc := &fakeMail{}

	ctrl, _, ca, userID := controllerFixture(t, routingProvider(), sc, mc, 100)
	report, ok := ctrl.RunCycle(context.Background(), userID)
	if !ok {
		t.Fatal("RunCycle() ok = false despite later phases succeeding")
	}
	if len(report.PhaseErrors) != 1 || report.PhaseErrors[0].Phase != "search" {
		t.Fatalf("phase errors = %+v", report.PhaseErrors)
	}

	status, _, _ := ca.GetCycleStatus(context.Background(), userID)
	if status != CycleStatusPartial {
		t.Errorf("cycle status = %q, want %q", status, CycleStatusPartial)
	}
}

func TestRunCycle_NoForwardProgress(t *testing.T) {
	sc := &fakeSearch{searchFn: func(_ context.Context, _ search.Request) ([]search.Result, error) {
		return nil, search.ErrSearchUnavailable
	}}
	mc := &fakeMail{listErr: mail.ErrMailUnavailable}

	ctrl, st, ca, userID := controllerFixture(t, routingProvider(), sc, mc, 100)
	st.criteriaErr = errors.New("db down")
	st.appsErr = errors.New("db down")
	st.resume = nil

	report, ok := ctrl.RunCycle(context.Background(), userID)
	if ok {
		t.Fatalf("RunCycle() ok = true with every phase failing: %+v", report)
	}
	if len(report.PhaseErrors) != 4 {
		t.Errorf("phase errors = %d, want 4: %+v", len(report.PhaseErrors), report.PhaseErrors)
	}

	status, _, _ := ca.GetCycleStatus(context.Background(), userID)
	if status != CycleStatusFailed {
		t.Errorf("cycle status = %q, want %q", status, CycleStatusFailed)
	}
}

func TestRunCycle_CancellationStopsAtPhaseBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sc := &fakeSearch{searchFn: func(_ context.Context, _ search.Request) ([]search.Result, error) {
		cancel() // cancellation arrives while the search phase is running
		return []search.Result{}, nil
	}}
	mc := &fakeMail{listErr: mail.ErrMailUnavailable}

	ctrl, st, ca, userID := controllerFixture(t, routingProvider(), sc, mc, 100)
	report, ok := ctrl.RunCycle(ctx, userID)
	if !ok {
		t.Fatal("RunCycle() ok = false, the search phase completed")
	}
	if !report.Cancelled {
		t.Fatal("report not marked cancelled")
	}
	// No later phase ran: nothing drafted, the failing mail gateway was never
	// reached.
	if report.ApplicationsDrafted != 0 {
		t.Errorf("applications_drafted = %d after cancellation", report.ApplicationsDrafted)
	}
	for _, pe := range report.PhaseErrors {
		if pe.Phase == "inbox" {
			t.Error("inbox phase ran after cancellation")
		}
	}
	if len(st.apps) != 0 {
		t.Error("entities created after cancellation")
	}

	status, _, _ := ca.GetCycleStatus(context.Background(), userID)
	if status != CycleStatusCancelled {
		t.Errorf("cycle status = %q, want %q", status, CycleStatusCancelled)
	}
}

func TestRunCycle_ProposalsGatedByCycleCount(t *testing.T) {
	sc := &fakeSearch{searchFn: func(_ context.Context, _ search.Request) ([]search.Result, error) {
		return []search.Result{}, nil
	}}
	ctrl, _, _, userID := controllerFixture(t, routingProvider(), sc, &fakeMail{}, 2)

	report, _ := ctrl.RunCycle(context.Background(), userID)
	if report.ProposalsCreated != 0 {
		t.Errorf("first cycle proposals = %d, want 0", report.ProposalsCreated)
	}

	report, _ = ctrl.RunCycle(context.Background(), userID)
	if report.ProposalsCreated != len(models.AgentTypes) {
		t.Errorf("second cycle proposals = %d, want %d", report.ProposalsCreated, len(models.AgentTypes))
	}
}

func TestRunAllUsers(t *testing.T) {
	sc := &fakeSearch{searchFn: func(_ context.Context, _ search.Request) ([]search.Result, error) {
		return []search.Result{}, nil
	}}
	ctrl, st, ca, userID := controllerFixture(t, routingProvider(), sc, &fakeMail{}, 100)
	second := &models.User{ID: uuid.New(), Email: "two@example.com", IsActive: true}
	st.users = append(st.users, second)

	if err := ctrl.RunAllUsers(context.Background()); err != nil {
		t.Fatalf("RunAllUsers() error = %v", err)
	}
	for _, id := range []uuid.UUID{userID, second.ID} {
		if _, found, _ := ca.GetCycleStatus(context.Background(), id); !found {
			t.Errorf("no cycle status for user %s", id)
		}
	}
}
