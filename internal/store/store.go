package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	ListActiveUsers(ctx context.Context) ([]*models.User, error)

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Job, error)
	JobExistsByLink(ctx context.Context, userID uuid.UUID, link string) (bool, error)
	FindActiveJobByCompany(ctx context.Context, userID uuid.UUID, company string) (*models.Job, error)
	ListJobsByStatus(ctx context.Context, userID uuid.UUID, status string) ([]*models.Job, error)
	UpdateJobStatus(ctx context.Context, id uuid.UUID, status string) error

	CreateApplication(ctx context.Context, app *models.Application) error
	GetApplication(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Application, error)
	GetApplicationByJob(ctx context.Context, jobID uuid.UUID) (*models.Application, error)
	ListActiveSubmittedApplications(ctx context.Context, userID uuid.UUID) ([]*models.Application, error)
	UpdateApplication(ctx context.Context, app *models.Application) error

	CreateCommunication(ctx context.Context, comm *models.Communication) error
	UpdateCommunication(ctx context.Context, comm *models.Communication) error
	LatestCommunicationForApplication(ctx context.Context, applicationID uuid.UUID) (*models.Communication, error)
	LatestIncomingEmailForJob(ctx context.Context, jobID uuid.UUID) (*models.Communication, error)
	CountFollowUps(ctx context.Context, applicationID uuid.UUID) (int, error)
	CommunicationExistsByProviderMsgID(ctx context.Context, userID uuid.UUID, msgID string) (bool, error)

	CreateInterview(ctx context.Context, iv *models.Interview) error
	UpdateInterview(ctx context.Context, iv *models.Interview) error
	ListInterviewsByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Interview, error)

	ListActiveCriteria(ctx context.Context, userID uuid.UUID) ([]*models.JobCriteria, error)
	GetDefaultResume(ctx context.Context, userID uuid.UUID) (*models.Resume, error)

	CreateInstruction(ctx context.Context, instr *models.AgentInstruction) error
	GetActiveInstruction(ctx context.Context, userID uuid.UUID, agentType string) (*models.AgentInstruction, error)
	ListInstructions(ctx context.Context, userID uuid.UUID) ([]*models.AgentInstruction, error)
	SetInstructionActive(ctx context.Context, id uuid.UUID, userID uuid.UUID, active bool) (bool, error)

	CreateChange(ctx context.Context, change *models.ProposedInstructionChange) error
	GetChange(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.ProposedInstructionChange, error)
	ListChanges(ctx context.Context, filter ChangeFilter) ([]*models.ProposedInstructionChange, int, error)
	ApproveChange(ctx context.Context, id uuid.UUID, userID uuid.UUID, feedback *string) (bool, error)
	RejectChange(ctx context.Context, id uuid.UUID, userID uuid.UUID, feedback string) (bool, error)
	CountPendingChanges(ctx context.Context, instructionID uuid.UUID) (int, error)

	OutcomeMetrics(ctx context.Context, userID uuid.UUID, since time.Time) (*OutcomeMetrics, error)
}

// ChangeFilter narrows ListChanges. Zero fields are ignored.
type ChangeFilter struct {
	UserID    uuid.UUID
	AgentType string
	Status    string
	Page      int
	Limit     int
}

// OutcomeMetrics aggregates one user's pipeline results since a point in
// time. Feeds the instruction-improvement prompt.
type OutcomeMetrics struct {
	JobsDiscovered        int `json:"jobs_discovered"`
	ApplicationsSubmitted int `json:"applications_submitted"`
	ResponsesReceived     int `json:"responses_received"`
	InterviewsScheduled   int `json:"interviews_scheduled"`
	Offers                int `json:"offers"`
	Rejections            int `json:"rejections"`
}
