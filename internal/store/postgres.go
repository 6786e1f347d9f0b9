package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Users ---

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := s.pool.QueryRow(ctx,
		`SELECT id, email, name, is_active, created_at, updated_at FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PostgresStore) ListActiveUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, name, is_active, created_at, updated_at
		 FROM users WHERE is_active ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list active users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE user_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL`, id, userID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, user_id, title, company, location, description, job_link,
	salary_min, salary_max, job_type, required_skills, preferred_skills, status,
	created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	err := row.Scan(&j.ID, &j.UserID, &j.Title, &j.Company, &j.Location, &j.Description,
		&j.JobLink, &j.SalaryMin, &j.SalaryMax, &j.JobType, &j.RequiredSkills,
		&j.PreferredSkills, &j.Status, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO jobs (id, user_id, title, company, location, description, job_link,
		   salary_min, salary_max, job_type, required_skills, preferred_skills, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		job.ID, job.UserID, job.Title, job.Company, job.Location, job.Description,
		job.JobLink, job.SalaryMin, job.SalaryMax, job.JobType, job.RequiredSkills,
		job.PreferredSkills, job.Status, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) JobExistsByLink(ctx context.Context, userID uuid.UUID, link string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM jobs WHERE user_id = $1 AND job_link = $2)`, userID, link,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("job exists by link: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) FindActiveJobByCompany(ctx context.Context, userID uuid.UUID, company string) (*models.Job, error) {
	j, err := scanJob(s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs
		 WHERE user_id = $1 AND LOWER(company) = LOWER($2)
		   AND status NOT IN ('rejected', 'accepted', 'declined')
		 ORDER BY updated_at DESC LIMIT 1`, userID, company))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find active job by company: %w", err)
	}
	return j, nil
}

func (s *PostgresStore) ListJobsByStatus(ctx context.Context, userID uuid.UUID, status string) ([]*models.Job, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE user_id = $1 AND status = $2 ORDER BY created_at`,
		userID, status)
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	var currentStatus string
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&currentStatus)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("get job status: %w", err)
	}

	if !models.ValidJobTransition(currentStatus, status) {
		return fmt.Errorf("invalid job status transition: %s -> %s", currentStatus, status)
	}

	_, err = s.pool.Exec(ctx,
		`UPDATE jobs SET status = $2, updated_at = $3 WHERE id = $1`, id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	return nil
}

// --- Applications ---

const applicationColumns = `id, user_id, job_id, resume_id, cover_letter, status,
	submitted_at, meta, created_at, updated_at`

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	err := row.Scan(&a.ID, &a.UserID, &a.JobID, &a.ResumeID, &a.CoverLetter, &a.Status,
		&a.SubmittedAt, &a.Meta, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *PostgresStore) CreateApplication(ctx context.Context, app *models.Application) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO applications (id, user_id, job_id, resume_id, cover_letter, status, submitted_at, meta, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		app.ID, app.UserID, app.JobID, app.ResumeID, app.CoverLetter, app.Status,
		app.SubmittedAt, app.Meta, app.CreatedAt, app.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetApplication(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Application, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = $1 AND user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) GetApplicationByJob(ctx context.Context, jobID uuid.UUID) (*models.Application, error) {
	a, err := scanApplication(s.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application by job: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListActiveSubmittedApplications(ctx context.Context, userID uuid.UUID) ([]*models.Application, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE user_id = $1 AND status IN ('submitted', 'under_review') AND submitted_at IS NOT NULL
		 ORDER BY submitted_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active submitted applications: %w", err)
	}
	defer rows.Close()

	var apps []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func (s *PostgresStore) UpdateApplication(ctx context.Context, app *models.Application) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET cover_letter = $2, status = $3, submitted_at = $4, meta = $5, updated_at = $6
		 WHERE id = $1`,
		app.ID, app.CoverLetter, app.Status, app.SubmittedAt, app.Meta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Communications ---

const communicationColumns = `id, user_id, job_id, application_id, type, direction,
	status, content, sent_at, follow_up_number, meta, created_at, updated_at`

func scanCommunication(row pgx.Row) (*models.Communication, error) {
	var c models.Communication
	err := row.Scan(&c.ID, &c.UserID, &c.JobID, &c.ApplicationID, &c.Type, &c.Direction,
		&c.Status, &c.Content, &c.SentAt, &c.FollowUpNumber, &c.Meta, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateCommunication(ctx context.Context, comm *models.Communication) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO communications (id, user_id, job_id, application_id, type, direction, status, content, sent_at, follow_up_number, meta, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		comm.ID, comm.UserID, comm.JobID, comm.ApplicationID, comm.Type, comm.Direction,
		comm.Status, comm.Content, comm.SentAt, comm.FollowUpNumber, comm.Meta,
		comm.CreatedAt, comm.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create communication: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateCommunication(ctx context.Context, comm *models.Communication) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE communications SET status = $2, sent_at = $3, meta = $4, updated_at = $5 WHERE id = $1`,
		comm.ID, comm.Status, comm.SentAt, comm.Meta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update communication: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) LatestCommunicationForApplication(ctx context.Context, applicationID uuid.UUID) (*models.Communication, error) {
	c, err := scanCommunication(s.pool.QueryRow(ctx,
		`SELECT `+communicationColumns+` FROM communications
		 WHERE application_id = $1 ORDER BY created_at DESC LIMIT 1`, applicationID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest communication for application: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) LatestIncomingEmailForJob(ctx context.Context, jobID uuid.UUID) (*models.Communication, error) {
	c, err := scanCommunication(s.pool.QueryRow(ctx,
		`SELECT `+communicationColumns+` FROM communications
		 WHERE job_id = $1 AND direction = 'incoming' AND type = 'email'
		 ORDER BY created_at DESC LIMIT 1`, jobID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("latest incoming email for job: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) CountFollowUps(ctx context.Context, applicationID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM communications
		 WHERE application_id = $1 AND direction = 'outgoing' AND follow_up_number > 0
		   AND status NOT IN ('draft', 'failed')`, applicationID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count follow-ups: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CommunicationExistsByProviderMsgID(ctx context.Context, userID uuid.UUID, msgID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM communications WHERE user_id = $1 AND meta->>'provider_msg_id' = $2)`,
		userID, msgID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("communication exists by provider msg id: %w", err)
	}
	return exists, nil
}

// --- Interviews ---

const interviewColumns = `id, user_id, job_id, type, scheduled_at, duration_minutes,
	location, notes, status, created_at, updated_at`

func scanInterview(row pgx.Row) (*models.Interview, error) {
	var i models.Interview
	err := row.Scan(&i.ID, &i.UserID, &i.JobID, &i.Type, &i.ScheduledAt, &i.DurationMinutes,
		&i.Location, &i.Notes, &i.Status, &i.CreatedAt, &i.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (s *PostgresStore) CreateInterview(ctx context.Context, iv *models.Interview) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO interviews (id, user_id, job_id, type, scheduled_at, duration_minutes, location, notes, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		iv.ID, iv.UserID, iv.JobID, iv.Type, iv.ScheduledAt, iv.DurationMinutes,
		iv.Location, iv.Notes, iv.Status, iv.CreatedAt, iv.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create interview: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateInterview(ctx context.Context, iv *models.Interview) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE interviews SET scheduled_at = $2, duration_minutes = $3, location = $4, notes = $5, status = $6, updated_at = $7
		 WHERE id = $1`,
		iv.ID, iv.ScheduledAt, iv.DurationMinutes, iv.Location, iv.Notes, iv.Status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update interview: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListInterviewsByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Interview, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+interviewColumns+` FROM interviews WHERE job_id = $1 ORDER BY scheduled_at`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list interviews by job: %w", err)
	}
	defer rows.Close()

	var interviews []*models.Interview
	for rows.Next() {
		i, err := scanInterview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan interview: %w", err)
		}
		interviews = append(interviews, i)
	}
	return interviews, rows.Err()
}

// --- Criteria and Resumes ---

func (s *PostgresStore) ListActiveCriteria(ctx context.Context, userID uuid.UUID) ([]*models.JobCriteria, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, title, keywords, location, min_salary, job_type, required_skills, preferred_skills, auto_submit, is_active, created_at, updated_at
		 FROM job_criteria WHERE user_id = $1 AND is_active ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list active criteria: %w", err)
	}
	defer rows.Close()

	var criteria []*models.JobCriteria
	for rows.Next() {
		var c models.JobCriteria
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Keywords, &c.Location, &c.MinSalary,
			&c.JobType, &c.RequiredSkills, &c.PreferredSkills, &c.AutoSubmit, &c.IsActive,
			&c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan criteria: %w", err)
		}
		criteria = append(criteria, &c)
	}
	return criteria, rows.Err()
}

func (s *PostgresStore) GetDefaultResume(ctx context.Context, userID uuid.UUID) (*models.Resume, error) {
	var r models.Resume
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_id, name, skills, experience_years, education, is_default, created_at, updated_at
		 FROM resumes WHERE user_id = $1 AND is_default LIMIT 1`, userID,
	).Scan(&r.ID, &r.UserID, &r.Name, &r.Skills, &r.ExperienceYears, &r.Education,
		&r.IsDefault, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get default resume: %w", err)
	}
	return &r, nil
}

// --- Agent Instructions ---

const instructionColumns = `id, user_id, agent_type, instructions, configuration,
	is_active, created_at, updated_at`

func scanInstruction(row pgx.Row) (*models.AgentInstruction, error) {
	var ai models.AgentInstruction
	err := row.Scan(&ai.ID, &ai.UserID, &ai.AgentType, &ai.Instructions, &ai.Configuration,
		&ai.IsActive, &ai.CreatedAt, &ai.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &ai, nil
}

func (s *PostgresStore) CreateInstruction(ctx context.Context, instr *models.AgentInstruction) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO agent_instructions (id, user_id, agent_type, instructions, configuration, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		instr.ID, instr.UserID, instr.AgentType, instr.Instructions, instr.Configuration,
		instr.IsActive, instr.CreatedAt, instr.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create instruction: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetActiveInstruction(ctx context.Context, userID uuid.UUID, agentType string) (*models.AgentInstruction, error) {
	ai, err := scanInstruction(s.pool.QueryRow(ctx,
		`SELECT `+instructionColumns+` FROM agent_instructions
		 WHERE user_id = $1 AND agent_type = $2 AND is_active`, userID, agentType))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active instruction: %w", err)
	}
	return ai, nil
}

func (s *PostgresStore) ListInstructions(ctx context.Context, userID uuid.UUID) ([]*models.AgentInstruction, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+instructionColumns+` FROM agent_instructions WHERE user_id = $1 ORDER BY agent_type`, userID)
	if err != nil {
		return nil, fmt.Errorf("list instructions: %w", err)
	}
	defer rows.Close()

	var instructions []*models.AgentInstruction
	for rows.Next() {
		ai, err := scanInstruction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan instruction: %w", err)
		}
		instructions = append(instructions, ai)
	}
	return instructions, rows.Err()
}

func (s *PostgresStore) SetInstructionActive(ctx context.Context, id uuid.UUID, userID uuid.UUID, active bool) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE agent_instructions SET is_active = $3, updated_at = NOW()
		 WHERE id = $1 AND user_id = $2 AND is_active <> $3`, id, userID, active)
	if err != nil {
		return false, fmt.Errorf("set instruction active: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// --- Proposed Instruction Changes ---

const changeColumns = `c.id, c.agent_instruction_id, c.current_instructions,
	c.proposed_instructions, c.reason, c.status, c.feedback, c.reviewed_at,
	c.created_at, c.updated_at`

func scanChange(row pgx.Row) (*models.ProposedInstructionChange, error) {
	var c models.ProposedInstructionChange
	err := row.Scan(&c.ID, &c.InstructionID, &c.CurrentInstructions, &c.ProposedInstructions,
		&c.Reason, &c.Status, &c.Feedback, &c.ReviewedAt, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *PostgresStore) CreateChange(ctx context.Context, change *models.ProposedInstructionChange) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO proposed_instruction_changes (id, agent_instruction_id, current_instructions, proposed_instructions, reason, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		change.ID, change.InstructionID, change.CurrentInstructions, change.ProposedInstructions,
		change.Reason, change.Status, change.CreatedAt, change.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create change: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetChange(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.ProposedInstructionChange, error) {
	c, err := scanChange(s.pool.QueryRow(ctx,
		`SELECT `+changeColumns+` FROM proposed_instruction_changes c
		 JOIN agent_instructions i ON i.id = c.agent_instruction_id
		 WHERE c.id = $1 AND i.user_id = $2`, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get change: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) ListChanges(ctx context.Context, filter ChangeFilter) ([]*models.ProposedInstructionChange, int, error) {
	conditions := []string{"i.user_id = $1"}
	args := []any{filter.UserID}
	argIdx := 2

	if filter.AgentType != "" {
		conditions = append(conditions, fmt.Sprintf("i.agent_type = $%d", argIdx))
		args = append(args, filter.AgentType)
		argIdx++
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", argIdx))
		args = append(args, filter.Status)
		argIdx++
	}

	where := strings.Join(conditions, " AND ")
	from := `FROM proposed_instruction_changes c JOIN agent_instructions i ON i.id = c.agent_instruction_id WHERE ` + where

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) "+from, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count changes: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	dataQuery := fmt.Sprintf("SELECT "+changeColumns+" %s ORDER BY c.created_at DESC LIMIT $%d OFFSET $%d",
		from, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list changes: %w", err)
	}
	defer rows.Close()

	var changes []*models.ProposedInstructionChange
	for rows.Next() {
		c, err := scanChange(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan change: %w", err)
		}
		changes = append(changes, c)
	}
	return changes, total, rows.Err()
}

// ApproveChange approves a pending change and applies the proposed text to
// the referenced instruction in the same transaction. Returns false with a
// nil error when the change exists but is no longer pending.
func (s *PostgresStore) ApproveChange(ctx context.Context, id uuid.UUID, userID uuid.UUID, feedback *string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin approve change: %w", err)
	}
	defer tx.Rollback(ctx)

	var instrID uuid.UUID
	var proposed, status string
	err = tx.QueryRow(ctx,
		`SELECT c.agent_instruction_id, c.proposed_instructions, c.status
		 FROM proposed_instruction_changes c
		 JOIN agent_instructions i ON i.id = c.agent_instruction_id
		 WHERE c.id = $1 AND i.user_id = $2
		 FOR UPDATE OF c`, id, userID,
	).Scan(&instrID, &proposed, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("lock change: %w", err)
	}

	if status != models.ChangeStatusPending {
		return false, nil
	}

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`UPDATE proposed_instruction_changes
		 SET status = $2, feedback = $3, reviewed_at = $4, updated_at = $4 WHERE id = $1`,
		id, models.ChangeStatusApproved, feedback, now)
	if err != nil {
		return false, fmt.Errorf("approve change: %w", err)
	}

	_, err = tx.Exec(ctx,
		`UPDATE agent_instructions SET instructions = $2, updated_at = $3 WHERE id = $1`,
		instrID, proposed, now)
	if err != nil {
		return false, fmt.Errorf("apply approved instructions: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit approve change: %w", err)
	}
	return true, nil
}

// RejectChange rejects a pending change. Feedback is required; a reject with
// empty feedback or of a non-pending change returns false without touching
// the row.
func (s *PostgresStore) RejectChange(ctx context.Context, id uuid.UUID, userID uuid.UUID, feedback string) (bool, error) {
	if feedback == "" {
		return false, nil
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM proposed_instruction_changes c
		   JOIN agent_instructions i ON i.id = c.agent_instruction_id
		   WHERE c.id = $1 AND i.user_id = $2)`, id, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check change: %w", err)
	}
	if !exists {
		return false, ErrNotFound
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE proposed_instruction_changes
		 SET status = $2, feedback = $3, reviewed_at = $4, updated_at = $4
		 WHERE id = $1 AND status = $5`,
		id, models.ChangeStatusRejected, feedback, time.Now().UTC(), models.ChangeStatusPending)
	if err != nil {
		return false, fmt.Errorf("reject change: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) CountPendingChanges(ctx context.Context, instructionID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM proposed_instruction_changes
		 WHERE agent_instruction_id = $1 AND status = 'pending'`, instructionID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending changes: %w", err)
	}
	return n, nil
}

// --- Outcome Metrics ---

func (s *PostgresStore) OutcomeMetrics(ctx context.Context, userID uuid.UUID, since time.Time) (*OutcomeMetrics, error) {
	var m OutcomeMetrics
	err := s.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM jobs WHERE user_id = $1 AND created_at >= $2),
		   (SELECT COUNT(*) FROM applications WHERE user_id = $1 AND submitted_at >= $2),
		   (SELECT COUNT(*) FROM communications WHERE user_id = $1 AND direction = 'incoming' AND created_at >= $2),
		   (SELECT COUNT(*) FROM interviews WHERE user_id = $1 AND created_at >= $2),
		   (SELECT COUNT(*) FROM jobs WHERE user_id = $1 AND status IN ('offered', 'accepted') AND updated_at >= $2),
		   (SELECT COUNT(*) FROM jobs WHERE user_id = $1 AND status = 'rejected' AND updated_at >= $2)`,
		userID, since,
	).Scan(&m.JobsDiscovered, &m.ApplicationsSubmitted, &m.ResponsesReceived,
		&m.InterviewsScheduled, &m.Offers, &m.Rejections)
	if err != nil {
		return nil, fmt.Errorf("outcome metrics: %w", err)
	}
	return &m, nil
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
