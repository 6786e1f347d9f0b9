package agent

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/cache"
	"github.com/kiranshivaraju/jobpilot/internal/mail"
	"github.com/kiranshivaraju/jobpilot/internal/search"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// fakeStore is an in-memory store.Store for agent tests. Not safe for
// concurrent use; the agents under test are sequential.
type fakeStore struct {
	users      []*models.User
	jobs       map[uuid.UUID]*models.Job
	apps       map[uuid.UUID]*models.Application
	comms      map[uuid.UUID]*models.Communication
	interviews map[uuid.UUID]*models.Interview
	criteria   []*models.JobCriteria
	resume     *models.Resume
	instrs     map[string]*models.AgentInstruction
	changes    map[uuid.UUID]*models.ProposedInstructionChange
	metrics    store.OutcomeMetrics

	jobStatusUpdates []string

	// error injection
	criteriaErr error
	appsErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:       make(map[uuid.UUID]*models.Job),
		apps:       make(map[uuid.UUID]*models.Application),
		comms:      make(map[uuid.UUID]*models.Communication),
		interviews: make(map[uuid.UUID]*models.Interview),
		instrs:     make(map[string]*models.AgentInstruction),
		changes:    make(map[uuid.UUID]*models.ProposedInstructionChange),
	}
}

func (f *fakeStore) addInstruction(userID uuid.UUID, agentType, text string) *models.AgentInstruction {
	instr := &models.AgentInstruction{
		ID: uuid.New(), UserID: userID, AgentType: agentType,
		Instructions: text, IsActive: true,
	}
	f.instrs[agentType] = instr
	return instr
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }

func (f *fakeStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListActiveUsers(ctx context.Context) ([]*models.User, error) {
	return f.users, nil
}

func (f *fakeStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	return nil, nil
}
func (f *fakeStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error { return nil }
func (f *fakeStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error   { return nil }
func (f *fakeStore) ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (f *fakeStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error {
	return nil
}

func (f *fakeStore) CreateJob(ctx context.Context, job *models.Job) error {
	for _, j := range f.jobs {
		if j.UserID == job.UserID && j.JobLink == job.JobLink {
			return store.ErrDuplicateKey
		}
	}
	cp := *job
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.jobs[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetJob(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Job, error) {
	if j, ok := f.jobs[id]; ok && j.UserID == userID {
		cp := *j
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) JobExistsByLink(ctx context.Context, userID uuid.UUID, link string) (bool, error) {
	for _, j := range f.jobs {
		if j.UserID == userID && j.JobLink == link {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) FindActiveJobByCompany(ctx context.Context, userID uuid.UUID, company string) (*models.Job, error) {
	for _, j := range f.jobs {
		if j.UserID == userID && strings.EqualFold(j.Company, company) && j.IsActive() {
			cp := *j
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListJobsByStatus(ctx context.Context, userID uuid.UUID, status string) ([]*models.Job, error) {
	var out []*models.Job
	for _, j := range f.jobs {
		if j.UserID == userID && j.Status == status {
			cp := *j
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.Before(out[k].CreatedAt) })
	return out, nil
}

func (f *fakeStore) UpdateJobStatus(ctx context.Context, id uuid.UUID, status string) error {
	j, ok := f.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	j.Status = status
	f.jobStatusUpdates = append(f.jobStatusUpdates, status)
	return nil
}

func (f *fakeStore) CreateApplication(ctx context.Context, app *models.Application) error {
	cp := *app
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.apps[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetApplication(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Application, error) {
	if a, ok := f.apps[id]; ok && a.UserID == userID {
		cp := *a
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) GetApplicationByJob(ctx context.Context, jobID uuid.UUID) (*models.Application, error) {
	for _, a := range f.apps {
		if a.JobID == jobID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListActiveSubmittedApplications(ctx context.Context, userID uuid.UUID) ([]*models.Application, error) {
	if f.appsErr != nil {
		return nil, f.appsErr
	}
	var out []*models.Application
	for _, a := range f.apps {
		if a.UserID == userID && (a.Status == models.ApplicationStatusSubmitted || a.Status == models.ApplicationStatusUnderReview) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateApplication(ctx context.Context, app *models.Application) error {
	if _, ok := f.apps[app.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *app
	f.apps[app.ID] = &cp
	return nil
}

func (f *fakeStore) CreateCommunication(ctx context.Context, comm *models.Communication) error {
	cp := *comm
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.comms[cp.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateCommunication(ctx context.Context, comm *models.Communication) error {
	if _, ok := f.comms[comm.ID]; !ok {
		return store.ErrNotFound
	}
	existing := f.comms[comm.ID]
	created := existing.CreatedAt
	cp := *comm
	cp.CreatedAt = created
	f.comms[comm.ID] = &cp
	return nil
}

func (f *fakeStore) LatestCommunicationForApplication(ctx context.Context, applicationID uuid.UUID) (*models.Communication, error) {
	var latest *models.Communication
	for _, c := range f.comms {
		if c.ApplicationID == nil || *c.ApplicationID != applicationID {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) LatestIncomingEmailForJob(ctx context.Context, jobID uuid.UUID) (*models.Communication, error) {
	var latest *models.Communication
	for _, c := range f.comms {
		if c.JobID == nil || *c.JobID != jobID {
			continue
		}
		if c.Direction != models.DirectionIncoming || c.Type != models.CommTypeEmail {
			continue
		}
		if latest == nil || c.CreatedAt.After(latest.CreatedAt) {
			latest = c
		}
	}
	if latest == nil {
		return nil, store.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) CountFollowUps(ctx context.Context, applicationID uuid.UUID) (int, error) {
	n := 0
	for _, c := range f.comms {
		if c.ApplicationID == nil || *c.ApplicationID != applicationID {
			continue
		}
		if c.Direction != models.DirectionOutgoing || c.FollowUpNumber == 0 {
			continue
		}
		if c.Status == models.CommStatusDraft || c.Status == models.CommStatusFailed {
			continue
		}
		n++
	}
	return n, nil
}

func (f *fakeStore) CommunicationExistsByProviderMsgID(ctx context.Context, userID uuid.UUID, msgID string) (bool, error) {
	for _, c := range f.comms {
		if c.UserID == userID && c.Meta.ProviderMsgID == msgID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateInterview(ctx context.Context, iv *models.Interview) error {
	cp := *iv
	f.interviews[cp.ID] = &cp
	return nil
}

func (f *fakeStore) UpdateInterview(ctx context.Context, iv *models.Interview) error {
	if _, ok := f.interviews[iv.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *iv
	f.interviews[iv.ID] = &cp
	return nil
}

func (f *fakeStore) ListInterviewsByJob(ctx context.Context, jobID uuid.UUID) ([]*models.Interview, error) {
	var out []*models.Interview
	for _, iv := range f.interviews {
		if iv.JobID == jobID {
			cp := *iv
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveCriteria(ctx context.Context, userID uuid.UUID) ([]*models.JobCriteria, error) {
	if f.criteriaErr != nil {
		return nil, f.criteriaErr
	}
	var out []*models.JobCriteria
	for _, c := range f.criteria {
		if c.UserID == userID && c.IsActive {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStore) GetDefaultResume(ctx context.Context, userID uuid.UUID) (*models.Resume, error) {
	if f.resume == nil || f.resume.UserID != userID {
		return nil, store.ErrNotFound
	}
	return f.resume, nil
}

func (f *fakeStore) CreateInstruction(ctx context.Context, instr *models.AgentInstruction) error {
	f.instrs[instr.AgentType] = instr
	return nil
}

func (f *fakeStore) GetActiveInstruction(ctx context.Context, userID uuid.UUID, agentType string) (*models.AgentInstruction, error) {
	instr, ok := f.instrs[agentType]
	if !ok || !instr.IsActive || instr.UserID != userID {
		return nil, store.ErrNotFound
	}
	cp := *instr
	return &cp, nil
}

func (f *fakeStore) ListInstructions(ctx context.Context, userID uuid.UUID) ([]*models.AgentInstruction, error) {
	var out []*models.AgentInstruction
	for _, i := range f.instrs {
		if i.UserID == userID {
			out = append(out, i)
		}
	}
	return out, nil
}

func (f *fakeStore) SetInstructionActive(ctx context.Context, id uuid.UUID, userID uuid.UUID, active bool) (bool, error) {
	for _, i := range f.instrs {
		if i.ID == id && i.UserID == userID {
			if i.IsActive == active {
				return false, nil
			}
			i.IsActive = active
			return true, nil
		}
	}
	return false, store.ErrNotFound
}

func (f *fakeStore) CreateChange(ctx context.Context, change *models.ProposedInstructionChange) error {
	cp := *change
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	f.changes[cp.ID] = &cp
	return nil
}

func (f *fakeStore) GetChange(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.ProposedInstructionChange, error) {
	if c, ok := f.changes[id]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeStore) ListChanges(ctx context.Context, filter store.ChangeFilter) ([]*models.ProposedInstructionChange, int, error) {
	var out []*models.ProposedInstructionChange
	for _, c := range f.changes {
		if filter.Status != "" && c.Status != filter.Status {
			continue
		}
		cp := *c
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeStore) ApproveChange(ctx context.Context, id uuid.UUID, userID uuid.UUID, feedback *string) (bool, error) {
	c, ok := f.changes[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if !c.Approve(feedback, time.Now()) {
		return false, nil
	}
	for _, i := range f.instrs {
		if i.ID == c.InstructionID {
			i.Instructions = c.ProposedInstructions
		}
	}
	return true, nil
}

func (f *fakeStore) RejectChange(ctx context.Context, id uuid.UUID, userID uuid.UUID, feedback string) (bool, error) {
	c, ok := f.changes[id]
	if !ok {
		return false, store.ErrNotFound
	}
	return c.Reject(feedback, time.Now()), nil
}

func (f *fakeStore) CountPendingChanges(ctx context.Context, instructionID uuid.UUID) (int, error) {
	n := 0
	for _, c := range f.changes {
		if c.InstructionID == instructionID && c.IsPending() {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) OutcomeMetrics(ctx context.Context, userID uuid.UUID, since time.Time) (*store.OutcomeMetrics, error) {
	m := f.metrics
	return &m, nil
}

var _ store.Store = (*fakeStore)(nil)

// fakeSearch is a scripted search.Client.
type fakeSearch struct {
	searchFn func(ctx context.Context, req search.Request) ([]search.Result, error)
	requests []search.Request
}

func (f *fakeSearch) Search(ctx context.Context, req search.Request) ([]search.Result, error) {
	f.requests = append(f.requests, req)
	return f.searchFn(ctx, req)
}

var _ search.Client = (*fakeSearch)(nil)

// fakeMail is a scripted mail.Client that records processed IDs and sends.
type fakeMail struct {
	messages  []mail.Message
	listErr   error
	sendErr   error
	processed []string
	sent      []mail.Outgoing
}

func (f *fakeMail) ListUnprocessed(ctx context.Context, since time.Time, limit int) ([]mail.Message, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.messages, nil
}

func (f *fakeMail) MarkProcessed(ctx context.Context, messageID string) error {
	f.processed = append(f.processed, messageID)
	return nil
}

func (f *fakeMail) Send(ctx context.Context, msg mail.Outgoing) (string, error) {
	if f.sendErr != nil {
		return "", f.sendErr
	}
	f.sent = append(f.sent, msg)
	return "sent-1", nil
}

func (f *fakeMail) OwnAddress(ctx context.Context) (string, error) {
	return "me@example.com", nil
}

var _ mail.Client = (*fakeMail)(nil)

// fakeCache implements cache.Cache in memory.
type fakeCache struct {
	values   map[string][]byte
	statuses map[uuid.UUID][]string
	counters map[string]int64
}

func newFakeCache() *fakeCache {
	return &fakeCache{
		values:   make(map[string][]byte),
		statuses: make(map[uuid.UUID][]string),
		counters: make(map[string]int64),
	}
}

func (f *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	f.values[key] = value
	return nil
}

func (f *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeCache) Delete(ctx context.Context, key string) error {
	delete(f.values, key)
	return nil
}

func (f *fakeCache) Ping(ctx context.Context) error { return nil }

func (f *fakeCache) SetCycleStatus(ctx context.Context, userID uuid.UUID, status string, ttl time.Duration) error {
	f.statuses[userID] = append(f.statuses[userID], status)
	return nil
}

func (f *fakeCache) GetCycleStatus(ctx context.Context, userID uuid.UUID) (string, bool, error) {
	ss := f.statuses[userID]
	if len(ss) == 0 {
		return "", false, nil
	}
	return ss[len(ss)-1], true, nil
}

func (f *fakeCache) IncrCycleCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	f.counters[userID.String()]++
	return f.counters[userID.String()], nil
}

func (f *fakeCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	f.counters[key]++
	return f.counters[key], nil
}

var _ cache.Cache = (*fakeCache)(nil)
