package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/mail"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// Follow-up cadence policy.
const (
	maxFollowUps        = 3
	firstFollowUpAfter  = 5 * 24 * time.Hour
	followUpSpacing     = 7 * 24 * time.Hour
	defaultFollowUpSubj = "Following up on my application"
)

// Invitation is an interview invitation surfaced by an inbox scan, handed to
// the scheduling agent by the controller.
type Invitation struct {
	Job            *models.Job
	Classification *models.EmailClassification
}

// CommsService scans the inbox for job-related mail and manages the outbound
// follow-up cadence per application.
type CommsService struct {
	store       store.Store
	mail        mail.Client
	provider    models.TextGenerator
	timeout     time.Duration
	inboxWindow time.Duration
	inboxMax    int
}

// NewCommsService creates a CommsService. inboxWindow bounds how far back an
// inbox scan looks; inboxMax caps messages per scan.
func NewCommsService(st store.Store, mc mail.Client, provider models.TextGenerator, timeout, inboxWindow time.Duration, inboxMax int) *CommsService {
	return &CommsService{
		store:       st,
		mail:        mc,
		provider:    provider,
		timeout:     timeout,
		inboxWindow: inboxWindow,
		inboxMax:    inboxMax,
	}
}

// CheckInbox lists recent unprocessed messages, classifies each, records
// job-related ones as incoming communications and marks them processed at the
// gateway. Returns the interview invitations found so the controller can
// schedule them. A classification failure skips that message and leaves it
// unprocessed for the next scan; it never aborts the scan.
func (s *CommsService) CheckInbox(ctx context.Context, userID uuid.UUID) (processed int, invitations []Invitation, err error) {
	since := time.Now().Add(-s.inboxWindow)
	msgs, err := s.mail.ListUnprocessed(ctx, since, s.inboxMax)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: inbox: %v", ErrProvider, err)
	}

	instructions := activeInstructions(ctx, s.store, userID, models.AgentCommunication)

	for _, msg := range msgs {
		exists, err := s.store.CommunicationExistsByProviderMsgID(ctx, userID, msg.ID)
		if err != nil {
			slog.Error("message dedup check failed", "user_id", userID, "message_id", msg.ID, "error", err)
			continue
		}
		if exists {
			s.markProcessed(ctx, msg.ID)
			continue
		}

		classification, err := s.classify(ctx, msg, instructions)
		if err != nil {
			// Left unprocessed so the next scan retries it.
			slog.Warn("classification failed", "user_id", userID, "message_id", msg.ID, "error", err)
			continue
		}

		if !classification.IsJobRelated {
			s.markProcessed(ctx, msg.ID)
			processed++
			continue
		}

		inv, err := s.recordIncoming(ctx, userID, msg, classification)
		if err != nil {
			slog.Error("recording communication failed", "user_id", userID, "message_id", msg.ID, "error", err)
			continue
		}
		s.markProcessed(ctx, msg.ID)
		processed++
		if inv != nil {
			invitations = append(invitations, *inv)
		}
	}
	return processed, invitations, nil
}

// classify asks the provider for a structured verdict on one message.
func (s *CommsService) classify(ctx context.Context, msg mail.Message, instructions string) (*models.EmailClassification, error) {
	prompt := buildClassificationPrompt(msg.From, msg.Subject, msg.Body, instructions)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.provider.Generate(genCtx, prompt, models.GenerateOptions{Temperature: 0.1})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return parseClassification(raw)
}

// recordIncoming persists the message as an incoming communication, links it
// to the matching job when one exists, and applies the status side effects of
// the classification. Returns a non-nil Invitation for interview invitations
// that matched a job.
func (s *CommsService) recordIncoming(ctx context.Context, userID uuid.UUID, msg mail.Message, cls *models.EmailClassification) (*Invitation, error) {
	var job *models.Job
	if cls.CompanyName != "" {
		j, err := s.store.FindActiveJobByCompany(ctx, userID, cls.CompanyName)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("matching job: %w", err)
		}
		job = j
	}

	comm := &models.Communication{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      models.CommTypeEmail,
		Direction: models.DirectionIncoming,
		Status:    models.CommStatusDelivered,
		Content:   msg.Body,
		Meta: models.CommunicationMeta{
			Version:        models.CommunicationMetaVersion,
			Sender:         msg.From,
			Recipient:      msg.To,
			Subject:        msg.Subject,
			ProviderMsgID:  msg.ID,
			Classification: cls,
		},
	}

	var app *models.Application
	if job != nil {
		comm.JobID = &job.ID
		a, err := s.store.GetApplicationByJob(ctx, job.ID)
		if err == nil {
			app = a
			comm.ApplicationID = &app.ID
		} else if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("application lookup failed", "job_id", job.ID, "error", err)
		}
	}

	if err := s.store.CreateCommunication(ctx, comm); err != nil {
		return nil, fmt.Errorf("saving communication: %w", err)
	}
	if comm.MarkRead() {
		if err := s.store.UpdateCommunication(ctx, comm); err != nil {
			slog.Warn("marking communication read failed", "communication_id", comm.ID, "error", err)
		}
	}

	if job != nil {
		s.applyClassification(ctx, job, app, cls)
		if cls.EmailType == models.EmailTypeInterviewInvitation {
			return &Invitation{Job: job, Classification: cls}, nil
		}
	}
	return nil, nil
}

// applyClassification advances the job and application per the email type.
// Illegal transitions are skipped silently; the state machines guard them.
func (s *CommsService) applyClassification(ctx context.Context, job *models.Job, app *models.Application, cls *models.EmailClassification) {
	switch cls.EmailType {
	case models.EmailTypeRejection:
		if job.MarkRejected() {
			if err := s.store.UpdateJobStatus(ctx, job.ID, job.Status); err != nil {
				slog.Warn("advancing job failed", "job_id", job.ID, "error", err)
			}
		}
		if app != nil && app.MarkRejected() {
			if err := s.store.UpdateApplication(ctx, app); err != nil {
				slog.Warn("advancing application failed", "application_id", app.ID, "error", err)
			}
		}
	case models.EmailTypeApplicationReceived:
		if app != nil && app.MarkUnderReview() {
			if err := s.store.UpdateApplication(ctx, app); err != nil {
				slog.Warn("advancing application failed", "application_id", app.ID, "error", err)
			}
		}
	}
}

func (s *CommsService) markProcessed(ctx context.Context, messageID string) {
	if err := s.mail.MarkProcessed(ctx, messageID); err != nil {
		slog.Warn("marking message processed failed", "message_id", messageID, "error", err)
	}
}

// SendFollowUp sends one follow-up for a submitted application, subject to
// the cadence policy: with no communication on record, only after five days
// of silence since submission; otherwise only when the latest communication
// is at least seven days old, never more than three follow-ups in total. Ineligibility fails with
// ErrCadence and sends nothing. The recipient is the sender of the latest
// incoming email for the job; without one the send fails with
// ErrUnknownRecipient.
func (s *CommsService) SendFollowUp(ctx context.Context, userID uuid.UUID, app *models.Application) (*models.Communication, error) {
	count, err := s.store.CountFollowUps(ctx, app.ID)
	if err != nil {
		return nil, fmt.Errorf("counting follow-ups: %w", err)
	}
	if count >= maxFollowUps {
		return nil, fmt.Errorf("%w: %d follow-ups already sent", ErrCadence, count)
	}

	// The five-days-since-submission rule only applies when the thread is
	// completely silent. Any prior communication on the application, incoming
	// or outgoing, switches the gate to the seven-day spacing rule.
	now := time.Now()
	last, err := s.store.LatestCommunicationForApplication(ctx, app.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading latest communication: %w", err)
	}
	if last == nil {
		if app.SubmittedAt == nil || now.Sub(*app.SubmittedAt) < firstFollowUpAfter {
			return nil, fmt.Errorf("%w: first follow-up requires %d days since submission", ErrCadence, int(firstFollowUpAfter.Hours()/24))
		}
	} else {
		ref := last.CreatedAt
		if last.SentAt != nil {
			ref = *last.SentAt
		}
		if now.Sub(ref) < followUpSpacing {
			return nil, fmt.Errorf("%w: last communication is less than %d days old", ErrCadence, int(followUpSpacing.Hours()/24))
		}
	}

	incoming, err := s.store.LatestIncomingEmailForJob(ctx, app.JobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownRecipient
		}
		return nil, fmt.Errorf("finding recipient: %w", err)
	}
	recipient := incoming.Meta.Sender
	if recipient == "" {
		return nil, ErrUnknownRecipient
	}

	job, err := s.store.GetJob(ctx, app.JobID, userID)
	if err != nil {
		return nil, fmt.Errorf("loading job: %w", err)
	}

	instructions := activeInstructions(ctx, s.store, userID, models.AgentCommunication)
	prompt := buildFollowUpPrompt(job, app.DaysSinceSubmission(now), count+1, instructions)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	body, err := s.provider.Generate(genCtx, prompt, models.GenerateOptions{Temperature: 0.7})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}

	subject := fmt.Sprintf("%s: %s at %s", defaultFollowUpSubj, job.Title, job.Company)
	comm := &models.Communication{
		ID:             uuid.New(),
		UserID:         userID,
		JobID:          &app.JobID,
		ApplicationID:  &app.ID,
		Type:           models.CommTypeEmail,
		Direction:      models.DirectionOutgoing,
		Status:         models.CommStatusDraft,
		Content:        body,
		FollowUpNumber: count + 1,
		Meta: models.CommunicationMeta{
			Version:   models.CommunicationMetaVersion,
			Recipient: recipient,
			Subject:   subject,
		},
	}
	if err := s.store.CreateCommunication(ctx, comm); err != nil {
		return nil, fmt.Errorf("saving communication: %w", err)
	}

	msgID, err := s.mail.Send(ctx, mail.Outgoing{To: recipient, Subject: subject, Body: body})
	if err != nil {
		comm.MarkFailed()
		if uerr := s.store.UpdateCommunication(ctx, comm); uerr != nil {
			slog.Error("recording failed send failed", "communication_id", comm.ID, "error", uerr)
		}
		return nil, fmt.Errorf("%w: send: %v", ErrProvider, err)
	}

	comm.Send(now)
	comm.Meta.ProviderMsgID = msgID
	if err := s.store.UpdateCommunication(ctx, comm); err != nil {
		return nil, fmt.Errorf("saving communication: %w", err)
	}
	return comm, nil
}

// RunFollowUps attempts a follow-up for every active submitted application.
// Cadence and recipient ineligibility are expected and skipped quietly.
func (s *CommsService) RunFollowUps(ctx context.Context, userID uuid.UUID) (int, error) {
	apps, err := s.store.ListActiveSubmittedApplications(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("listing applications: %w", err)
	}

	sent := 0
	for _, app := range apps {
		if _, err := s.SendFollowUp(ctx, userID, app); err != nil {
			if errors.Is(err, ErrCadence) || errors.Is(err, ErrUnknownRecipient) {
				slog.Debug("follow-up skipped", "application_id", app.ID, "reason", err)
				continue
			}
			slog.Warn("follow-up failed", "application_id", app.ID, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}
