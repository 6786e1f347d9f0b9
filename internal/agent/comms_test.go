package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/ai/mock"
	"github.com/kiranshivaraju/jobpilot/internal/mail"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

const invitationVerdict = `{
	"is_job_related": true,
	"email_type": "interview_invitation",
	"company_name": "Acme",
	"position_title": "Backend Engineer",
	"next_steps": "Pick a slot",
	"urgency_level": 4,
	"suggested_response": "Confirm availability",
	"proposed_time": "2025-06-10T14:00:00Z"
}`

const rejectionVerdict = `{
	"is_job_related": true,
	"email_type": "rejection",
	"company_name": "Acme",
	"position_title": "Backend Engineer",
	"next_steps": "",
	"urgency_level": 1,
	"suggested_response": "",
	"proposed_time": ""
}`

const unrelatedVerdict = `{"is_job_related": false, "email_type": "other", "company_name": "", "position_title": "", "next_steps": "", "urgency_level": 1, "suggested_response": "", "proposed_time": ""}`

func commsFixture(t *testing.T) (*fakeStore, uuid.UUID, *models.Job, *models.Application) {
	t.Helper()
	st := newFakeStore()
	userID := uuid.New()
	st.addInstruction(userID, models.AgentCommunication, "Stay brief and polite.")

	job := &models.Job{
		ID: uuid.New(), UserID: userID,
		Title: "Backend Engineer", Company: "Acme",
		JobLink: "https://careers.acme.example/1",
		Status:  models.JobStatusApplied,
	}
	st.jobs[job.ID] = job

	submitted := time.Now().Add(-6 * 24 * time.Hour)
	app := &models.Application{
		ID: uuid.New(), UserID: userID, JobID: job.ID,
		Status: models.ApplicationStatusSubmitted, SubmittedAt: &submitted,
	}
	st.apps[app.ID] = app
	return st, userID, job, app
}

// addIncomingEmail seeds an incoming email on the job so follow-ups have a
// recipient.
func addIncomingEmail(st *fakeStore, userID uuid.UUID, jobID uuid.UUID, sender string, at time.Time) {
	id := uuid.New()
	st.comms[id] = &models.Communication{
		ID: id, UserID: userID, JobID: &jobID,
		Type: models.CommTypeEmail, Direction: models.DirectionIncoming,
		Status: models.CommStatusRead, CreatedAt: at,
		Meta: models.CommunicationMeta{Version: 1, Sender: sender},
	}
}

func TestCheckInbox_InterviewInvitation(t *testing.T) {
	st, userID, job, app := commsFixture(t)
	mc := &fakeMail{messages: []mail.Message{{
		ID: "msg-1", From: "recruiter@acme.example", To: "me@example.com",
		Subject: "Interview invitation", Body: "We would like to meet you",
	}}}

	svc := NewCommsService(st, mc, mock.NewScriptedProvider(invitationVerdict), time.Second, 48*time.Hour, 50)
	processed, invitations, err := svc.CheckInbox(context.Background(), userID)
	if err != nil {
		t.Fatalf("CheckInbox() error = %v", err)
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}
	if len(invitations) != 1 {
		t.Fatalf("got %d invitations, want 1", len(invitations))
	}
	if invitations[0].Job.ID != job.ID {
		t.Error("invitation not linked to the matching job")
	}
	if len(mc.processed) != 1 || mc.processed[0] != "msg-1" {
		t.Errorf("gateway processed = %v", mc.processed)
	}

	// The incoming communication is recorded, linked, classified and read.
	var comm *models.Communication
	for _, c := range st.comms {
		comm = c
	}
	if comm == nil {
		t.Fatal("no communication recorded")
	}
	if comm.Direction != models.DirectionIncoming || comm.Status != models.CommStatusRead {
		t.Errorf("direction=%q status=%q", comm.Direction, comm.Status)
	}
	if comm.JobID == nil || *comm.JobID != job.ID {
		t.Error("communication not linked to job")
	}
	if comm.ApplicationID == nil || *comm.ApplicationID != app.ID {
		t.Error("communication not linked to application")
	}
	if comm.Meta.Classification == nil || comm.Meta.Classification.EmailType != models.EmailTypeInterviewInvitation {
		t.Error("classification not stored on the communication")
	}
	if comm.Meta.ProviderMsgID != "msg-1" {
		t.Errorf("provider_msg_id = %q", comm.Meta.ProviderMsgID)
	}
}

func TestCheckInbox_RejectionAdvancesJobAndApplication(t *testing.T) {
	st, userID, job, app := commsFixture(t)
	mc := &fakeMail{messages: []mail.Message{{ID: "msg-2", From: "hr@acme.example", Subject: "Update", Body: "Unfortunately..."}}}

	svc := NewCommsService(st, mc, mock.NewScriptedProvider(rejectionVerdict), time.Second, 48*time.Hour, 50)
	_, invitations, err := svc.CheckInbox(context.Background(), userID)
	if err != nil {
		t.Fatalf("CheckInbox() error = %v", err)
	}
	if len(invitations) != 0 {
		t.Errorf("got %d invitations, want 0", len(invitations))
	}

	gotJob, _ := st.GetJob(context.Background(), job.ID, userID)
	if gotJob.Status != models.JobStatusRejected {
		t.Errorf("job status = %q, want rejected", gotJob.Status)
	}
	gotApp, _ := st.GetApplication(context.Background(), app.ID, userID)
	if gotApp.Status != models.ApplicationStatusRejected {
		t.Errorf("application status = %q, want rejected", gotApp.Status)
	}
}

func TestCheckInbox_UnrelatedMailProcessedWithoutRecord(t *testing.T) {
	st, userID, _, _ := commsFixture(t)
	mc := &fakeMail{messages: []mail.Message{{ID: "msg-3", From: "news@letter.example", Subject: "Weekly digest"}}}

	svc := NewCommsService(st, mc, mock.NewScriptedProvider(unrelatedVerdict), time.Second, 48*time.Hour, 50)
	processed, _, err := svc.CheckInbox(context.Background(), userID)
	if err != nil {
		t.Fatalf("CheckInbox() error = %v", err)
	}
	if processed != 1 {
		t.Errorf("processed = %d, want 1", processed)
	}
	if len(st.comms) != 0 {
		t.Error("communication recorded for unrelated mail")
	}
	if len(mc.processed) != 1 {
		t.Error("unrelated mail not marked processed")
	}
}

func TestCheckInbox_ClassificationFailureLeavesMessageUnprocessed(t *testing.T) {
	st, userID, _, _ := commsFixture(t)
	mc := &fakeMail{messages: []mail.Message{{ID: "msg-4", From: "x@example.com"}}}

	svc := NewCommsService(st, mc, mock.NewScriptedProvider("garbage"), time.Second, 48*time.Hour, 50)
	processed, _, err := svc.CheckInbox(context.Background(), userID)
	if err != nil {
		t.Fatalf("CheckInbox() error = %v", err)
	}
	if processed != 0 {
		t.Errorf("processed = %d, want 0", processed)
	}
	if len(mc.processed) != 0 {
		t.Error("message marked processed despite classification failure")
	}
	if len(st.comms) != 0 {
		t.Error("communication recorded despite classification failure")
	}
}

func TestCheckInbox_DuplicateMessageSkipped(t *testing.T) {
	st, userID, job, _ := commsFixture(t)
	id := uuid.New()
	st.comms[id] = &models.Communication{
		ID: id, UserID: userID, JobID: &job.ID,
		Type: models.CommTypeEmail, Direction: models.DirectionIncoming,
		Status: models.CommStatusRead,
		Meta:   models.CommunicationMeta{Version: 1, ProviderMsgID: "msg-5"},
	}
	mc := &fakeMail{messages: []mail.Message{{ID: "msg-5", From: "x@example.com"}}}
	provider := mock.NewScriptedProvider(invitationVerdict)

	svc := NewCommsService(st, mc, provider, time.Second, 48*time.Hour, 50)
	_, _, err := svc.CheckInbox(context.Background(), userID)
	if err != nil {
		t.Fatalf("CheckInbox() error = %v", err)
	}
	if len(provider.Prompts) != 0 {
		t.Error("already recorded message was reclassified")
	}
	if len(mc.processed) != 1 {
		t.Error("duplicate not marked processed at the gateway")
	}
}

func TestCheckInbox_MailGatewayFailure(t *testing.T) {
	st, userID, _, _ := commsFixture(t)
	mc := &fakeMail{listErr: mail.ErrMailUnavailable}

	svc := NewCommsService(st, mc, mock.NewMockProvider(), time.Second, 48*time.Hour, 50)
	_, _, err := svc.CheckInbox(context.Background(), userID)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("CheckInbox() error = %v, want ErrProvider", err)
	}
}

func TestSendFollowUp_FirstAfterSixDays(t *testing.T) {
	st, userID, job, app := commsFixture(t)
	addIncomingEmail(st, userID, job.ID, "recruiter@acme.example", time.Now().Add(-10*24*time.Hour))
	mc := &fakeMail{}

	svc := NewCommsService(st, mc, mock.NewScriptedProvider("Just checking in."), time.Second, 48*time.Hour, 50)
	comm, err := svc.SendFollowUp(context.Background(), userID, app)
	if err != nil {
		t.Fatalf("SendFollowUp() error = %v", err)
	}
	if comm.Status != models.CommStatusSent {
		t.Errorf("status = %q, want sent", comm.Status)
	}
	if comm.FollowUpNumber != 1 {
		t.Errorf("follow_up_number = %d, want 1", comm.FollowUpNumber)
	}
	if comm.SentAt == nil {
		t.Error("sent_at not stamped")
	}
	if comm.Meta.Recipient != "recruiter@acme.example" {
		t.Errorf("recipient = %q", comm.Meta.Recipient)
	}
	if len(mc.sent) != 1 || mc.sent[0].To != "recruiter@acme.example" {
		t.Errorf("gateway sends = %v", mc.sent)
	}
}

func TestSendFollowUp_TooEarlyForFirst(t *testing.T) {
	st, userID, job, app := commsFixture(t)
	submitted := time.Now().Add(-4 * 24 * time.Hour)
	app.SubmittedAt = &submitted
	addIncomingEmail(st, userID, job.ID, "recruiter@acme.example", time.Now().Add(-1*24*time.Hour))

	svc := NewCommsService(st, &fakeMail{}, mock.NewMockProvider(), time.Second, 48*time.Hour, 50)
	_, err := svc.SendFollowUp(context.Background(), userID, app)
	if !errors.Is(err, ErrCadence) {
		t.Fatalf("SendFollowUp() error = %v, want ErrCadence", err)
	}
	if len(st.comms) != 1 { // only the seeded incoming email
		t.Error("a communication was created despite cadence refusal")
	}
}

func TestSendFollowUp_RecentIncomingBlocksFirst(t *testing.T) {
	// Submitted six days ago, but the company replied yesterday. With zero
	// follow-ups sent the five-day rule must not apply: the reply resets the
	// clock and the seven-day spacing rule holds the send back.
	st, userID, job, app := commsFixture(t)
	id := uuid.New()
	st.comms[id] = &models.Communication{
		ID: id, UserID: userID, JobID: &job.ID, ApplicationID: &app.ID,
		Type: models.CommTypeEmail, Direction: models.DirectionIncoming,
		Status: models.CommStatusRead, CreatedAt: time.Now().Add(-1 * 24 * time.Hour),
		Meta: models.CommunicationMeta{Version: 1, Sender: "recruiter@acme.example"},
	}
	mc := &fakeMail{}

	svc := NewCommsService(st, mc, mock.NewMockProvider(), time.Second, 48*time.Hour, 50)
	_, err := svc.SendFollowUp(context.Background(), userID, app)
	if !errors.Is(err, ErrCadence) {
		t.Fatalf("SendFollowUp() error = %v, want ErrCadence", err)
	}
	if len(mc.sent) != 0 {
		t.Errorf("gateway sends = %d, want 0", len(mc.sent))
	}
}

func TestSendFollowUp_CapOfThree(t *testing.T) {
	st, userID, job, app := commsFixture(t)
	addIncomingEmail(st, userID, job.ID, "recruiter@acme.example", time.Now().Add(-60*24*time.Hour))
	for i := 1; i <= 3; i++ {
		id := uuid.New()
		sentAt := time.Now().Add(-time.Duration(40-i*10) * 24 * time.Hour)
		st.comms[id] = &models.Communication{
			ID: id, UserID: userID, JobID: &job.ID, ApplicationID: &app.ID,
			Type: models.CommTypeEmail, Direction: models.DirectionOutgoing,
			Status: models.CommStatusSent, FollowUpNumber: i,
			SentAt: &sentAt, CreatedAt: sentAt,
		}
	}
	mc := &fakeMail{}

	svc := NewCommsService(st, mc, mock.NewMockProvider(), time.Second, 48*time.Hour, 50)
	_, err := svc.SendFollowUp(context.Background(), userID, app)
	if !errors.Is(err, ErrCadence) {
		t.Fatalf("SendFollowUp() error = %v, want ErrCadence", err)
	}
	if len(mc.sent) != 0 {
		t.Error("a fourth follow-up was sent")
	}
}

func TestSendFollowUp_SpacingBetweenFollowUps(t *testing.T) {
	st, userID, job, app := commsFixture(t)
	addIncomingEmail(st, userID, job.ID, "recruiter@acme.example", time.Now().Add(-20*24*time.Hour))
	id := uuid.New()
	sentAt := time.Now().Add(-3 * 24 * time.Hour)
	st.comms[id] = &models.Communication{
		ID: id, UserID: userID, JobID: &job.ID, ApplicationID: &app.ID,
		Type: models.CommTypeEmail, Direction: models.DirectionOutgoing,
		Status: models.CommStatusSent, FollowUpNumber: 1,
		SentAt: &sentAt, CreatedAt: sentAt,
	}

	svc := NewCommsService(st, &fakeMail{}, mock.NewMockProvider(), time.Second, 48*time.Hour, 50)
	_, err := svc.SendFollowUp(context.Background(), userID, app)
	if !errors.Is(err, ErrCadence) {
		t.Fatalf("SendFollowUp() error = %v, want ErrCadence", err)
	}
}

func TestSendFollowUp_NoRecipient(t *testing.T) {
	st, userID, _, app := commsFixture(t)

	svc := NewCommsService(st, &fakeMail{}, mock.NewMockProvider(), time.Second, 48*time.Hour, 50)
	_, err := svc.SendFollowUp(context.Background(), userID, app)
	if !errors.Is(err, ErrUnknownRecipient) {
		t.Fatalf("SendFollowUp() error = %v, want ErrUnknownRecipient", err)
	}
}

func TestSendFollowUp_SendFailureRecordsFailedCommunication(t *testing.T) {
	st, userID, job, app := commsFixture(t)
	addIncomingEmail(st, userID, job.ID, "recruiter@acme.example", time.Now().Add(-10*24*time.Hour))
	mc := &fakeMail{sendErr: mail.ErrMailUnavailable}

	svc := NewCommsService(st, mc, mock.NewScriptedProvider("body"), time.Second, 48*time.Hour, 50)
	_, err := svc.SendFollowUp(context.Background(), userID, app)
	if !errors.Is(err, ErrProvider) {
		t.Fatalf("SendFollowUp() error = %v, want ErrProvider", err)
	}

	var failed *models.Communication
	for _, c := range st.comms {
		if c.Direction == models.DirectionOutgoing {
			failed = c
		}
	}
	if failed == nil || failed.Status != models.CommStatusFailed {
		t.Fatalf("outgoing communication not recorded as failed: %+v", failed)
	}

	// A failed send does not consume the cap.
	if n, _ := st.CountFollowUps(context.Background(), app.ID); n != 0 {
		t.Errorf("follow-up count = %d, want 0", n)
	}
}

func TestRunFollowUps_SkipsIneligibleQuietly(t *testing.T) {
	st, userID, job, _ := commsFixture(t)
	addIncomingEmail(st, userID, job.ID, "recruiter@acme.example", time.Now().Add(-10*24*time.Hour))

	// A second application, too fresh to follow up on.
	job2 := &models.Job{
		ID: uuid.New(), UserID: userID, Title: "SRE", Company: "Globex",
		JobLink: "https://careers.globex.example/2", Status: models.JobStatusApplied,
	}
	st.jobs[job2.ID] = job2
	fresh := time.Now().Add(-1 * 24 * time.Hour)
	app2 := &models.Application{
		ID: uuid.New(), UserID: userID, JobID: job2.ID,
		Status: models.ApplicationStatusSubmitted, SubmittedAt: &fresh,
	}
	st.apps[app2.ID] = app2

	mc := &fakeMail{}
	svc := NewCommsService(st, mc, mock.NewScriptedProvider("ping"), time.Second, 48*time.Hour, 50)
	sent, err := svc.RunFollowUps(context.Background(), userID)
	if err != nil {
		t.Fatalf("RunFollowUps() error = %v", err)
	}
	if sent != 1 {
		t.Errorf("sent = %d, want 1", sent)
	}
	if len(mc.sent) != 1 {
		t.Errorf("gateway sends = %d, want 1", len(mc.sent))
	}
}
