package models

import "time"

// Metadata is stored as versioned typed structures rather than free-form
// maps, so writer and reader cannot drift apart silently. Bump the version
// when a shape changes and keep decoding the old one.

const (
	ApplicationMetaVersion   = 1
	CommunicationMetaVersion = 1
)

// ApplicationMeta records how an application draft came to be.
type ApplicationMeta struct {
	Version             int       `json:"version"`
	SubmissionChannel   string    `json:"submission_channel,omitempty"`
	GeneratedAt         time.Time `json:"generated_at"`
	InstructionSnapshot string    `json:"instruction_snapshot,omitempty"`
	Provider            string    `json:"provider,omitempty"`
}

// Email classification types produced by the inbox scan.
const (
	EmailTypeInterviewInvitation = "interview_invitation"
	EmailTypeApplicationReceived = "application_received"
	EmailTypeRejection           = "rejection"
	EmailTypeFollowUpNeeded      = "follow_up_needed"
	EmailTypeOther               = "other"
)

// EmailClassification is the structured verdict of the text-generation
// provider for one inbox message.
type EmailClassification struct {
	IsJobRelated      bool   `json:"is_job_related"`
	EmailType         string `json:"email_type"`
	CompanyName       string `json:"company_name"`
	PositionTitle     string `json:"position_title"`
	NextSteps         string `json:"next_steps"`
	UrgencyLevel      int    `json:"urgency_level"`
	SuggestedResponse string `json:"suggested_response"`
	ProposedTime      string `json:"proposed_time"` // RFC3339 when the sender named one
}

// CommunicationMeta carries per-message context: the raw envelope for
// incoming mail, and the classification verdict when one exists.
type CommunicationMeta struct {
	Version        int                  `json:"version"`
	Sender         string               `json:"sender,omitempty"`
	Recipient      string               `json:"recipient,omitempty"`
	Subject        string               `json:"subject,omitempty"`
	ProviderMsgID  string               `json:"provider_msg_id,omitempty"`
	Classification *EmailClassification `json:"classification,omitempty"`
}
