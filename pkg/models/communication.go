package models

import (
	"time"

	"github.com/google/uuid"
)

// Communication types.
const (
	CommTypeEmail    = "email"
	CommTypePhone    = "phone"
	CommTypeVideo    = "video"
	CommTypeInPerson = "in_person"
	CommTypeOther    = "other"
)

// Communication directions.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Communication statuses.
const (
	CommStatusDraft     = "draft"
	CommStatusScheduled = "scheduled"
	CommStatusSent      = "sent"
	CommStatusDelivered = "delivered"
	CommStatusRead      = "read"
	CommStatusFailed    = "failed"
)

// Communication is a single message exchanged about a Job, optionally tied to
// an Application. Outgoing follow-ups carry their ordinal in FollowUpNumber
// (zero for anything that is not a follow-up) so the cadence policy can count
// them with a plain query.
type Communication struct {
	ID             uuid.UUID         `db:"id"               json:"id"`
	UserID         uuid.UUID         `db:"user_id"          json:"user_id"`
	JobID          *uuid.UUID        `db:"job_id"           json:"job_id,omitempty"`
	ApplicationID  *uuid.UUID        `db:"application_id"   json:"application_id,omitempty"`
	Type           string            `db:"type"             json:"type"`
	Direction      string            `db:"direction"        json:"direction"`
	Status         string            `db:"status"           json:"status"`
	Content        string            `db:"content"          json:"content"`
	SentAt         *time.Time        `db:"sent_at"          json:"sent_at,omitempty"`
	FollowUpNumber int               `db:"follow_up_number" json:"follow_up_number"`
	Meta           CommunicationMeta `db:"meta"             json:"meta"`
	CreatedAt      time.Time         `db:"created_at"       json:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at"       json:"updated_at"`
}

// Send moves a draft or scheduled communication to sent and stamps SentAt.
func (c *Communication) Send(now time.Time) bool {
	if c.Status != CommStatusDraft && c.Status != CommStatusScheduled {
		return false
	}
	c.Status = CommStatusSent
	t := now.UTC()
	c.SentAt = &t
	return true
}

// Schedule queues a draft for later sending.
func (c *Communication) Schedule(at time.Time) bool {
	if c.Status != CommStatusDraft {
		return false
	}
	c.Status = CommStatusScheduled
	t := at.UTC()
	c.SentAt = &t
	return true
}

// MarkDelivered records provider delivery confirmation.
func (c *Communication) MarkDelivered() bool {
	if c.Status != CommStatusSent {
		return false
	}
	c.Status = CommStatusDelivered
	return true
}

// MarkRead is legal only for incoming communications that are not yet read.
func (c *Communication) MarkRead() bool {
	if c.Direction != DirectionIncoming || c.Status == CommStatusRead {
		return false
	}
	c.Status = CommStatusRead
	return true
}

// MarkFailed records a send failure.
func (c *Communication) MarkFailed() bool {
	switch c.Status {
	case CommStatusDraft, CommStatusScheduled, CommStatusSent:
		c.Status = CommStatusFailed
		return true
	}
	return false
}

// IsIncoming reports whether the communication was received.
func (c *Communication) IsIncoming() bool { return c.Direction == DirectionIncoming }
