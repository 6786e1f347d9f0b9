package models

import (
	"time"

	"github.com/google/uuid"
)

// Agent types governed by instructions. One active AgentInstruction exists
// per (user, agent type).
const (
	AgentSearch        = "search"
	AgentDraft         = "draft"
	AgentCommunication = "communication"
	AgentScheduling    = "scheduling"
	AgentController    = "controller"
)

// AgentTypes lists every governed agent type.
var AgentTypes = []string{AgentSearch, AgentDraft, AgentCommunication, AgentScheduling, AgentController}

// ValidAgentType reports whether t names a governed agent.
func ValidAgentType(t string) bool {
	for _, a := range AgentTypes {
		if a == t {
			return true
		}
	}
	return false
}

// AgentInstruction holds the live operating instructions for one agent type
// and one user. Instruction text changes only through an approved
// ProposedInstructionChange; the activate/deactivate toggles are direct.
type AgentInstruction struct {
	ID            uuid.UUID         `db:"id"            json:"id"`
	UserID        uuid.UUID         `db:"user_id"       json:"user_id"`
	AgentType     string            `db:"agent_type"    json:"agent_type"`
	Instructions  string            `db:"instructions"  json:"instructions"`
	Configuration map[string]string `db:"configuration" json:"configuration"`
	IsActive      bool              `db:"is_active"     json:"is_active"`
	CreatedAt     time.Time         `db:"created_at"    json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at"    json:"updated_at"`
}

// Deactivate turns the instruction off. Returns false if already inactive.
func (ai *AgentInstruction) Deactivate() bool {
	if !ai.IsActive {
		return false
	}
	ai.IsActive = false
	return true
}

// Activate turns the instruction on. Returns false if already active.
func (ai *AgentInstruction) Activate() bool {
	if ai.IsActive {
		return false
	}
	ai.IsActive = true
	return true
}

// ProposedInstructionChange statuses. Approved and rejected are terminal; a
// reviewed change is never reopened.
const (
	ChangeStatusPending  = "pending"
	ChangeStatusApproved = "approved"
	ChangeStatusRejected = "rejected"
)

// ProposedInstructionChange is a pending edit to an AgentInstruction awaiting
// human review. CurrentInstructions snapshots the live text at proposal time.
type ProposedInstructionChange struct {
	ID                   uuid.UUID  `db:"id"                    json:"id"`
	InstructionID        uuid.UUID  `db:"agent_instruction_id"  json:"agent_instruction_id"`
	CurrentInstructions  string     `db:"current_instructions"  json:"current_instructions"`
	ProposedInstructions string     `db:"proposed_instructions" json:"proposed_instructions"`
	Reason               string     `db:"reason"                json:"reason"`
	Status               string     `db:"status"                json:"status"`
	Feedback             *string    `db:"feedback"              json:"feedback,omitempty"`
	ReviewedAt           *time.Time `db:"reviewed_at"           json:"reviewed_at,omitempty"`
	CreatedAt            time.Time  `db:"created_at"            json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"            json:"updated_at"`
}

// Approve marks a pending change approved. The caller is responsible for
// applying the proposed text to the referenced instruction in the same
// transaction; this method only flips the review state.
func (c *ProposedInstructionChange) Approve(feedback *string, now time.Time) bool {
	if c.Status != ChangeStatusPending {
		return false
	}
	c.Status = ChangeStatusApproved
	c.Feedback = feedback
	t := now.UTC()
	c.ReviewedAt = &t
	return true
}

// Reject marks a pending change rejected. Feedback is required.
func (c *ProposedInstructionChange) Reject(feedback string, now time.Time) bool {
	if c.Status != ChangeStatusPending || feedback == "" {
		return false
	}
	c.Status = ChangeStatusRejected
	c.Feedback = &feedback
	t := now.UTC()
	c.ReviewedAt = &t
	return true
}

// IsPending reports whether the change still awaits review.
func (c *ProposedInstructionChange) IsPending() bool { return c.Status == ChangeStatusPending }
