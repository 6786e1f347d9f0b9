package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobpilot/internal/store"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// outcomeWindow is how far back outcome metrics reach when the controller
// asks for instruction improvements.
const outcomeWindow = 30 * 24 * time.Hour

// GovernanceService manages the proposal/approval workflow around agent
// instructions. Live instruction text changes only through an approved
// proposal; the agent-authored improvement path below creates pending
// proposals and nothing else.
type GovernanceService struct {
	store    store.Store
	provider models.TextGenerator
	timeout  time.Duration
}

// NewGovernanceService creates a GovernanceService.
func NewGovernanceService(st store.Store, provider models.TextGenerator, timeout time.Duration) *GovernanceService {
	return &GovernanceService{store: st, provider: provider, timeout: timeout}
}

// ProposeChange records a pending change against the user's active
// instruction for the agent type, snapshotting the live text.
func (s *GovernanceService) ProposeChange(ctx context.Context, userID uuid.UUID, agentType, proposed, reason string) (*models.ProposedInstructionChange, error) {
	if !models.ValidAgentType(agentType) {
		return nil, fmt.Errorf("unknown agent type %q", agentType)
	}
	if strings.TrimSpace(proposed) == "" {
		return nil, errors.New("proposed instructions must not be empty")
	}

	instr, err := s.store.GetActiveInstruction(ctx, userID, agentType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("no active instruction for agent type %q", agentType)
		}
		return nil, fmt.Errorf("loading instruction: %w", err)
	}

	change := &models.ProposedInstructionChange{
		ID:                   uuid.New(),
		InstructionID:        instr.ID,
		CurrentInstructions:  instr.Instructions,
		ProposedInstructions: proposed,
		Reason:               reason,
		Status:               models.ChangeStatusPending,
	}
	if err := s.store.CreateChange(ctx, change); err != nil {
		return nil, fmt.Errorf("saving change: %w", err)
	}
	return change, nil
}

// Approve applies a pending change: the change flips to approved and the
// referenced instruction takes the proposed text, atomically. Returns false
// without error when the change is not pending.
func (s *GovernanceService) Approve(ctx context.Context, id, userID uuid.UUID, feedback *string) (bool, error) {
	return s.store.ApproveChange(ctx, id, userID, feedback)
}

// Reject marks a pending change rejected. Feedback is required; an empty
// feedback or a non-pending change returns false without error and leaves
// everything untouched.
func (s *GovernanceService) Reject(ctx context.Context, id, userID uuid.UUID, feedback string) (bool, error) {
	return s.store.RejectChange(ctx, id, userID, feedback)
}

// ProposeImprovements asks the provider, per agent type, whether the active
// instructions should change given recent outcomes, and records pending
// proposals for human review. Agent types with a pending proposal already in
// flight are skipped. Returns the number of proposals created.
func (s *GovernanceService) ProposeImprovements(ctx context.Context, userID uuid.UUID) (int, error) {
	metrics, err := s.store.OutcomeMetrics(ctx, userID, time.Now().Add(-outcomeWindow))
	if err != nil {
		return 0, fmt.Errorf("loading outcome metrics: %w", err)
	}

	created := 0
	for _, agentType := range models.AgentTypes {
		instr, err := s.store.GetActiveInstruction(ctx, userID, agentType)
		if err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				slog.Error("loading instruction failed", "user_id", userID, "agent_type", agentType, "error", err)
			}
			continue
		}

		pending, err := s.store.CountPendingChanges(ctx, instr.ID)
		if err != nil {
			slog.Error("counting pending changes failed", "instruction_id", instr.ID, "error", err)
			continue
		}
		if pending > 0 {
			continue
		}

		proposal, err := s.generateProposal(ctx, agentType, instr.Instructions, metrics)
		if err != nil {
			slog.Warn("improvement proposal dropped", "user_id", userID, "agent_type", agentType, "error", err)
			continue
		}
		if strings.TrimSpace(proposal.ProposedInstructions) == strings.TrimSpace(instr.Instructions) {
			continue
		}

		change := &models.ProposedInstructionChange{
			ID:                   uuid.New(),
			InstructionID:        instr.ID,
			CurrentInstructions:  instr.Instructions,
			ProposedInstructions: proposal.ProposedInstructions,
			Reason:               proposal.Reason,
			Status:               models.ChangeStatusPending,
		}
		if err := s.store.CreateChange(ctx, change); err != nil {
			slog.Error("saving proposal failed", "user_id", userID, "agent_type", agentType, "error", err)
			continue
		}
		created++
	}
	return created, nil
}

func (s *GovernanceService) generateProposal(ctx context.Context, agentType, current string, metrics *store.OutcomeMetrics) (*instructionProposal, error) {
	prompt := buildImprovementPrompt(agentType, current, metrics, outcomeWindow)

	genCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.provider.Generate(genCtx, prompt, models.GenerateOptions{Temperature: 0.3})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return parseProposal(raw)
}
