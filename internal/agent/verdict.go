package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// Verdict is the structured answer of the provider for one search hit.
type Verdict struct {
	MatchesCriteria bool          `json:"matches_criteria"`
	Reason          string        `json:"reason"`
	ExtractedInfo   ExtractedInfo `json:"extracted_info"`
	ConfidenceScore float64       `json:"confidence_score"`
}

// ExtractedInfo carries the job fields the provider pulled out of the hit.
type ExtractedInfo struct {
	Title           string   `json:"title"`
	Company         string   `json:"company"`
	Location        string   `json:"location"`
	SalaryMin       *float64 `json:"salary_min"`
	SalaryMax       *float64 `json:"salary_max"`
	JobType         string   `json:"job_type"`
	RequiredSkills  []string `json:"required_skills"`
	PreferredSkills []string `json:"preferred_skills"`
	Description     string   `json:"description"`
}

// stripFences removes a surrounding markdown code fence, which some providers
// wrap JSON replies in despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}

// parseVerdict decodes a provider reply into a Verdict. Returns ErrBadVerdict
// when the reply is not the expected JSON.
func parseVerdict(raw string) (*Verdict, error) {
	var v Verdict
	if err := json.Unmarshal([]byte(stripFences(raw)), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadVerdict, err)
	}
	return &v, nil
}

// parseClassification decodes a provider reply into an EmailClassification.
func parseClassification(raw string) (*models.EmailClassification, error) {
	var c models.EmailClassification
	if err := json.Unmarshal([]byte(stripFences(raw)), &c); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadVerdict, err)
	}
	if c.UrgencyLevel < 1 {
		c.UrgencyLevel = 1
	}
	if c.UrgencyLevel > 5 {
		c.UrgencyLevel = 5
	}
	return &c, nil
}

// instructionProposal is the provider's answer when asked to improve an
// agent's instructions.
type instructionProposal struct {
	ProposedInstructions string `json:"proposed_instructions"`
	Reason               string `json:"reason"`
}

func parseProposal(raw string) (*instructionProposal, error) {
	var p instructionProposal
	if err := json.Unmarshal([]byte(stripFences(raw)), &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadVerdict, err)
	}
	if p.ProposedInstructions == "" {
		return nil, fmt.Errorf("%w: empty proposed instructions", ErrBadVerdict)
	}
	return &p, nil
}
