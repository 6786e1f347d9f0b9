package ai

import (
	"fmt"

	"github.com/kiranshivaraju/jobpilot/internal/ai/anthropic"
	"github.com/kiranshivaraju/jobpilot/internal/ai/mock"
	"github.com/kiranshivaraju/jobpilot/internal/ai/openai"
	"github.com/kiranshivaraju/jobpilot/internal/config"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// NewProvider constructs the appropriate text-generation provider based on
// config. Called once at server startup.
func NewProvider(cfg config.AIConfig) (models.TextGenerator, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.NewProvider(cfg.Anthropic, cfg.Timeout), nil
	case "openai":
		return openai.NewProvider(cfg.OpenAI, cfg.Timeout), nil
	case "mock":
		return mock.NewMockProvider(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q: must be one of anthropic, openai, mock", cfg.Provider)
	}
}
