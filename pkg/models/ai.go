package models

import (
	"context"
	"errors"
)

// Sentinel errors every TextGenerator implementation maps its transport and
// decode failures onto, so callers can branch with errors.Is without knowing
// which vendor is configured.
var (
	ErrProviderUnavailable = errors.New("ai provider unavailable")
	ErrInferenceTimeout    = errors.New("ai inference timeout")
	ErrInvalidResponse     = errors.New("ai provider returned invalid response")
)

// TextGenerator is the core interface every text-generation integration must
// implement. Never call a specific provider directly — always inject this
// interface.
type TextGenerator interface {
	// Generate produces a completion for the prompt. Implementations must
	// honor ctx cancellation and return a provider sentinel error on
	// transport or auth failure.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)
	// Name returns the provider identifier (e.g., "anthropic", "openai").
	Name() string
}

// GenerateOptions tunes a single generation call. Zero values fall back to
// provider defaults.
type GenerateOptions struct {
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}
