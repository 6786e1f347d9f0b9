package mock

import (
	"context"

	"github.com/kiranshivaraju/jobpilot/pkg/models"
)

// MockProvider satisfies models.TextGenerator for testing.
type MockProvider struct {
	Name_        string
	GenerateFunc func(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error)

	// Prompts records every prompt passed to Generate.
	Prompts []string
}

func (m *MockProvider) Name() string { return m.Name_ }

func (m *MockProvider) Generate(ctx context.Context, prompt string, opts models.GenerateOptions) (string, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, opts)
	}
	return "", nil
}

// NewMockProvider returns a MockProvider with a fixed canned completion.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock",
		GenerateFunc: func(_ context.Context, _ string, _ models.GenerateOptions) (string, error) {
			return "Mock completion for testing", nil
		},
	}
}

// NewScriptedProvider returns a MockProvider that replays the given responses
// in order, repeating the last one once exhausted.
func NewScriptedProvider(responses ...string) *MockProvider {
	i := 0
	return &MockProvider{
		Name_: "mock-scripted",
		GenerateFunc: func(_ context.Context, _ string, _ models.GenerateOptions) (string, error) {
			if len(responses) == 0 {
				return "", nil
			}
			r := responses[min(i, len(responses)-1)]
			i++
			return r, nil
		},
	}
}

// NewFailingProvider returns a MockProvider that always returns the given error.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{
		Name_: "mock-failing",
		GenerateFunc: func(_ context.Context, _ string, _ models.GenerateOptions) (string, error) {
			return "", err
		},
	}
}

// NewTimeoutProvider returns a MockProvider that blocks until context is cancelled.
func NewTimeoutProvider() *MockProvider {
	return &MockProvider{
		Name_: "mock-timeout",
		GenerateFunc: func(ctx context.Context, _ string, _ models.GenerateOptions) (string, error) {
			<-ctx.Done()
			return "", models.ErrInferenceTimeout
		},
	}
}

// Compile-time check that MockProvider implements TextGenerator.
var _ models.TextGenerator = (*MockProvider)(nil)
