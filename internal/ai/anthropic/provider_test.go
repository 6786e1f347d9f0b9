package anthropic_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kiranshivaraju/jobpilot/internal/ai/anthropic"
	"github.com/kiranshivaraju/jobpilot/internal/config"
	"github.com/kiranshivaraju/jobpilot/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProvider(baseURL string, timeout time.Duration) *anthropic.Provider {
	return anthropic.NewProvider(config.AnthropicConfig{
		BaseURL: baseURL,
		APIKey:  "sk-ant-test",
		Model:   "claude-sonnet-4-5-20250929",
	}, timeout)
}

func TestGenerate(t *testing.T) {
	var gotReq map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant-test", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		json.NewEncoder(w).Encode(map[string]any{
			"content": []map[string]any{{"type": "text", "text": "hello from claude"}},
			"model":   "claude-sonnet-4-5-20250929",
		})
	}))
	defer srv.Close()

	p := newProvider(srv.URL, 5*time.Second)
	out, err := p.Generate(context.Background(), "say hello", models.GenerateOptions{
		SystemPrompt: "be brief",
		MaxTokens:    256,
	})
	require.NoError(t, err)
	assert.Equal(t, "hello from claude", out)

	assert.Equal(t, "claude-sonnet-4-5-20250929", gotReq["model"])
	assert.Equal(t, "be brief", gotReq["system"])
	assert.Equal(t, float64(256), gotReq["max_tokens"])
	msgs := gotReq["messages"].([]any)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "say hello", msgs[0].(map[string]any)["content"])
}

func TestGenerate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := newProvider(srv.URL, 5*time.Second)
	_, err := p.Generate(context.Background(), "prompt", models.GenerateOptions{})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}

func TestGenerate_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"content": []map[string]any{}})
	}))
	defer srv.Close()

	p := newProvider(srv.URL, 5*time.Second)
	_, err := p.Generate(context.Background(), "prompt", models.GenerateOptions{})
	assert.ErrorIs(t, err, models.ErrInvalidResponse)
}

func TestGenerate_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	p := newProvider(srv.URL, 50*time.Millisecond)
	_, err := p.Generate(context.Background(), "prompt", models.GenerateOptions{})
	assert.ErrorIs(t, err, models.ErrInferenceTimeout)
}

func TestGenerate_Unreachable(t *testing.T) {
	p := newProvider("http://127.0.0.1:1", 1*time.Second)
	_, err := p.Generate(context.Background(), "prompt", models.GenerateOptions{})
	assert.ErrorIs(t, err, models.ErrProviderUnavailable)
}
