// Package search wraps the Tavily web search API used by the search agent to
// discover job postings.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Sentinel errors for search client failures.
var (
	ErrSearchUnavailable = errors.New("search service unreachable")
	ErrSearchQueryError  = errors.New("search query error")
	ErrSearchTimeout     = errors.New("search timeout")
)

// Client is the interface for web search.
type Client interface {
	Search(ctx context.Context, req Request) ([]Result, error)
}

// Request defines parameters for one search call.
type Request struct {
	Query          string
	IncludeDomains []string
	MaxResults     int
}

// Result is a single search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

// HTTPClient implements Client using Tavily's HTTP API.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a new Tavily HTTP client.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) Search(ctx context.Context, req Request) ([]Result, error) {
	maxResults := req.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	body := searchRequest{
		APIKey:         c.apiKey,
		Query:          req.Query,
		SearchDepth:    "advanced",
		IncludeDomains: req.IncludeDomains,
		MaxResults:     maxResults,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	u := c.baseURL + "/search"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrSearchQueryError, resp.StatusCode)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding search response: %w", err)
	}

	if searchResp.Results == nil {
		return []Result{}, nil
	}
	return searchResp.Results, nil
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSearchTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrSearchTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrSearchUnavailable, err)
}

// --- Tavily request/response types ---

type searchRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	SearchDepth    string   `json:"search_depth"`
	IncludeDomains []string `json:"include_domains,omitempty"`
	MaxResults     int      `json:"max_results"`
}

type searchResponse struct {
	Results []Result `json:"results"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
