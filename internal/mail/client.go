// Package mail wraps the mail gateway REST API. The gateway owns the actual
// mailbox; this client only lists unprocessed inbox messages, marks them
// processed, and sends outgoing mail.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Sentinel errors for mail gateway failures.
var (
	ErrMailUnavailable  = errors.New("mail gateway unreachable")
	ErrMailRequestError = errors.New("mail gateway request error")
	ErrMailTimeout      = errors.New("mail gateway timeout")
)

// Client is the interface for the mail gateway.
type Client interface {
	// ListUnprocessed returns inbox messages received since the given time
	// that have not yet been marked processed.
	ListUnprocessed(ctx context.Context, since time.Time, limit int) ([]Message, error)
	// MarkProcessed flags a message so it is not returned by later scans.
	MarkProcessed(ctx context.Context, messageID string) error
	// Send delivers an outgoing message and returns the gateway message ID.
	Send(ctx context.Context, msg Outgoing) (string, error)
	// OwnAddress returns the mailbox address the gateway sends from.
	OwnAddress(ctx context.Context) (string, error)
}

// Message is one inbox message as returned by the gateway.
type Message struct {
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Subject    string    `json:"subject"`
	Body       string    `json:"body"`
	ReceivedAt time.Time `json:"received_at"`
}

// Outgoing is a message to send through the gateway.
type Outgoing struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// HTTPClient implements Client against the gateway's REST API.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPClient creates a new mail gateway client.
func NewHTTPClient(baseURL, token string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *HTTPClient) ListUnprocessed(ctx context.Context, since time.Time, limit int) ([]Message, error) {
	params := url.Values{
		"since":     {since.UTC().Format(time.RFC3339)},
		"processed": {"false"},
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	u := fmt.Sprintf("%s/api/v1/messages?%s", c.baseURL, params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrMailRequestError, resp.StatusCode)
	}

	var listResp messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&listResp); err != nil {
		return nil, fmt.Errorf("decoding messages response: %w", err)
	}

	if listResp.Messages == nil {
		return []Message{}, nil
	}
	return listResp.Messages, nil
}

func (c *HTTPClient) MarkProcessed(ctx context.Context, messageID string) error {
	u := fmt.Sprintf("%s/api/v1/messages/%s/processed", c.baseURL, url.PathEscape(messageID))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: status %d", ErrMailRequestError, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) Send(ctx context.Context, msg Outgoing) (string, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encoding request: %w", err)
	}

	u := c.baseURL + "/api/v1/messages/send"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("%w: status %d", ErrMailRequestError, resp.StatusCode)
	}

	var sendResp sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sendResp); err != nil {
		return "", fmt.Errorf("decoding send response: %w", err)
	}
	return sendResp.ID, nil
}

func (c *HTTPClient) OwnAddress(ctx context.Context) (string, error) {
	u := c.baseURL + "/api/v1/mailbox"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	c.setHeaders(httpReq)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrMailRequestError, resp.StatusCode)
	}

	var mbResp mailboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&mbResp); err != nil {
		return "", fmt.Errorf("decoding mailbox response: %w", err)
	}
	return mbResp.Address, nil
}

func (c *HTTPClient) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrMailTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrMailTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
}

// --- Gateway response types ---

type messagesResponse struct {
	Messages []Message `json:"messages"`
}

type sendResponse struct {
	ID string `json:"id"`
}

type mailboxResponse struct {
	Address string `json:"address"`
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
