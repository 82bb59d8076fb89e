// Package resend provides a client for the Resend e-mail API.
package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/olvconsultores/stratevo/internal/resilience"
)

// Client sends transactional e-mail.
type Client interface {
	// Send submits one e-mail. idempotencyKey deduplicates resubmissions
	// of the same message on the provider side.
	Send(ctx context.Context, idempotencyKey string, email Email) (*SendResponse, error)
}

// Email is an outbound message.
type Email struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
}

// SendResponse is the parsed response of POST /emails.
type SendResponse struct {
	ID string `json:"id"`
}

// Option configures the Resend client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps requests per second. Zero or negative disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(c *httpClient) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new Resend client. The default rate is the API's
// 2 requests per second.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.resend.com",
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(2), 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts the message once. Failed sends are not retried here; the
// caller owns redelivery so the attempt count stays accurate.
func (c *httpClient) Send(ctx context.Context, idempotencyKey string, email Email) (*SendResponse, error) {
	if len(email.To) == 0 {
		return nil, eris.New("resend: at least one recipient is required")
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "resend: rate limit wait")
		}
	}

	payload, err := json.Marshal(email)
	if err != nil {
		return nil, eris.Wrap(err, "resend: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "resend: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "resend: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "resend: read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, resilience.HTTPError("resend", resp.StatusCode, string(body))
	}

	var out SendResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, eris.Wrap(err, "resend: unmarshal response")
	}
	return &out, nil
}
