// Package notion wraps the Notion API for reading company databases.
package notion

import (
	"context"
	"errors"
	"fmt"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/olvconsultores/stratevo/internal/resilience"
)

// Client defines the Notion API operations used by the importer.
type Client interface {
	QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

// ClientOption configures the Notion client.
type ClientOption func(*notionClient)

// WithRateLimit overrides the default Notion rate limit (3 req/s).
// A non-positive value disables throttling.
func WithRateLimit(rps float64) ClientOption {
	return func(c *notionClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

// WithRetry replaces the read retry policy.
func WithRetry(cfg resilience.RetryConfig) ClientOption {
	return func(c *notionClient) {
		c.retry = cfg
	}
}

type notionClient struct {
	inner   *notionapi.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// NewClient creates a Notion client for an integration token.
func NewClient(token string, opts ...ClientOption) Client {
	c := &notionClient{
		inner:   notionapi.NewClient(notionapi.Token(token)),
		limiter: rate.NewLimiter(3, 1),
		retry:   resilience.ReadRetry("notion.query"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.retry.Retryable = retryable
	return c
}

// retryable treats Notion 5xx and conflict responses as transient.
// notionapi already backs off on 429 internally.
func retryable(err error) bool {
	var apiErr *notionapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status == 409 || apiErr.Status >= 500
	}
	return resilience.IsTransient(err)
}

func (c *notionClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// QueryDatabase is a read and is retried once on transient failures.
func (c *notionClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	resp, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*notionapi.DatabaseQueryResponse, error) {
		if err := c.wait(ctx); err != nil {
			return nil, eris.Wrap(err, "notion: rate limit")
		}
		return c.inner.Database.Query(ctx, notionapi.DatabaseID(dbID), req)
	})
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("notion: query database %s", dbID))
	}
	return resp, nil
}

func (c *notionClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	if err := c.wait(ctx); err != nil {
		return nil, eris.Wrap(err, "notion: rate limit")
	}
	page, err := c.inner.Page.Update(ctx, notionapi.PageID(pageID), req)
	if err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("notion: update page %s", pageID))
	}
	return page, nil
}
