package notion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/olvconsultores/stratevo/internal/resilience"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) QueryDatabase(ctx context.Context, dbID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	args := m.Called(ctx, dbID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.DatabaseQueryResponse), args.Error(1)
}

func (m *MockClient) UpdatePage(ctx context.Context, pageID string, req *notionapi.PageUpdateRequest) (*notionapi.Page, error) {
	args := m.Called(ctx, pageID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*notionapi.Page), args.Error(1)
}

func TestMockClientSatisfiesInterface(t *testing.T) {
	t.Parallel()
	var _ Client = (*MockClient)(nil)
}

func TestNewClientReturnsClient(t *testing.T) {
	c := NewClient("test-token")
	assert.NotNil(t, c)

	nc, ok := c.(*notionClient)
	assert.True(t, ok)
	assert.NotNil(t, nc.limiter)
}

func TestWithRateLimitDisabled(t *testing.T) {
	c := NewClient("test-token", WithRateLimit(0)).(*notionClient)
	assert.Nil(t, c.limiter)
	assert.NoError(t, c.wait(context.Background()))
}

func TestWithRateLimitCustom(t *testing.T) {
	c := NewClient("test-token", WithRateLimit(10)).(*notionClient)
	assert.NotNil(t, c.limiter)
	assert.Equal(t, 10, c.limiter.Burst())
}

func TestNewClientReadRetry(t *testing.T) {
	c := NewClient("test-token").(*notionClient)
	assert.Equal(t, 2, c.retry.MaxAttempts)
	assert.NotNil(t, c.retry.Retryable)

	c = NewClient("test-token", WithRetry(resilience.RetryConfig{MaxAttempts: 1, InitialBackoff: time.Millisecond})).(*notionClient)
	assert.Equal(t, 1, c.retry.MaxAttempts)
	assert.NotNil(t, c.retry.Retryable)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"server error", &notionapi.Error{Status: 502}, true},
		{"conflict", &notionapi.Error{Status: 409}, true},
		{"validation", &notionapi.Error{Status: 400}, false},
		{"not found", &notionapi.Error{Status: 404}, false},
		{"transient marker", resilience.NewTransientError(errors.New("boom"), 503), true},
		{"plain", errors.New("boom"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
