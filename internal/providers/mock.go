package providers

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing. Responses are returned in order;
// the last one repeats once the list is exhausted.
type MockClient struct {
	// Configurable behavior
	Latency   time.Duration
	Err       error
	Responses []string
	NoChoices bool // answer with zero choices
	FailAfter int  // fail after N requests (0 = never)

	requestCount atomic.Int64

	mu       sync.Mutex
	requests []*ChatRequest
}

// NewMockClient creates a mock that answers with the given contents.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{Responses: responses}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat records the request and returns the next canned response.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	count := c.requestCount.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.Err != nil {
		return nil, c.Err
	}
	if c.FailAfter > 0 && int(count) > c.FailAfter {
		return nil, fmt.Errorf("mock client failed after %d requests", c.FailAfter)
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	result := &ChatResult{
		Provider:  MockClientName,
		ModelUsed: req.Model,
		RequestID: fmt.Sprintf("mock-%d", count),
	}
	if c.NoChoices {
		return result, nil
	}

	result.Choices = 1
	if n := len(c.Responses); n > 0 {
		i := int(count) - 1
		if i >= n {
			i = n - 1
		}
		result.Content = c.Responses[i]
	}
	result.CompletionTokens = len(result.Content) / 4
	return result, nil
}

// HealthCheck reports the configured error, if any.
func (c *MockClient) HealthCheck(_ context.Context) error {
	return c.Err
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int64 {
	return c.requestCount.Load()
}

// Requests returns the requests received so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*ChatRequest(nil), c.requests...)
}

var (
	_ LLMClient     = (*MockClient)(nil)
	_ HealthChecker = (*MockClient)(nil)
)
