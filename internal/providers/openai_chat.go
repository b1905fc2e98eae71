package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIChatName = "openai"

	// llama.cpp ignores the key but the SDK refuses to send an empty one.
	openAIPlaceholderKey = "sk-no-key-required"
)

// OpenAIChatConfig holds configuration for an OpenAI-compatible chat endpoint.
type OpenAIChatConfig struct {
	BaseURL    string        // e.g. http://127.0.0.1:8081/v1
	APIKey     string        // Optional for local servers
	Model      string        // Default model name
	RateLimit  int           // Requests per minute
	MaxRetries int           // SDK transport retries; zero sends each request once
	Timeout    time.Duration // HTTP timeout
	HTTPClient *http.Client  // Optional (tests)
}

// OpenAIChatClient implements LLMClient using the official OpenAI SDK against
// any server that speaks the chat completions API.
type OpenAIChatClient struct {
	model   string
	limiter *RateLimiter
	client  openai.Client
}

// NewOpenAIChatClient creates a new chat client.
func NewOpenAIChatClient(cfg OpenAIChatConfig) *OpenAIChatClient {
	if cfg.APIKey == "" {
		cfg.APIKey = openAIPlaceholderKey
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAIChatClient{
		model:   cfg.Model,
		limiter: NewRateLimiter(cfg.RateLimit),
		client:  openai.NewClient(opts...),
	}
}

// Name returns the provider identifier.
func (c *OpenAIChatClient) Name() string {
	return OpenAIChatName
}

// Model returns the configured default model.
func (c *OpenAIChatClient) Model() string {
	return c.model
}

// RateLimiter exposes the client's limiter for status reporting.
func (c *OpenAIChatClient) RateLimiter() *RateLimiter {
	return c.limiter
}

// HealthCheck verifies the server is up by listing its models.
func (c *OpenAIChatClient) HealthCheck(ctx context.Context) error {
	page, err := c.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("models list returned nil response")
	}
	return nil
}

// Chat sends one chat completion request and returns the first choice.
// A response without choices is not an error; Content is left empty.
func (c *OpenAIChatClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	if req == nil {
		return nil, fmt.Errorf("request is required")
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("at least one message is required")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	start := time.Now()
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		err = mapOpenAIError(err)
		if rle, ok := IsRateLimitError(err); ok {
			c.limiter.Record429(rle.RetryAfter)
		}
		return nil, err
	}

	result := &ChatResult{
		Choices:          len(resp.Choices),
		PromptTokens:     int(resp.Usage.PromptTokens),
		CompletionTokens: int(resp.Usage.CompletionTokens),
		TotalTokens:      int(resp.Usage.TotalTokens),
		ExecutionTime:    time.Since(start),
		Provider:         OpenAIChatName,
		ModelUsed:        resp.Model,
		RequestID:        resp.ID,
	}
	if len(resp.Choices) > 0 {
		result.Content = resp.Choices[0].Message.Content
		result.FinishReason = resp.Choices[0].FinishReason
	}
	return result, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch strings.ToLower(m.Role) {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			retryAfter := time.Duration(0)
			if apiErr.Response != nil {
				retryAfter = parseRetryAfter(apiErr.Response.Header.Get("Retry-After"))
			}
			return &RateLimitError{
				Message:    fmt.Sprintf("model server rate limited: %s", apiErr.Message),
				RetryAfter: retryAfter,
				StatusCode: apiErr.StatusCode,
			}
		}
		if apiErr.Message != "" {
			return fmt.Errorf("chat completion error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("chat completion error (status %d)", apiErr.StatusCode)
	}
	return err
}

var (
	_ LLMClient     = (*OpenAIChatClient)(nil)
	_ HealthChecker = (*OpenAIChatClient)(nil)
)
