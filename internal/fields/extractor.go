// Package fields asks the model for the invoice fields and recovers a raw
// record from whatever it answers.
package fields

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jackzampolin/invoicex/internal/invoice"
	"github.com/jackzampolin/invoicex/internal/providers"
)

// Extractor turns document text into a raw invoice record. It never fails:
// model errors and unusable output give an all-nil record.
type Extractor struct {
	client providers.LLMClient
	model  string
	logger *slog.Logger
}

// NewExtractor creates an Extractor. An empty model uses the client default.
func NewExtractor(client providers.LLMClient, model string, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{client: client, model: model, logger: logger}
}

// ExtractFields makes one chat call for text and recovers the record.
func (e *Extractor) ExtractFields(ctx context.Context, text string) invoice.RawRecord {
	req := &providers.ChatRequest{
		Messages:    Messages(text),
		Model:       e.model,
		Temperature: Temperature,
		MaxTokens:   MaxTokens,
		RequestID:   uuid.NewString(),
	}

	result, err := e.client.Chat(ctx, req)
	if err != nil {
		e.logger.Warn("field extraction call failed",
			"provider", e.client.Name(),
			"request_id", req.RequestID,
			"error", err)
		return invoice.RawRecord{}
	}
	if result == nil || strings.TrimSpace(result.Content) == "" {
		e.logger.Warn("model returned no content",
			"provider", e.client.Name(),
			"request_id", req.RequestID)
		return invoice.RawRecord{}
	}

	raw := Recover(result.Content)
	e.logger.Debug("fields recovered",
		"request_id", req.RequestID,
		"completion_tokens", result.CompletionTokens,
		"finish_reason", result.FinishReason,
		"fields_found", countPresent(raw))
	return raw
}

func countPresent(raw invoice.RawRecord) int {
	n := 0
	for _, name := range invoice.Fields {
		if raw.Get(name) != nil {
			n++
		}
	}
	return n
}
