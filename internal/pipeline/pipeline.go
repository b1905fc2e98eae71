// Package pipeline runs one document through text acquisition, field
// recovery and normalization.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackzampolin/invoicex/internal/extraction"
	"github.com/jackzampolin/invoicex/internal/invoice"
)

// Router acquires the text of a document.
type Router interface {
	Route(ctx context.Context, pdf []byte) (extraction.Outcome, error)
}

// FieldExtractor recovers the raw fields from document text. It must not fail.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, text string) invoice.RawRecord
}

// Normalizer turns a raw record into a typed result. It must not fail.
type Normalizer interface {
	Validate(raw invoice.RawRecord) invoice.Result
}

// Pipeline composes the three stages. It holds no per-request state, so one
// Pipeline serves concurrent requests.
type Pipeline struct {
	router     Router
	fields     FieldExtractor
	normalizer Normalizer
	logger     *slog.Logger
}

// New creates a Pipeline.
func New(router Router, fields FieldExtractor, normalizer Normalizer, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		router:     router,
		fields:     fields,
		normalizer: normalizer,
		logger:     logger,
	}
}

// Run processes one PDF. Only text acquisition can fail; its error is
// returned unchanged.
func (p *Pipeline) Run(ctx context.Context, pdf []byte) (invoice.Result, extraction.Strategy, error) {
	start := time.Now()

	outcome, err := p.router.Route(ctx, pdf)
	if err != nil {
		return invoice.Result{}, "", err
	}
	acquired := time.Since(start)

	raw := p.fields.ExtractFields(ctx, outcome.Text)
	extracted := time.Since(start)

	result := p.normalizer.Validate(raw)

	p.logger.Debug("pipeline complete",
		"strategy", outcome.Strategy,
		"text_chars", len(outcome.Text),
		"acquire_ms", acquired.Milliseconds(),
		"extract_ms", (extracted - acquired).Milliseconds(),
		"total_ms", time.Since(start).Milliseconds(),
		"null_fields", result.NullFields())
	return result, outcome.Strategy, nil
}
