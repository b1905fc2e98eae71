// Package svcctx provides service context for dependency injection via context.
// This package is separate from server to avoid import cycles with endpoints.
package svcctx

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackzampolin/invoicex/internal/extraction"
	"github.com/jackzampolin/invoicex/internal/invoice"
)

// Pipeline runs the full extraction on one document.
type Pipeline interface {
	Run(ctx context.Context, pdf []byte) (invoice.Result, extraction.Strategy, error)
}

// Readiness reports whether the model endpoint is loaded.
type Readiness interface {
	Ready() bool
}

// Services holds all core services that flow through context.
// Components extract what they need via the individual extractors.
type Services struct {
	Pipeline       Pipeline
	Readiness      Readiness
	Logger         *slog.Logger
	MaxFileSize    int64 // bytes
	RequestTimeout time.Duration
}

type servicesKey struct{}

// WithServices returns a new context with services attached.
func WithServices(ctx context.Context, s *Services) context.Context {
	return context.WithValue(ctx, servicesKey{}, s)
}

// ServicesFrom extracts the full Services struct from context.
// Returns nil if not present.
func ServicesFrom(ctx context.Context) *Services {
	s, _ := ctx.Value(servicesKey{}).(*Services)
	return s
}

// PipelineFrom extracts the extraction pipeline from context.
func PipelineFrom(ctx context.Context) Pipeline {
	if s := ServicesFrom(ctx); s != nil {
		return s.Pipeline
	}
	return nil
}

// ModelReady reports whether the model is loaded. Missing services count as
// not ready.
func ModelReady(ctx context.Context) bool {
	if s := ServicesFrom(ctx); s != nil && s.Readiness != nil {
		return s.Readiness.Ready()
	}
	return false
}

// LoggerFrom extracts the logger from context.
func LoggerFrom(ctx context.Context) *slog.Logger {
	if s := ServicesFrom(ctx); s != nil && s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Request carries per-request metadata shared between middleware and
// handlers. Handlers append attributes that end up on the access log line.
type Request struct {
	ID string

	mu    sync.Mutex
	attrs []any
}

type requestKey struct{}

// WithRequest returns a new context with request metadata attached.
func WithRequest(ctx context.Context, r *Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// RequestFrom extracts the request metadata. Returns nil if not present.
func RequestFrom(ctx context.Context) *Request {
	r, _ := ctx.Value(requestKey{}).(*Request)
	return r
}

// RequestIDFrom returns the request id or "".
func RequestIDFrom(ctx context.Context) string {
	if r := RequestFrom(ctx); r != nil {
		return r.ID
	}
	return ""
}

// Annotate adds key/value pairs to the request's access log line.
func Annotate(ctx context.Context, args ...any) {
	r := RequestFrom(ctx)
	if r == nil {
		return
	}
	r.mu.Lock()
	r.attrs = append(r.attrs, args...)
	r.mu.Unlock()
}

// Attrs returns the annotations added so far.
func (r *Request) Attrs() []any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]any(nil), r.attrs...)
}
