package server

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/invoicex/internal/api"
	"github.com/jackzampolin/invoicex/internal/server/endpoints"
	"github.com/jackzampolin/invoicex/internal/svcctx"
)

// withRequestID reuses an incoming X-Request-Id or assigns a new one, and
// echoes it on the response.
func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(api.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(api.RequestIDHeader, id)
		ctx := svcctx.WithRequest(r.Context(), &svcctx.Request{ID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.status == 0 {
		rec.status = code
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// withAccessLog emits one record per request, including any attributes the
// handler attached via svcctx.Annotate.
func (s *Server) withAccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		args := []any{
			"request_id", svcctx.RequestIDFrom(r.Context()),
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if req := svcctx.RequestFrom(r.Context()); req != nil {
			args = append(args, req.Attrs()...)
		}
		s.logger.Info("request", args...)
	})
}

// withServices wraps a handler to enrich the request context with services.
func (s *Server) withServices(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := svcctx.WithServices(r.Context(), s.services)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// protect checks the API key, then model readiness.
func (s *Server) protect(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAPIKey(s.requireModel(next))
}

// requireAPIKey rejects requests whose X-API-Key does not match. An empty
// configured key rejects everything.
func (s *Server) requireAPIKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !validAPIKey(s.apiKey, r.Header.Get(api.APIKeyHeader)) {
			endpoints.WriteError(w, http.StatusUnauthorized, endpoints.MsgInvalidAPIKey)
			return
		}
		next(w, r)
	}
}

func validAPIKey(expected, got string) bool {
	if expected == "" || got == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}

// requireModel returns 503 until the model endpoint has answered.
func (s *Server) requireModel(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.readiness.Ready() {
			endpoints.WriteError(w, http.StatusServiceUnavailable, endpoints.MsgModelNotLoaded)
			return
		}
		next(w, r)
	}
}
