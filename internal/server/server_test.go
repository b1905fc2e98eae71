package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jackzampolin/invoicex/internal/api"
	"github.com/jackzampolin/invoicex/internal/extraction"
	"github.com/jackzampolin/invoicex/internal/invoice"
	"github.com/jackzampolin/invoicex/internal/server/endpoints"
)

const testAPIKey = "test-key"

// fakePipeline records calls and returns a canned result.
type fakePipeline struct {
	mu       sync.Mutex
	calls    int
	result   invoice.Result
	strategy extraction.Strategy
	err      error
}

func (p *fakePipeline) Run(ctx context.Context, pdf []byte) (invoice.Result, extraction.Strategy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	return p.result, p.strategy, p.err
}

type okChecker struct{}

func (okChecker) HealthCheck(ctx context.Context) error { return nil }

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) records(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

type testServer struct {
	srv      *Server
	pipeline *fakePipeline
	logs     *syncBuffer
}

func newTestServer(t *testing.T, mutate func(*Config)) *testServer {
	t.Helper()
	logs := &syncBuffer{}
	pipeline := &fakePipeline{strategy: extraction.StrategyText}
	cfg := Config{
		APIKey:       testAPIKey,
		MaxFileSize:  1024,
		Pipeline:     pipeline,
		ModelChecker: okChecker{},
		Logger:       slog.New(slog.NewJSONHandler(logs, nil)),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	srv.Readiness().Set(true)
	return &testServer{srv: srv, pipeline: pipeline, logs: logs}
}

// uploadRequest builds a multipart extract request.
func uploadRequest(t *testing.T, field, contentType string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename="invoice.pdf"`, field))
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, endpoints.ExtractPath, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set(api.APIKeyHeader, testAPIKey)
	return req
}

func (ts *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp endpoints.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("error body %q is not JSON: %v", rec.Body.String(), err)
	}
	return resp.Error
}

var validPDF = []byte("%PDF-1.4\n%fake\n")

func TestNew_Validation(t *testing.T) {
	if _, err := New(Config{ModelChecker: okChecker{}}); err == nil {
		t.Error("New() without pipeline should fail")
	}
	if _, err := New(Config{Pipeline: &fakePipeline{}}); err == nil {
		t.Error("New() without model checker should fail")
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, nil)
	ts.srv.Readiness().Set(false)

	check := func(wantLoaded bool) {
		t.Helper()
		rec := ts.do(httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", rec.Code)
		}
		var health endpoints.HealthResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &health); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if health.Status != "ok" || health.ModelLoaded != wantLoaded {
			t.Errorf("health = %+v, want ok/%v", health, wantLoaded)
		}
	}

	check(false)
	ts.srv.Readiness().Set(true)
	check(true)
}

func TestExtract_Success(t *testing.T) {
	ts := newTestServer(t, nil)
	eur := "EUR"
	ref := "INV-7"
	ts.pipeline.result = invoice.Result{
		InvoiceReference: &ref,
		TotalAmount:      &invoice.MonetaryAmount{Amount: decimal.RequireFromString("121.00"), Currency: &eur},
	}
	ts.pipeline.strategy = extraction.StrategyOCR

	rec := ts.do(uploadRequest(t, "file", "application/pdf", validPDF))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range invoice.Fields {
		if _, ok := body[key]; !ok {
			t.Errorf("response missing key %q", key)
		}
	}
	if body["invoiceReference"] != "INV-7" {
		t.Errorf("invoiceReference = %v", body["invoiceReference"])
	}
	total, _ := body["totalAmount"].(map[string]any)
	if total["amount"] != "121" || total["currency"] != "EUR" {
		t.Errorf("totalAmount = %v", body["totalAmount"])
	}
	if rec.Header().Get(api.RequestIDHeader) == "" {
		t.Error("missing X-Request-Id header")
	}

	// Access log carries the extraction path and null fields.
	var access map[string]any
	for _, r := range ts.logs.records(t) {
		if r["msg"] == "request" {
			access = r
		}
	}
	if access == nil {
		t.Fatal("no access log record")
	}
	if access["extraction_path"] != "ocr" {
		t.Errorf("extraction_path = %v, want ocr", access["extraction_path"])
	}
	if access["status_code"] != float64(200) {
		t.Errorf("status_code = %v, want 200", access["status_code"])
	}
	nulls, _ := access["null_fields"].([]any)
	if len(nulls) != 3 {
		t.Errorf("null_fields = %v, want 3 entries", access["null_fields"])
	}
	for _, key := range []string{"request_id", "method", "path", "duration_ms"} {
		if _, ok := access[key]; !ok {
			t.Errorf("access log missing %q", key)
		}
	}
}

func TestExtract_RequestID(t *testing.T) {
	ts := newTestServer(t, nil)

	req := uploadRequest(t, "file", "application/pdf", validPDF)
	req.Header.Set(api.RequestIDHeader, "caller-supplied")
	rec := ts.do(req)
	if got := rec.Header().Get(api.RequestIDHeader); got != "caller-supplied" {
		t.Errorf("X-Request-Id = %q, want caller-supplied", got)
	}

	// Rejected requests also carry an id.
	rec = ts.do(httptest.NewRequest(http.MethodPost, endpoints.ExtractPath, nil))
	if rec.Header().Get(api.RequestIDHeader) == "" {
		t.Error("rejected request missing X-Request-Id")
	}
}

func TestExtract_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Config)
		notReady   bool
		req        func(t *testing.T) *http.Request
		wantStatus int
		wantMsg    string
	}{
		{
			name: "missing api key",
			req: func(t *testing.T) *http.Request {
				r := uploadRequest(t, "file", "application/pdf", validPDF)
				r.Header.Del(api.APIKeyHeader)
				return r
			},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    endpoints.MsgInvalidAPIKey,
		},
		{
			name: "wrong api key",
			req: func(t *testing.T) *http.Request {
				r := uploadRequest(t, "file", "application/pdf", validPDF)
				r.Header.Set(api.APIKeyHeader, "nope")
				return r
			},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    endpoints.MsgInvalidAPIKey,
		},
		{
			name:   "empty configured key rejects everything",
			mutate: func(c *Config) { c.APIKey = "" },
			req: func(t *testing.T) *http.Request {
				r := uploadRequest(t, "file", "application/pdf", validPDF)
				r.Header.Set(api.APIKeyHeader, "")
				return r
			},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    endpoints.MsgInvalidAPIKey,
		},
		{
			name:     "auth is checked before readiness",
			notReady: true,
			req: func(t *testing.T) *http.Request {
				r := uploadRequest(t, "file", "application/pdf", validPDF)
				r.Header.Del(api.APIKeyHeader)
				return r
			},
			wantStatus: http.StatusUnauthorized,
			wantMsg:    endpoints.MsgInvalidAPIKey,
		},
		{
			name:     "model not loaded",
			notReady: true,
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "application/pdf", validPDF)
			},
			wantStatus: http.StatusServiceUnavailable,
			wantMsg:    endpoints.MsgModelNotLoaded,
		},
		{
			name: "missing file part",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "", "", nil)
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    endpoints.MsgNoFile,
		},
		{
			name: "wrong field name",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "document", "application/pdf", validPDF)
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    endpoints.MsgNoFile,
		},
		{
			name: "not multipart",
			req: func(t *testing.T) *http.Request {
				r := httptest.NewRequest(http.MethodPost, endpoints.ExtractPath, strings.NewReader("{}"))
				r.Header.Set("Content-Type", "application/json")
				r.Header.Set(api.APIKeyHeader, testAPIKey)
				return r
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    endpoints.MsgNoFile,
		},
		{
			name: "wrong content type",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "image/png", validPDF)
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    endpoints.MsgInvalidType,
		},
		{
			name: "too large",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "application/pdf", append([]byte("%PDF"), bytes.Repeat([]byte("x"), 2048)...))
			},
			wantStatus: http.StatusRequestEntityTooLarge,
			wantMsg:    "File too large: maximum size is 0 MB",
		},
		{
			name: "bad magic",
			req: func(t *testing.T) *http.Request {
				return uploadRequest(t, "file", "application/pdf", []byte("hello world"))
			},
			wantStatus: http.StatusBadRequest,
			wantMsg:    endpoints.MsgInvalidPDF,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, tt.mutate)
			if tt.notReady {
				ts.srv.Readiness().Set(false)
			}
			rec := ts.do(tt.req(t))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if got := errorMessage(t, rec); got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
			if ts.pipeline.calls != 0 {
				t.Errorf("pipeline ran %d times on a rejected request", ts.pipeline.calls)
			}
		})
	}
}

func TestExtract_SizeLimitMessage(t *testing.T) {
	ts := newTestServer(t, func(c *Config) { c.MaxFileSize = 1 << 20 })
	big := append([]byte("%PDF"), bytes.Repeat([]byte("x"), 1<<20)...)

	rec := ts.do(uploadRequest(t, "file", "application/pdf", big))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	if got := errorMessage(t, rec); got != "File too large: maximum size is 1 MB" {
		t.Errorf("error = %q", got)
	}
}

func TestExtract_PipelineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"empty document", extraction.ErrEmptyDocument, http.StatusUnprocessableEntity, endpoints.MsgUnreadablePDF},
		{"unreadable document", fmt.Errorf("%w: xref broken", extraction.ErrUnreadableDocument), http.StatusUnprocessableEntity, endpoints.MsgUnreadablePDF},
		{"unexpected failure", errors.New("tesseract exploded at /tmp/secret"), http.StatusInternalServerError, endpoints.MsgInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			ts.pipeline.err = tt.err

			rec := ts.do(uploadRequest(t, "file", "application/pdf", validPDF))
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := errorMessage(t, rec); got != tt.wantMsg {
				t.Errorf("error = %q, want %q", got, tt.wantMsg)
			}
			if strings.Contains(rec.Body.String(), "secret") {
				t.Error("internal error details leaked to the client")
			}
		})
	}
}

func TestSwagger(t *testing.T) {
	ts := newTestServer(t, nil)

	rec := ts.do(httptest.NewRequest(http.MethodGet, "/swagger.json", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("swagger.json is not JSON: %v", err)
	}
	paths, _ := doc["paths"].(map[string]any)
	if _, ok := paths[endpoints.ExtractPath]; !ok {
		t.Errorf("swagger paths = %v, missing %s", paths, endpoints.ExtractPath)
	}
}

func TestValidAPIKey(t *testing.T) {
	tests := []struct {
		expected, got string
		want          bool
	}{
		{"k", "k", true},
		{"k", "K", false},
		{"k", "", false},
		{"", "", false},
		{"", "anything", false},
		{"longer-key", "longer", false},
	}
	for _, tt := range tests {
		if got := validAPIKey(tt.expected, tt.got); got != tt.want {
			t.Errorf("validAPIKey(%q, %q) = %v, want %v", tt.expected, tt.got, got, tt.want)
		}
	}
}

func TestUnknownRoute(t *testing.T) {
	ts := newTestServer(t, nil)
	rec := ts.do(httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	_, _ = io.Copy(io.Discard, rec.Body)
}
