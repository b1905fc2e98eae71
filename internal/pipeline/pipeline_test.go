package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/jackzampolin/invoicex/internal/extraction"
	"github.com/jackzampolin/invoicex/internal/fields"
	"github.com/jackzampolin/invoicex/internal/invoice"
	"github.com/jackzampolin/invoicex/internal/providers"
)

type routerFunc func(ctx context.Context, pdf []byte) (extraction.Outcome, error)

func (f routerFunc) Route(ctx context.Context, pdf []byte) (extraction.Outcome, error) {
	return f(ctx, pdf)
}

type recordingExtractor struct {
	text  string
	calls int
	raw   invoice.RawRecord
}

func (r *recordingExtractor) ExtractFields(_ context.Context, text string) invoice.RawRecord {
	r.calls++
	r.text = text
	return r.raw
}

func TestRun(t *testing.T) {
	router := routerFunc(func(context.Context, []byte) (extraction.Outcome, error) {
		return extraction.Outcome{Text: "Invoice REF-456", Strategy: extraction.StrategyOCR}, nil
	})
	ext := &recordingExtractor{raw: invoice.RawRecord{
		InvoiceDate:      "15 février 2024",
		InvoiceReference: "REF-456",
	}}

	p := New(router, ext, invoice.NewValidator(nil), nil)
	result, strategy, err := p.Run(context.Background(), []byte("%PDF"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strategy != extraction.StrategyOCR {
		t.Errorf("strategy = %s, want ocr", strategy)
	}
	if ext.text != "Invoice REF-456" {
		t.Errorf("extractor got %q, want the routed text", ext.text)
	}
	if result.InvoiceDate == nil || result.InvoiceDate.String() != "2024-02-15" {
		t.Errorf("InvoiceDate = %v, want 2024-02-15", result.InvoiceDate)
	}
	if result.InvoiceReference == nil || *result.InvoiceReference != "REF-456" {
		t.Errorf("InvoiceReference = %v, want REF-456", result.InvoiceReference)
	}
}

func TestRunRouterFailureStops(t *testing.T) {
	routeErr := errors.New("broken xref")
	router := routerFunc(func(context.Context, []byte) (extraction.Outcome, error) {
		return extraction.Outcome{}, errors.Join(extraction.ErrUnreadableDocument, routeErr)
	})
	ext := &recordingExtractor{}

	_, strategy, err := New(router, ext, invoice.NewValidator(nil), nil).Run(context.Background(), []byte("%PDF"))
	if !errors.Is(err, extraction.ErrUnreadableDocument) || !errors.Is(err, routeErr) {
		t.Errorf("Run() error = %v, want the router error unchanged", err)
	}
	if strategy != "" {
		t.Errorf("strategy = %q, want empty", strategy)
	}
	if ext.calls != 0 {
		t.Errorf("extractor called %d times after router failure", ext.calls)
	}
}

func TestRunWithModelGarbage(t *testing.T) {
	router := routerFunc(func(context.Context, []byte) (extraction.Outcome, error) {
		return extraction.Outcome{Text: "text", Strategy: extraction.StrategyText}, nil
	})
	client := providers.NewMockClient("I cannot parse this.")
	p := New(router, fields.NewExtractor(client, "", nil), invoice.NewValidator(nil), nil)

	result, strategy, err := p.Run(context.Background(), []byte("%PDF"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if strategy != extraction.StrategyText {
		t.Errorf("strategy = %s, want text", strategy)
	}
	if n := len(result.NullFields()); n != len(invoice.Fields) {
		t.Errorf("NullFields() = %d, want all %d", n, len(invoice.Fields))
	}
}

func TestRunEndToEndWithMockModel(t *testing.T) {
	router := routerFunc(func(context.Context, []byte) (extraction.Outcome, error) {
		return extraction.Outcome{Text: "text", Strategy: extraction.StrategyText}, nil
	})
	client := providers.NewMockClient(`Here is the result: {"invoiceDate":"2024-03-10","invoiceReference":"REF-456",` +
		`"netAmount":{"amount":100,"currency":"EUR"},"vatAmount":{"amount":20,"currency":"EUR"},` +
		`"totalAmount":{"amount":120,"currency":"EUR"}} End.`)
	p := New(router, fields.NewExtractor(client, "", nil), invoice.NewValidator(nil), nil)

	result, _, err := p.Run(context.Background(), []byte("%PDF"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(result.NullFields()) != 0 {
		t.Errorf("NullFields() = %v, want none", result.NullFields())
	}
	if result.TotalAmount.Amount.String() != "120" {
		t.Errorf("TotalAmount = %s, want 120", result.TotalAmount.Amount)
	}
}
