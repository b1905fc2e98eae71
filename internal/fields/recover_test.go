package fields

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/jackzampolin/invoicex/internal/invoice"
)

func TestFirstObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"plain", `{"a":1}`, `{"a":1}`, true},
		{"prose around", `Here: {"a":{"b":2}} done.`, `{"a":{"b":2}}`, true},
		{"brace in string", `x {"ref":"a}b{c"} y`, `{"ref":"a}b{c"}`, true},
		{"escaped quote", `x {"ref":"INV \"special\" }"} y`, `{"ref":"INV \"special\" }"}`, true},
		{"escaped backslash before quote", `{"p":"C:\\"} tail}`, `{"p":"C:\\"}`, true},
		{"first of two", `{"n":1} and {"n":2}`, `{"n":1}`, true},
		{"unclosed", `{"a":1`, "", false},
		{"no brace", `nothing here`, "", false},
		{"closing before opening", `} {"a":1}`, `{"a":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := firstObject(tt.in)
			if ok != tt.ok || got != tt.want {
				t.Errorf("firstObject(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	full := `{"invoiceDate":"2024-03-10","invoiceReference":"REF-456","netAmount":{"amount":100.0,"currency":"EUR"},"vatAmount":null,"totalAmount":null}`

	t.Run("direct JSON", func(t *testing.T) {
		raw := Recover(full)
		if raw.InvoiceDate != "2024-03-10" || raw.InvoiceReference != "REF-456" {
			t.Errorf("Recover() = %+v", raw)
		}
		want := map[string]any{"amount": json.Number("100.0"), "currency": "EUR"}
		if !reflect.DeepEqual(raw.NetAmount, want) {
			t.Errorf("NetAmount = %#v, want %#v", raw.NetAmount, want)
		}
	})

	t.Run("prose wrapped", func(t *testing.T) {
		raw := Recover("Here is the result: " + full + " End.")
		if raw.InvoiceDate != "2024-03-10" || raw.InvoiceReference != "REF-456" {
			t.Errorf("Recover() = %+v", raw)
		}
		if raw.VATAmount != nil || raw.TotalAmount != nil {
			t.Errorf("null fields should stay nil: %+v", raw)
		}
	})

	t.Run("code fence", func(t *testing.T) {
		raw := Recover("```json\n" + full + "\n```")
		if raw.InvoiceReference != "REF-456" {
			t.Errorf("InvoiceReference = %v, want REF-456", raw.InvoiceReference)
		}
	})

	t.Run("escaped quotes in value", func(t *testing.T) {
		raw := Recover(`Sure! {"invoiceReference": "INV \"special\" {1}"} Hope this helps.`)
		if raw.InvoiceReference != `INV "special" {1}` {
			t.Errorf("InvoiceReference = %v", raw.InvoiceReference)
		}
	})

	t.Run("first object wins", func(t *testing.T) {
		raw := Recover(`First: {"invoiceReference":"FIRST"} and also: {"invoiceReference":"SECOND"}`)
		if raw.InvoiceReference != "FIRST" {
			t.Errorf("InvoiceReference = %v, want FIRST", raw.InvoiceReference)
		}
	})

	t.Run("wrong types pass through", func(t *testing.T) {
		raw := Recover(`{"invoiceDate": 20240115, "netAmount": "100 EUR", "extra": true}`)
		if raw.InvoiceDate != json.Number("20240115") {
			t.Errorf("InvoiceDate = %#v", raw.InvoiceDate)
		}
		if raw.NetAmount != "100 EUR" {
			t.Errorf("NetAmount = %#v", raw.NetAmount)
		}
	})

	empty := map[string]string{
		"prose only":      "I cannot parse this invoice.",
		"broken object":   "Result: {broken json here}",
		"array":           "[]",
		"array of object": `[{"invoiceReference":"X"}]`,
		"number":          "42",
		"string":          `"hello"`,
		"empty":           "",
		"unclosed":        `{"invoiceReference":"X"`,
	}
	for name, in := range empty {
		t.Run(name, func(t *testing.T) {
			raw := Recover(in)
			for _, f := range invoice.Fields {
				if v := raw.Get(f); v != nil {
					t.Errorf("%s = %#v, want nil", f, v)
				}
			}
		})
	}
}
