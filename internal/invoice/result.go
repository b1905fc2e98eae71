// Package invoice holds the typed invoice record and the normalizer that
// turns an unchecked model record into it.
package invoice

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Wire names of the five invoice fields, in output order.
const (
	FieldInvoiceDate      = "invoiceDate"
	FieldInvoiceReference = "invoiceReference"
	FieldNetAmount        = "netAmount"
	FieldVATAmount        = "vatAmount"
	FieldTotalAmount      = "totalAmount"
)

// Fields lists every invoice field name in output order.
var Fields = []string{
	FieldInvoiceDate,
	FieldInvoiceReference,
	FieldNetAmount,
	FieldVATAmount,
	FieldTotalAmount,
}

// AmountFields lists the monetary fields.
var AmountFields = []string{FieldNetAmount, FieldVATAmount, FieldTotalAmount}

// MonetaryAmount is an exact decimal amount with an optional currency code.
type MonetaryAmount struct {
	Amount   decimal.Decimal `json:"amount" yaml:"amount"`
	Currency *string         `json:"currency" yaml:"currency"`
}

// CurrencyCode returns the currency or "" when absent.
func (m MonetaryAmount) CurrencyCode() string {
	if m.Currency == nil {
		return ""
	}
	return *m.Currency
}

// Result is the normalized invoice. Every key is always serialized;
// absent values encode as null.
type Result struct {
	InvoiceDate      *civil.Date     `json:"invoiceDate" yaml:"invoiceDate"`
	InvoiceReference *string         `json:"invoiceReference" yaml:"invoiceReference"`
	NetAmount        *MonetaryAmount `json:"netAmount" yaml:"netAmount"`
	VATAmount        *MonetaryAmount `json:"vatAmount" yaml:"vatAmount"`
	TotalAmount      *MonetaryAmount `json:"totalAmount" yaml:"totalAmount"`
}

// Amount returns the monetary field with the given wire name.
func (r Result) Amount(field string) *MonetaryAmount {
	switch field {
	case FieldNetAmount:
		return r.NetAmount
	case FieldVATAmount:
		return r.VATAmount
	case FieldTotalAmount:
		return r.TotalAmount
	}
	return nil
}

// NullFields returns the names of fields that are absent, in output order.
func (r Result) NullFields() []string {
	present := map[string]bool{
		FieldInvoiceDate:      r.InvoiceDate != nil,
		FieldInvoiceReference: r.InvoiceReference != nil,
		FieldNetAmount:        r.NetAmount != nil,
		FieldVATAmount:        r.VATAmount != nil,
		FieldTotalAmount:      r.TotalAmount != nil,
	}
	nulls := make([]string, 0, len(Fields))
	for _, name := range Fields {
		if !present[name] {
			nulls = append(nulls, name)
		}
	}
	return nulls
}

// Raw converts the result back into an unchecked record. Validating the
// returned record yields the same result.
func (r Result) Raw() RawRecord {
	var raw RawRecord
	if r.InvoiceDate != nil {
		raw.InvoiceDate = *r.InvoiceDate
	}
	if r.InvoiceReference != nil {
		raw.InvoiceReference = *r.InvoiceReference
	}
	raw.NetAmount = rawAmount(r.NetAmount)
	raw.VATAmount = rawAmount(r.VATAmount)
	raw.TotalAmount = rawAmount(r.TotalAmount)
	return raw
}

func rawAmount(m *MonetaryAmount) any {
	if m == nil {
		return nil
	}
	var currency any
	if m.Currency != nil {
		currency = *m.Currency
	}
	return map[string]any{
		"amount":   m.Amount,
		"currency": currency,
	}
}
