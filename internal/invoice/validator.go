package invoice

import (
	"log/slog"

	"github.com/shopspring/decimal"
)

// totalsTolerance is the allowed relative gap between net+vat and total.
var totalsTolerance = decimal.RequireFromString("0.01")

// WarningKind classifies a consistency warning.
type WarningKind string

const (
	WarningCurrencyMismatch WarningKind = "currency_mismatch"
	WarningTotalsMismatch   WarningKind = "totals_inconsistency"
	WarningNegativeAmount   WarningKind = "negative_amount"
)

// Warning is a non-fatal consistency finding. Warnings never change the result.
type Warning struct {
	Kind  WarningKind
	Field string // set for negative amounts
	Attrs []any  // slog key/value pairs
}

// Validator normalizes raw records into typed results.
type Validator struct {
	logger *slog.Logger
}

// NewValidator creates a Validator. A nil logger uses slog.Default().
func NewValidator(logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{logger: logger}
}

// Validate always returns a complete result. Fields whose values cannot be
// converted are nulled individually; if the record still does not convert,
// every field is nulled. Consistency problems are logged as warnings.
func (v *Validator) Validate(raw RawRecord) Result {
	raw.InvoiceDate = normalizeDate(raw.InvoiceDate)

	result := v.coerce(raw)
	for _, w := range Check(result) {
		v.logger.Warn(w.message(), w.Attrs...)
	}
	return result
}

func (v *Validator) coerce(raw RawRecord) Result {
	result, errs := coerce(raw)
	if len(errs) == 0 {
		return result
	}

	cleaned := raw
	for _, fe := range errs {
		v.logger.Debug("invoice field degraded", "field", fe.Field, "reason", fe.Message)
		cleaned = cleaned.With(fe.Field, nil)
	}
	result, errs = coerce(cleaned)
	if len(errs) == 0 {
		return result
	}
	return Result{}
}

// Check runs the cross-field consistency checks.
func Check(r Result) []Warning {
	var warnings []Warning

	if r.NetAmount != nil && r.VATAmount != nil && r.TotalAmount != nil {
		net, vat, total := r.NetAmount, r.VATAmount, r.TotalAmount
		if !sameCurrency(net, vat, total) {
			warnings = append(warnings, Warning{
				Kind: WarningCurrencyMismatch,
				Attrs: []any{
					"net", net.CurrencyCode(),
					"vat", vat.CurrencyCode(),
					"total", total.CurrencyCode(),
				},
			})
		} else if !total.Amount.IsZero() {
			gap := net.Amount.Add(vat.Amount).Sub(total.Amount).Abs()
			if gap.GreaterThan(total.Amount.Abs().Mul(totalsTolerance)) {
				warnings = append(warnings, Warning{
					Kind: WarningTotalsMismatch,
					Attrs: []any{
						"net", net.Amount.String(),
						"vat", vat.Amount.String(),
						"total", total.Amount.String(),
					},
				})
			}
		}
	}

	for _, name := range AmountFields {
		m := r.Amount(name)
		if m != nil && m.Amount.IsNegative() {
			warnings = append(warnings, Warning{
				Kind:  WarningNegativeAmount,
				Field: name,
				Attrs: []any{"field", name, "amount", m.Amount.String()},
			})
		}
	}

	return warnings
}

func sameCurrency(amounts ...*MonetaryAmount) bool {
	first := amounts[0].Currency
	for _, m := range amounts[1:] {
		c := m.Currency
		if (first == nil) != (c == nil) {
			return false
		}
		if first != nil && *first != *c {
			return false
		}
	}
	return true
}

func (w Warning) message() string {
	switch w.Kind {
	case WarningCurrencyMismatch:
		return "currency mismatch in totals"
	case WarningTotalsMismatch:
		return "totals inconsistency"
	case WarningNegativeAmount:
		return "negative amount"
	}
	return string(w.Kind)
}
