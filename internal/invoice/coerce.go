package invoice

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
)

// recordSchema describes the shapes each field may take before conversion.
// Amount strings must look like plain decimal numbers.
const recordSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"$defs": {
		"amount": {
			"type": ["object", "null"],
			"required": ["amount"],
			"properties": {
				"amount": {
					"type": ["number", "string"],
					"pattern": "^\\s*[-+]?(\\d+(\\.\\d*)?|\\.\\d+)([eE][-+]?\\d+)?\\s*$"
				},
				"currency": {"type": ["string", "null"]}
			}
		}
	},
	"properties": {
		"invoiceDate": {
			"type": ["string", "null"],
			"pattern": "^\\d{4}-\\d{2}-\\d{2}$"
		},
		"invoiceReference": {"type": ["string", "null"]},
		"netAmount": {"$ref": "#/$defs/amount"},
		"vatAmount": {"$ref": "#/$defs/amount"},
		"totalAmount": {"$ref": "#/$defs/amount"}
	}
}`

var compiledRecordSchema = jsonschema.MustCompileString("invoice_record.json", recordSchema)

// Amounts beyond these bounds are not money and would make decimal
// arithmetic and formatting grow with the exponent.
const (
	maxAmountIntegerDigits = 18
	maxAmountScale         = 18
	maxExponentDigits      = 4
)

var exponentPattern = regexp.MustCompile(`[eE][-+]?0*(\d+)`)

var errAmountOutOfRange = errors.New("amount out of range")

// FieldError reports why one field could not be converted.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// coerce builds a typed result from the record. It never fails as a whole;
// fields that cannot be converted are reported and left nil.
func coerce(raw RawRecord) (Result, []FieldError) {
	var errs []FieldError

	doc := make(map[string]any, len(Fields))
	for _, name := range Fields {
		v, err := toJSONValue(raw.Get(name))
		if err != nil {
			errs = append(errs, FieldError{Field: name, Message: err.Error()})
			v = nil
		}
		if err == nil && isAmountField(name) {
			if err := checkAmountRange(v); err != nil {
				errs = append(errs, FieldError{Field: name, Message: err.Error()})
				v = nil
			}
		}
		doc[name] = v
	}

	errs = append(errs, schemaErrors(doc)...)
	failed := make(map[string]bool, len(errs))
	for _, e := range errs {
		failed[e.Field] = true
	}

	var result Result
	if !failed[FieldInvoiceDate] {
		d, err := toDate(doc[FieldInvoiceDate])
		if err != nil {
			errs = append(errs, FieldError{Field: FieldInvoiceDate, Message: err.Error()})
		}
		result.InvoiceDate = d
	}
	if !failed[FieldInvoiceReference] {
		if s, ok := doc[FieldInvoiceReference].(string); ok {
			result.InvoiceReference = &s
		}
	}
	for _, name := range AmountFields {
		if failed[name] {
			continue
		}
		m, err := toAmount(doc[name])
		if err != nil {
			errs = append(errs, FieldError{Field: name, Message: err.Error()})
			continue
		}
		switch name {
		case FieldNetAmount:
			result.NetAmount = m
		case FieldVATAmount:
			result.VATAmount = m
		case FieldTotalAmount:
			result.TotalAmount = m
		}
	}

	return result, errs
}

// schemaErrors validates the document and maps every failing leaf to the
// top-level field it belongs to.
func schemaErrors(doc map[string]any) []FieldError {
	err := compiledRecordSchema.Validate(doc)
	if err == nil {
		return nil
	}

	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		errs := make([]FieldError, 0, len(Fields))
		for _, name := range Fields {
			errs = append(errs, FieldError{Field: name, Message: err.Error()})
		}
		return errs
	}

	byField := map[string]string{}
	collectLeaves(ve, byField)

	errs := make([]FieldError, 0, len(byField))
	for field, msg := range byField {
		errs = append(errs, FieldError{Field: field, Message: msg})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func collectLeaves(ve *jsonschema.ValidationError, out map[string]string) {
	if len(ve.Causes) == 0 {
		field := topLevelField(ve.InstanceLocation)
		if field == "" {
			// Root-level failure: blame every field.
			for _, name := range Fields {
				out[name] = ve.Message
			}
			return
		}
		if _, seen := out[field]; !seen {
			out[field] = ve.Message
		}
		return
	}
	for _, cause := range ve.Causes {
		collectLeaves(cause, out)
	}
}

func topLevelField(instanceLocation string) string {
	loc := strings.TrimPrefix(instanceLocation, "/")
	if i := strings.Index(loc, "/"); i >= 0 {
		loc = loc[:i]
	}
	return loc
}

// toJSONValue converts native Go values into the generic JSON shape the
// schema validator understands.
func toJSONValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, bool, string, json.Number, float64, float32,
		int, int8, int32, int64, uint, uint8, uint32, uint64:
		return v, nil
	case int16:
		return int64(x), nil
	case uint16:
		return uint64(x), nil
	case *string:
		if x == nil {
			return nil, nil
		}
		return *x, nil
	case civil.Date:
		return x.String(), nil
	case *civil.Date:
		if x == nil {
			return nil, nil
		}
		return x.String(), nil
	case time.Time:
		return civil.DateOf(x).String(), nil
	case *time.Time:
		if x == nil {
			return nil, nil
		}
		return civil.DateOf(*x).String(), nil
	case decimal.Decimal:
		if err := checkMagnitude(x); err != nil {
			return nil, err
		}
		return json.Number(x.String()), nil
	case MonetaryAmount:
		return toJSONValue(rawAmount(&x))
	case *MonetaryAmount:
		if x == nil {
			return nil, nil
		}
		return toJSONValue(rawAmount(x))
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			conv, err := toJSONValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = conv
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			conv, err := toJSONValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = conv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func toDate(v any) (*civil.Date, error) {
	s, ok := v.(string)
	if !ok {
		return nil, nil
	}
	d, err := civil.ParseDate(s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q", s)
	}
	return &d, nil
}

func toAmount(v any) (*MonetaryAmount, error) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	amount, err := toDecimal(obj["amount"])
	if err != nil {
		return nil, err
	}
	m := &MonetaryAmount{Amount: amount}
	if c, ok := obj["currency"].(string); ok {
		m.Currency = &c
	}
	return m, nil
}

func toDecimal(v any) (decimal.Decimal, error) {
	d, err := parseDecimal(v)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if err := checkMagnitude(d); err != nil {
		return decimal.Decimal{}, err
	}
	return d, nil
}

func parseDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case json.Number:
		return decimal.NewFromString(x.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(x))
	case float64:
		return decimal.NewFromString(strconv.FormatFloat(x, 'g', -1, 64))
	case float32:
		return decimal.NewFromString(strconv.FormatFloat(float64(x), 'g', -1, 32))
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case int8:
		return decimal.NewFromInt(int64(x)), nil
	case int32:
		return decimal.NewFromInt(int64(x)), nil
	case int64:
		return decimal.NewFromInt(x), nil
	case uint, uint8, uint32, uint64:
		return decimal.NewFromString(fmt.Sprint(x))
	default:
		return decimal.Decimal{}, fmt.Errorf("invalid amount %v", v)
	}
}

func isAmountField(name string) bool {
	for _, f := range AmountFields {
		if f == name {
			return true
		}
	}
	return false
}

// checkAmountRange bounds the amount of an amount object before anything
// expands it. Shapes it does not recognize are left to the schema.
func checkAmountRange(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	var s string
	switch x := obj["amount"].(type) {
	case json.Number:
		s = x.String()
	case string:
		s = strings.TrimSpace(x)
	case float64, float32:
		d, err := parseDecimal(x)
		if err != nil {
			return nil
		}
		return checkMagnitude(d)
	default:
		return nil
	}
	if m := exponentPattern.FindStringSubmatch(s); m != nil && len(m[1]) > maxExponentDigits {
		return errAmountOutOfRange
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return checkMagnitude(d)
}

// checkMagnitude rejects values with more than maxAmountIntegerDigits
// digits before the point or more than maxAmountScale after it.
func checkMagnitude(d decimal.Decimal) error {
	if d.IsZero() {
		return nil
	}
	exp := int64(d.Exponent())
	if -exp > maxAmountScale {
		return errAmountOutOfRange
	}
	digits := int64(len(d.Coefficient().Text(10)))
	if d.Coefficient().Sign() < 0 {
		digits--
	}
	if digits+exp > maxAmountIntegerDigits {
		return errAmountOutOfRange
	}
	return nil
}
