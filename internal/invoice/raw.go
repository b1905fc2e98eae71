package invoice

// RawRecord is the unchecked record recovered from model output. Each field
// holds whatever shape the model produced; nil means absent.
type RawRecord struct {
	InvoiceDate      any
	InvoiceReference any
	NetAmount        any
	VATAmount        any
	TotalAmount      any
}

// RawRecordFromMap reads the five known keys from a decoded object.
// Missing keys stay nil and unknown keys are ignored.
func RawRecordFromMap(m map[string]any) RawRecord {
	return RawRecord{
		InvoiceDate:      m[FieldInvoiceDate],
		InvoiceReference: m[FieldInvoiceReference],
		NetAmount:        m[FieldNetAmount],
		VATAmount:        m[FieldVATAmount],
		TotalAmount:      m[FieldTotalAmount],
	}
}

// Get returns the value stored under a wire field name.
func (r RawRecord) Get(field string) any {
	switch field {
	case FieldInvoiceDate:
		return r.InvoiceDate
	case FieldInvoiceReference:
		return r.InvoiceReference
	case FieldNetAmount:
		return r.NetAmount
	case FieldVATAmount:
		return r.VATAmount
	case FieldTotalAmount:
		return r.TotalAmount
	}
	return nil
}

// With returns a copy of the record with one field replaced.
func (r RawRecord) With(field string, v any) RawRecord {
	switch field {
	case FieldInvoiceDate:
		r.InvoiceDate = v
	case FieldInvoiceReference:
		r.InvoiceReference = v
	case FieldNetAmount:
		r.NetAmount = v
	case FieldVATAmount:
		r.VATAmount = v
	case FieldTotalAmount:
		r.TotalAmount = v
	}
	return r
}

// Map returns the record as a five-key map.
func (r RawRecord) Map() map[string]any {
	m := make(map[string]any, len(Fields))
	for _, name := range Fields {
		m[name] = r.Get(name)
	}
	return m
}
