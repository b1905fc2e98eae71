package fields

import (
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/jackzampolin/invoicex/internal/invoice"
)

// Recover reads the five invoice fields out of raw model output. Values are
// passed through without type checks. Output that holds no JSON object gives
// an all-nil record.
func Recover(content string) invoice.RawRecord {
	obj, ok := recoverObject(content)
	if !ok {
		return invoice.RawRecord{}
	}
	return invoice.RawRecordFromMap(obj)
}

// recoverObject tries the whole content as JSON first. Only when that fails
// to parse does it fall back to the first balanced object in the text.
func recoverObject(content string) (map[string]any, bool) {
	if v, err := decodeJSON(content); err == nil {
		obj, ok := v.(map[string]any)
		return obj, ok
	}

	candidate, ok := firstObject(content)
	if !ok {
		return nil, false
	}
	v, err := decodeJSON(candidate)
	if err != nil {
		return nil, false
	}
	obj, ok := v.(map[string]any)
	return obj, ok
}

// decodeJSON decodes exactly one JSON value. Numbers stay json.Number so
// amounts keep their written precision.
func decodeJSON(s string) (any, error) {
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return v, nil
}

// firstObject returns the substring from the first '{' to the brace that
// closes it. Braces and quotes inside string literals are ignored, and a
// backslash escapes the next character inside a string.
func firstObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}
