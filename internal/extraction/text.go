package extraction

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// LedongthucText reads the embedded text layer with github.com/ledongthuc/pdf.
type LedongthucText struct{}

// PageTexts returns the plain text of every page. Pages that cannot be read
// come back empty.
func (LedongthucText) PageTexts(data []byte) (texts []string, err error) {
	// The parser panics on some malformed content streams.
	defer func() {
		if p := recover(); p != nil {
			texts, err = nil, fmt.Errorf("pdf text parser panic: %v", p)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	n := r.NumPage()
	texts = make([]string, n)
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		texts[i-1] = text
	}
	return texts, nil
}
