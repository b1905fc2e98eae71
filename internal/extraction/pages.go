package extraction

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// PDFCPUPageCounter counts pages with pdfcpu, which also rejects documents
// whose structure cannot be parsed.
type PDFCPUPageCounter struct{}

// PageCount returns the number of pages in the document.
func (PDFCPUPageCounter) PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count: %w", err)
	}
	return n, nil
}
