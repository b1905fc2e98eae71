// Package extraction acquires the text of a PDF, either from its embedded
// text layer or by rendering and recognizing every page.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Strategy names how the text of a document was acquired.
type Strategy string

const (
	StrategyText Strategy = "text"
	StrategyOCR  Strategy = "ocr"
)

// DefaultMinTextCharsPerPage is the average characters per page at or above
// which a document counts as text based.
const DefaultMinTextCharsPerPage = 50

// pageSeparator joins page texts in page order.
const pageSeparator = "\n\n"

var (
	// ErrEmptyDocument is returned for zero-length input.
	ErrEmptyDocument = errors.New("empty document")

	// ErrUnreadableDocument wraps parser failures on structurally broken PDFs.
	ErrUnreadableDocument = errors.New("unreadable document")
)

// Outcome is the acquired text and how it was acquired.
type Outcome struct {
	Text     string   `json:"text"`
	Strategy Strategy `json:"strategy"`
}

// PageCounter reports the number of pages and fails on unreadable documents.
type PageCounter interface {
	PageCount(pdf []byte) (int, error)
}

// TextSource returns the embedded text of each page in page order.
type TextSource interface {
	PageTexts(pdf []byte) ([]string, error)
}

// Rasterizer renders pages in order and hands each image to visit.
type Rasterizer interface {
	RenderPages(ctx context.Context, pdf []byte, pageCount int, visit func(page int, img image.Image) error) error
}

// Recognizer runs optical character recognition on one page image.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (string, error)
}

// RouterConfig wires the router's collaborators.
type RouterConfig struct {
	Pages      PageCounter
	Text       TextSource
	Rasterizer Rasterizer
	Recognizer Recognizer

	MinTextCharsPerPage int  // 0 uses DefaultMinTextCharsPerPage
	Preprocess          bool // clean page images before recognition
	Logger              *slog.Logger
}

// Router picks the acquisition strategy for a document and runs it.
type Router struct {
	pages      PageCounter
	text       TextSource
	rasterizer Rasterizer
	recognizer Recognizer
	minChars   int
	preprocess bool
	logger     *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(cfg RouterConfig) *Router {
	if cfg.MinTextCharsPerPage <= 0 {
		cfg.MinTextCharsPerPage = DefaultMinTextCharsPerPage
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Router{
		pages:      cfg.Pages,
		text:       cfg.Text,
		rasterizer: cfg.Rasterizer,
		recognizer: cfg.Recognizer,
		minChars:   cfg.MinTextCharsPerPage,
		preprocess: cfg.Preprocess,
		logger:     cfg.Logger,
	}
}

// Route acquires the text of pdf. Empty input returns ErrEmptyDocument and a
// document the parser rejects returns an error wrapping ErrUnreadableDocument.
func (r *Router) Route(ctx context.Context, pdf []byte) (Outcome, error) {
	if len(pdf) == 0 {
		return Outcome{}, ErrEmptyDocument
	}

	pageCount, err := r.pages.PageCount(pdf)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %w", ErrUnreadableDocument, err)
	}

	pageTexts, err := r.text.PageTexts(pdf)
	if err != nil {
		// The page counter accepted the document, so a missing text layer
		// only means the scanned path is taken.
		r.logger.Debug("embedded text unavailable", "error", err)
		pageTexts = nil
	}
	text := joinPages(pageTexts, pageCount)

	if isTextBased(text, pageCount, r.minChars) {
		r.logger.Debug("using embedded text", "pages", pageCount, "chars", utf8.RuneCountInString(text))
		return Outcome{Text: text, Strategy: StrategyText}, nil
	}

	r.logger.Debug("using ocr", "pages", pageCount, "chars", utf8.RuneCountInString(text))
	ocrText, err := r.recognize(ctx, pdf, pageCount)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Text: ocrText, Strategy: StrategyOCR}, nil
}

func (r *Router) recognize(ctx context.Context, pdf []byte, pageCount int) (string, error) {
	pages := make([]string, 0, pageCount)
	err := r.rasterizer.RenderPages(ctx, pdf, pageCount, func(page int, img image.Image) error {
		if r.preprocess {
			img = Preprocess(img)
		}
		text, err := r.recognizer.Recognize(ctx, img)
		if err != nil {
			return fmt.Errorf("recognize page %d: %w", page, err)
		}
		pages = append(pages, strings.TrimSpace(text))
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.Join(pages, pageSeparator), nil
}

// joinPages joins exactly pageCount page texts, padding missing pages with
// empty strings so the separator count matches the page count.
func joinPages(texts []string, pageCount int) string {
	if len(texts) < pageCount {
		padded := make([]string, pageCount)
		copy(padded, texts)
		texts = padded
	}
	return strings.Join(texts[:pageCount], pageSeparator)
}

// isTextBased reports whether the average characters per page reaches the
// threshold. A document with no pages is never text based.
func isTextBased(text string, pageCount, minCharsPerPage int) bool {
	if pageCount <= 0 {
		return false
	}
	perPage := float64(utf8.RuneCountInString(text)) / float64(pageCount)
	return perPage >= float64(minCharsPerPage)
}
