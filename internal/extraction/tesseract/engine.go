// Package tesseract recognizes page images with Tesseract through gosseract.
// It needs cgo and the tesseract/leptonica libraries, so it lives apart from
// the rest of the extraction package.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/jackzampolin/invoicex/internal/extraction"
)

// DefaultLanguages covers the invoice languages the date normalizer knows.
var DefaultLanguages = []string{"eng", "deu", "fra", "nld", "ita", "spa", "nor"}

// Engine implements extraction.Recognizer.
type Engine struct {
	languages     []string
	dpi           int
	clientFactory func() *gosseract.Client
}

// New creates an Engine. Empty languages use DefaultLanguages.
func New(languages []string, dpi int) *Engine {
	if len(languages) == 0 {
		languages = DefaultLanguages
	}
	return &Engine{
		languages:     languages,
		dpi:           dpi,
		clientFactory: gosseract.NewClient,
	}
}

// Name returns the engine identifier.
func (e *Engine) Name() string { return "tesseract" }

// Recognize returns the text of one page in reading order.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", fmt.Errorf("encode page image: %w", err)
	}

	c := e.clientFactory()
	defer c.Close()

	if err := c.SetLanguage(e.languages...); err != nil {
		return "", fmt.Errorf("set languages: %w", err)
	}
	if e.dpi > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(e.dpi)); err != nil {
			return "", fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return "", fmt.Errorf("set image: %w", err)
	}
	text, err := c.Text()
	if err != nil {
		return "", fmt.Errorf("recognize text: %w", err)
	}
	return strings.TrimSpace(text), nil
}

var _ extraction.Recognizer = (*Engine)(nil)
