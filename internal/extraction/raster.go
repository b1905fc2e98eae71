package extraction

import (
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"
)

// DefaultDPI is the rendering resolution for recognition.
const DefaultDPI = 300

// PopplerRasterizer renders pages with pdftoppm (poppler-utils).
type PopplerRasterizer struct {
	DPI    int    // 0 uses DefaultDPI
	Binary string // defaults to "pdftoppm" on PATH
}

// Available reports whether the pdftoppm binary can be found.
func (p PopplerRasterizer) Available() bool {
	_, err := exec.LookPath(p.binary())
	return err == nil
}

// RenderPages writes the document to a temp dir and renders one page at a
// time, in page order.
func (p PopplerRasterizer) RenderPages(ctx context.Context, pdf []byte, pageCount int, visit func(page int, img image.Image) error) error {
	if pageCount <= 0 {
		return nil
	}

	tmpDir, err := os.MkdirTemp("", "invoicex-pages-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	pdfPath := filepath.Join(tmpDir, "document.pdf")
	if err := os.WriteFile(pdfPath, pdf, 0o600); err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}

	for page := 1; page <= pageCount; page++ {
		img, err := p.renderPage(ctx, pdfPath, tmpDir, page)
		if err != nil {
			return fmt.Errorf("failed to render page %d: %w", page, err)
		}
		if err := visit(page, img); err != nil {
			return err
		}
	}
	return nil
}

func (p PopplerRasterizer) renderPage(ctx context.Context, pdfPath, outDir string, page int) (image.Image, error) {
	outputPrefix := filepath.Join(outDir, fmt.Sprintf("page_%04d", page))

	// -singlefile: don't add page number suffix
	pageStr := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx, p.binary(),
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(p.dpi()),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	// pdftoppm with -singlefile creates: <prefix>.png
	srcPath := outputPrefix + ".png"
	defer os.Remove(srcPath)

	img, err := imaging.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create a readable image: %w", err)
	}
	return img, nil
}

func (p PopplerRasterizer) binary() string {
	if p.Binary != "" {
		return p.Binary
	}
	return "pdftoppm"
}

func (p PopplerRasterizer) dpi() int {
	if p.DPI > 0 {
		return p.DPI
	}
	return DefaultDPI
}
