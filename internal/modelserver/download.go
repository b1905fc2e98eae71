package modelserver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
)

// DefaultHubURL is the Hugging Face host model files are fetched from.
const DefaultHubURL = "https://huggingface.co"

// Downloader fetches GGUF model files into a local directory.
type Downloader struct {
	HubURL     string
	HTTPClient *http.Client
	Attempts   uint
	Delay      time.Duration // between attempts
	Logger     *slog.Logger
}

// NewDownloader creates a downloader against the public hub.
func NewDownloader(logger *slog.Logger) *Downloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Downloader{
		HubURL:     DefaultHubURL,
		HTTPClient: &http.Client{},
		Attempts:   3,
		Delay:      2 * time.Second,
		Logger:     logger,
	}
}

// ArtifactURL returns the resolve URL for a file in a hub repository.
func (d *Downloader) ArtifactURL(repoID, filename string) string {
	return fmt.Sprintf("%s/%s/resolve/main/%s",
		strings.TrimRight(d.HubURL, "/"), repoID, url.PathEscape(filename))
}

// Ensure returns the local path of filename in dir, downloading it first
// when it is missing or empty. The file only appears under its final name
// once the download completed.
func (d *Downloader) Ensure(ctx context.Context, repoID, filename, dir string) (string, error) {
	if repoID == "" || filename == "" {
		return "", fmt.Errorf("repo id and filename are required")
	}
	dest := filepath.Join(dir, filename)
	if info, err := os.Stat(dest); err == nil && info.Size() > 0 {
		d.Logger.Debug("model file present", "path", dest, "bytes", info.Size())
		return dest, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create model directory: %w", err)
	}

	src := d.ArtifactURL(repoID, filename)
	d.Logger.Info("downloading model", "url", src, "path", dest)
	start := time.Now()

	var written int64
	err := retry.Do(
		func() error {
			n, err := d.fetch(ctx, src, dest)
			written = n
			return err
		},
		retry.Context(ctx),
		retry.Attempts(d.attempts()),
		retry.Delay(d.Delay),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", src, err)
	}

	d.Logger.Info("model downloaded", "path", dest, "bytes", written, "duration", time.Since(start))
	return dest, nil
}

func (d *Downloader) attempts() uint {
	if d.Attempts == 0 {
		return 1
	}
	return d.Attempts
}

// fetch streams src into a temp file next to dest and renames it into place.
func (d *Downloader) fetch(ctx context.Context, src, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return 0, retry.Unrecoverable(err)
	}

	client := d.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status: %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return 0, retry.Unrecoverable(err)
		}
		return 0, err
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, retry.Unrecoverable(fmt.Errorf("failed to create temp file: %w", err))
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	n, copyErr := io.Copy(tmp, resp.Body)
	closeErr := tmp.Close()
	if err := errors.Join(copyErr, closeErr); err != nil {
		cleanup()
		return 0, fmt.Errorf("failed to write model file: %w", err)
	}
	if n == 0 {
		cleanup()
		return 0, fmt.Errorf("empty response body")
	}

	if err := os.Rename(tmpName, dest); err != nil {
		cleanup()
		return 0, retry.Unrecoverable(fmt.Errorf("failed to move model file into place: %w", err))
	}
	return n, nil
}
