package modelserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackzampolin/invoicex/internal/testutil"
)

func newTestDownloader(t *testing.T, handler http.HandlerFunc) (*Downloader, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	dl := NewDownloader(testutil.Logger(t))
	dl.HubURL = srv.URL
	dl.HTTPClient = srv.Client()
	dl.Attempts = 2
	dl.Delay = 10 * time.Millisecond
	return dl, &hits
}

func TestDownloader_ArtifactURL(t *testing.T) {
	dl := NewDownloader(nil)
	got := dl.ArtifactURL("Qwen/Qwen2.5-1.5B-Instruct-GGUF", "qwen2.5-1.5b-instruct-q4_k_m.gguf")
	want := "https://huggingface.co/Qwen/Qwen2.5-1.5B-Instruct-GGUF/resolve/main/qwen2.5-1.5b-instruct-q4_k_m.gguf"
	if got != want {
		t.Errorf("ArtifactURL() = %q, want %q", got, want)
	}
}

func TestDownloader_Ensure(t *testing.T) {
	t.Run("downloads missing file", func(t *testing.T) {
		var gotPath string
		dl, hits := newTestDownloader(t, func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			_, _ = w.Write([]byte("GGUF-model-bytes"))
		})
		dir := filepath.Join(t.TempDir(), "models")

		path, err := dl.Ensure(context.Background(), "org/repo", "m.gguf", dir)
		if err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
		if path != filepath.Join(dir, "m.gguf") {
			t.Errorf("Ensure() path = %q", path)
		}
		if gotPath != "/org/repo/resolve/main/m.gguf" {
			t.Errorf("request path = %q", gotPath)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("read downloaded file: %v", err)
		}
		if string(data) != "GGUF-model-bytes" {
			t.Errorf("downloaded content = %q", data)
		}
		if hits.Load() != 1 {
			t.Errorf("hits = %d, want 1", hits.Load())
		}

		// No temp files are left behind.
		entries, _ := os.ReadDir(dir)
		if len(entries) != 1 {
			t.Errorf("model dir has %d entries, want 1", len(entries))
		}
	})

	t.Run("skips existing file", func(t *testing.T) {
		dl, hits := newTestDownloader(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("unexpected download")
		})
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "m.gguf"), []byte("cached"), 0o644); err != nil {
			t.Fatal(err)
		}

		if _, err := dl.Ensure(context.Background(), "org/repo", "m.gguf", dir); err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
		if hits.Load() != 0 {
			t.Errorf("hits = %d, want 0", hits.Load())
		}
	})

	t.Run("not found is not retried", func(t *testing.T) {
		dl, hits := newTestDownloader(t, func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		})
		dir := t.TempDir()

		_, err := dl.Ensure(context.Background(), "org/repo", "missing.gguf", dir)
		if err == nil || !strings.Contains(err.Error(), "404") {
			t.Fatalf("Ensure() error = %v, want 404", err)
		}
		if hits.Load() != 1 {
			t.Errorf("hits = %d, want 1", hits.Load())
		}
		if _, err := os.Stat(filepath.Join(dir, "missing.gguf")); !os.IsNotExist(err) {
			t.Error("failed download left a file behind")
		}
	})

	t.Run("server errors are retried", func(t *testing.T) {
		var calls atomic.Int32
		dl, hits := newTestDownloader(t, func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte("ok"))
		})
		dl.Attempts = 3

		if _, err := dl.Ensure(context.Background(), "org/repo", "m.gguf", t.TempDir()); err != nil {
			t.Fatalf("Ensure() error = %v", err)
		}
		if hits.Load() != 2 {
			t.Errorf("hits = %d, want 2", hits.Load())
		}
	})

	t.Run("requires repo and filename", func(t *testing.T) {
		dl := NewDownloader(nil)
		if _, err := dl.Ensure(context.Background(), "", "m.gguf", t.TempDir()); err == nil {
			t.Error("Ensure() with empty repo should fail")
		}
	})
}
