package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestServerCfg_ResolvedAPIKey(t *testing.T) {
	t.Setenv("TEST_INVOICEX_KEY", "k-123")

	cfg := ServerCfg{APIKey: "${TEST_INVOICEX_KEY}"}
	if got := cfg.ResolvedAPIKey(); got != "k-123" {
		t.Errorf("ResolvedAPIKey() = %q, want %q", got, "k-123")
	}
	if got := (ServerCfg{APIKey: "direct"}).ResolvedAPIKey(); got != "direct" {
		t.Errorf("ResolvedAPIKey() = %q, want %q", got, "direct")
	}
}

func TestServerCfg_MaxFileSizeBytes(t *testing.T) {
	if got := (ServerCfg{MaxFileSizeMB: 10}).MaxFileSizeBytes(); got != 10*1024*1024 {
		t.Errorf("MaxFileSizeBytes() = %d, want %d", got, 10*1024*1024)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("uses defaults without a file", func(t *testing.T) {
		mgr, err := NewManager(writeConfig(t, "{}\n"))
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()

		if cfg.Server.Port != "8000" {
			t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "8000")
		}
		if cfg.Server.MaxFileSizeMB != 10 {
			t.Errorf("Server.MaxFileSizeMB = %d, want 10", cfg.Server.MaxFileSizeMB)
		}
		if cfg.Server.RequestTimeout != 120*time.Second {
			t.Errorf("Server.RequestTimeout = %v, want 2m0s", cfg.Server.RequestTimeout)
		}
		if cfg.Extraction.MinTextCharsPerPage != 50 {
			t.Errorf("MinTextCharsPerPage = %d, want 50", cfg.Extraction.MinTextCharsPerPage)
		}
		if len(cfg.Extraction.OCR.Languages) != 7 {
			t.Errorf("OCR.Languages = %v, want 7 languages", cfg.Extraction.OCR.Languages)
		}
		if !cfg.Extraction.OCR.Preprocess {
			t.Error("OCR.Preprocess = false, want true")
		}
		if cfg.Model.Server.Managed {
			t.Error("Model.Server.Managed = true, want false")
		}
		if cfg.Model.Name != "qwen2.5-1.5b-instruct" {
			t.Errorf("Model.Name = %q", cfg.Model.Name)
		}
		if cfg.Log.Level != "info" || cfg.Log.Format != "json" {
			t.Errorf("Log = %+v, want info/json", cfg.Log)
		}
	})

	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
server:
  port: "9000"
  max_file_size_mb: 2
extraction:
  min_text_chars_per_page: 80
  ocr:
    languages: [eng, deu]
model:
  base_url: http://model:8080/v1
`)
		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()

		if cfg.Server.Port != "9000" {
			t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "9000")
		}
		if cfg.Server.MaxFileSizeMB != 2 {
			t.Errorf("Server.MaxFileSizeMB = %d, want 2", cfg.Server.MaxFileSizeMB)
		}
		if cfg.Extraction.MinTextCharsPerPage != 80 {
			t.Errorf("MinTextCharsPerPage = %d, want 80", cfg.Extraction.MinTextCharsPerPage)
		}
		if got := strings.Join(cfg.Extraction.OCR.Languages, ","); got != "eng,deu" {
			t.Errorf("OCR.Languages = %q, want eng,deu", got)
		}
		if cfg.Model.BaseURL != "http://model:8080/v1" {
			t.Errorf("Model.BaseURL = %q", cfg.Model.BaseURL)
		}
		// Unset keys keep their defaults.
		if cfg.Extraction.OCR.DPI != 300 {
			t.Errorf("OCR.DPI = %d, want 300", cfg.Extraction.OCR.DPI)
		}
		if mgr.ConfigFileUsed() != configFile {
			t.Errorf("ConfigFileUsed() = %q, want %q", mgr.ConfigFileUsed(), configFile)
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		t.Setenv("INVOICEX_SERVER_PORT", "7000")
		t.Setenv("INVOICEX_MODEL_SERVER_MANAGED", "true")
		t.Setenv("INVOICEX_LOG_LEVEL", "debug")

		mgr, err := NewManager(writeConfig(t, "server:\n  port: \"9000\"\n"))
		if err != nil {
			t.Fatalf("NewManager() error = %v", err)
		}
		cfg := mgr.Get()

		if cfg.Server.Port != "7000" {
			t.Errorf("Server.Port = %q, want %q", cfg.Server.Port, "7000")
		}
		if !cfg.Model.Server.Managed {
			t.Error("Model.Server.Managed = false, want true")
		}
		if cfg.Log.Level != "debug" {
			t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
		}
	})

	t.Run("rejects invalid values", func(t *testing.T) {
		_, err := NewManager(writeConfig(t, "server:\n  max_file_size_mb: 0\nlog:\n  level: loud\n"))
		if err == nil {
			t.Fatal("NewManager() error = nil, want validation error")
		}
		for _, want := range []string{"max_file_size_mb", "log.level"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("error %q does not mention %s", err, want)
			}
		}
	})

	t.Run("malformed file", func(t *testing.T) {
		if _, err := NewManager(writeConfig(t, "server: [unclosed\n")); err == nil {
			t.Fatal("NewManager() error = nil, want parse error")
		}
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	content := string(data)
	for _, want := range []string{"# invoicex configuration", "api_key: ${INVOICEX_API_KEY}", "request_timeout: 2m0s", "min_text_chars_per_page: 50"} {
		if !strings.Contains(content, want) {
			t.Errorf("written config missing %q:\n%s", want, content)
		}
	}

	// The written file loads back to the defaults.
	mgr, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager(written) error = %v", err)
	}
	cfg := mgr.Get()
	if cfg.Server.RequestTimeout != 120*time.Second {
		t.Errorf("Server.RequestTimeout = %v, want 2m0s", cfg.Server.RequestTimeout)
	}
	if cfg.Model.Server.Filename != "qwen2.5-1.5b-instruct-q4_k_m.gguf" {
		t.Errorf("Model.Server.Filename = %q", cfg.Model.Server.Filename)
	}
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Log.Level
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "log:\n  level: info\n")

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if got := mgr.Get().Log.Level; got != "info" {
		t.Errorf("initial value mismatch: expected info, got %s", got)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Log.Level)
	})

	mgr.WatchConfig(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Log.Level; got != "debug" {
		t.Errorf("config not updated: expected debug, got %s", got)
	}
	if v := lastValue.Load(); v != "debug" {
		t.Errorf("callback received wrong value: expected debug, got %v", v)
	}
}
