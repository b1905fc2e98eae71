package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// Entry is one documented configuration key with its default value.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// DefaultEntries returns every configuration key in file order.
func DefaultEntries() []Entry {
	return []Entry{
		// ===================
		// Server
		// ===================
		{
			Key:         "server.host",
			Value:       "127.0.0.1",
			Description: "Address the HTTP API listens on",
		},
		{
			Key:         "server.port",
			Value:       "8000",
			Description: "Port the HTTP API listens on",
		},
		{
			Key:         "server.api_key",
			Value:       "${INVOICEX_API_KEY}",
			Description: "Shared secret expected in the X-API-Key header (uses environment variable)",
		},
		{
			Key:         "server.max_file_size_mb",
			Value:       10,
			Description: "Largest accepted upload in MiB",
		},
		{
			Key:         "server.request_timeout",
			Value:       120 * time.Second,
			Description: "Deadline for one extraction request",
		},

		// ===================
		// Extraction
		// ===================
		{
			Key:         "extraction.min_text_chars_per_page",
			Value:       50,
			Description: "Average characters per page at which the embedded text is used instead of OCR",
		},
		{
			Key:         "extraction.ocr.dpi",
			Value:       300,
			Description: "Resolution pages are rendered at before recognition",
		},
		{
			Key:         "extraction.ocr.languages",
			Value:       []string{"eng", "deu", "fra", "nld", "ita", "spa", "nor"},
			Description: "Tesseract language packs used for recognition",
		},
		{
			Key:         "extraction.ocr.preprocess",
			Value:       true,
			Description: "Convert pages to grayscale and sharpen them before recognition",
		},

		// ===================
		// Model
		// ===================
		{
			Key:         "model.base_url",
			Value:       "http://127.0.0.1:8081/v1",
			Description: "OpenAI-compatible endpoint serving the model",
		},
		{
			Key:         "model.name",
			Value:       "qwen2.5-1.5b-instruct",
			Description: "Model name sent with each request",
		},
		{
			Key:         "model.api_key",
			Value:       "",
			Description: "Bearer token for the model endpoint, if it needs one",
		},
		{
			Key:         "model.rate_limit",
			Value:       60,
			Description: "Requests per minute sent to the model",
		},
		{
			Key:         "model.timeout",
			Value:       120 * time.Second,
			Description: "HTTP timeout for one model request",
		},
		{
			Key:         "model.ready_timeout",
			Value:       300 * time.Second,
			Description: "How long to wait for the model endpoint to come up",
		},
		{
			Key:         "model.server.managed",
			Value:       false,
			Description: "Run llama.cpp in a Docker container and download the model on start",
		},
		{
			Key:         "model.server.image",
			Value:       "ghcr.io/ggml-org/llama.cpp:server",
			Description: "Docker image for the managed model server",
		},
		{
			Key:         "model.server.container_name",
			Value:       "invoicex-model",
			Description: "Container name for the managed model server",
		},
		{
			Key:         "model.server.port",
			Value:       "8081",
			Description: "Host port for the managed model server",
		},
		{
			Key:         "model.server.model_dir",
			Value:       "",
			Description: "Directory for downloaded model files (empty uses ~/.invoicex/models)",
		},
		{
			Key:         "model.server.repo_id",
			Value:       "Qwen/Qwen2.5-1.5B-Instruct-GGUF",
			Description: "Hugging Face repository holding the model file",
		},
		{
			Key:         "model.server.filename",
			Value:       "qwen2.5-1.5b-instruct-q4_k_m.gguf",
			Description: "Model file to download and serve",
		},
		{
			Key:         "model.server.context_size",
			Value:       4096,
			Description: "Context window passed to llama.cpp",
		},
		{
			Key:         "model.server.gpu_layers",
			Value:       0,
			Description: "Layers offloaded to the GPU",
		},

		// ===================
		// Logging
		// ===================
		{
			Key:         "log.level",
			Value:       "info",
			Description: "Log level: debug, info, warn or error (reloaded on config change)",
		},
		{
			Key:         "log.format",
			Value:       "json",
			Description: "Log format: json or text",
		},
	}
}

// GetDefault returns the default entry for a config key, or nil.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// DefaultValue returns the default for key or ErrNoDefault.
func DefaultValue(key string) (any, error) {
	if def := GetDefault(key); def != nil {
		return def.Value, nil
	}
	return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
}

// defaultDocument nests the dotted keys into an ordered YAML document.
func defaultDocument() yaml.MapSlice {
	var root yaml.MapSlice
	for _, entry := range DefaultEntries() {
		root = insertPath(root, strings.Split(entry.Key, "."), yamlValue(entry.Value))
	}
	return root
}

func insertPath(doc yaml.MapSlice, path []string, value any) yaml.MapSlice {
	if len(path) == 1 {
		return append(doc, yaml.MapItem{Key: path[0], Value: value})
	}
	for i, item := range doc {
		if item.Key == path[0] {
			child, _ := item.Value.(yaml.MapSlice)
			doc[i].Value = insertPath(child, path[1:], value)
			return doc
		}
	}
	return append(doc, yaml.MapItem{Key: path[0], Value: insertPath(nil, path[1:], value)})
}

func yamlValue(v any) any {
	if d, ok := v.(time.Duration); ok {
		return d.String()
	}
	return v
}
