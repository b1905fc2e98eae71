package config

import "time"

// Config holds invoicex configuration.
// Stored at: ~/.invoicex/config.yaml (or ./config.yaml, or --config)
type Config struct {
	Server     ServerCfg     `mapstructure:"server" yaml:"server"`
	Extraction ExtractionCfg `mapstructure:"extraction" yaml:"extraction"`
	Model      ModelCfg      `mapstructure:"model" yaml:"model"`
	Log        LogCfg        `mapstructure:"log" yaml:"log"`
}

// ServerCfg configures the HTTP API.
type ServerCfg struct {
	Host           string        `mapstructure:"host" yaml:"host"`
	Port           string        `mapstructure:"port" yaml:"port"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	MaxFileSizeMB  int           `mapstructure:"max_file_size_mb" yaml:"max_file_size_mb"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
}

// ExtractionCfg configures text acquisition.
type ExtractionCfg struct {
	MinTextCharsPerPage int    `mapstructure:"min_text_chars_per_page" yaml:"min_text_chars_per_page"`
	OCR                 OCRCfg `mapstructure:"ocr" yaml:"ocr"`
}

// OCRCfg configures rendering and recognition of scanned pages.
type OCRCfg struct {
	DPI        int      `mapstructure:"dpi" yaml:"dpi"`
	Languages  []string `mapstructure:"languages" yaml:"languages"`
	Preprocess bool     `mapstructure:"preprocess" yaml:"preprocess"`
}

// ModelCfg configures the OpenAI-compatible model endpoint.
type ModelCfg struct {
	BaseURL      string         `mapstructure:"base_url" yaml:"base_url"`
	Name         string         `mapstructure:"name" yaml:"name"`
	APIKey       string         `mapstructure:"api_key" yaml:"api_key"`       // supports ${ENV_VAR} syntax
	RateLimit    int            `mapstructure:"rate_limit" yaml:"rate_limit"` // requests per minute
	Timeout      time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	ReadyTimeout time.Duration  `mapstructure:"ready_timeout" yaml:"ready_timeout"`
	Server       ModelServerCfg `mapstructure:"server" yaml:"server"`
}

// ModelServerCfg configures the managed llama.cpp container.
type ModelServerCfg struct {
	// Managed runs the model server as a Docker container.
	Managed bool `mapstructure:"managed" yaml:"managed"`
	// Image is the Docker image to use (default: ghcr.io/ggml-org/llama.cpp:server)
	Image string `mapstructure:"image" yaml:"image"`
	// ContainerName is the Docker container name (default: invoicex-model)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Port is the host port to bind (default: 8081)
	Port string `mapstructure:"port" yaml:"port"`
	// ModelDir holds downloaded GGUF files. Empty means ~/.invoicex/models.
	ModelDir    string `mapstructure:"model_dir" yaml:"model_dir"`
	RepoID      string `mapstructure:"repo_id" yaml:"repo_id"`
	Filename    string `mapstructure:"filename" yaml:"filename"`
	ContextSize int    `mapstructure:"context_size" yaml:"context_size"`
	GPULayers   int    `mapstructure:"gpu_layers" yaml:"gpu_layers"`
}

// LogCfg configures the root logger.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // debug, info, warn, error
	Format string `mapstructure:"format" yaml:"format"` // json, text
}

// MaxFileSizeBytes returns the upload limit in bytes.
func (s ServerCfg) MaxFileSizeBytes() int64 {
	return int64(s.MaxFileSizeMB) * 1024 * 1024
}

// ResolvedAPIKey returns the API key with ${ENV_VAR} references expanded.
func (s ServerCfg) ResolvedAPIKey() string {
	return ResolveEnvVars(s.APIKey)
}

// ResolvedAPIKey returns the model API key with ${ENV_VAR} references expanded.
func (m ModelCfg) ResolvedAPIKey() string {
	return ResolveEnvVars(m.APIKey)
}
