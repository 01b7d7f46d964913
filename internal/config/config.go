// Package config provides configuration loading and structs for the Mondai server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Storage    StorageConfig    `yaml:"storage"`
	OpenAI     OpenAIConfig     `yaml:"openai"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Generation GenerationConfig `yaml:"generation"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Stats      StatsConfig      `yaml:"stats"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds paths for the database, index snapshots, and uploads.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	IndexDir     string `yaml:"index_dir"`
	UploadDir    string `yaml:"upload_dir"`
}

// OpenAIConfig holds settings for the embedding and generative services.
// APIKey falls back to the OPENAI_API_KEY environment variable when empty.
type OpenAIConfig struct {
	APIKey              string  `yaml:"api_key"`
	BaseURL             string  `yaml:"base_url"`
	EmbeddingModel      string  `yaml:"embedding_model"`
	EmbeddingDimensions int     `yaml:"embedding_dimensions"`
	ChatModel           string  `yaml:"chat_model"`
	Temperature         float64 `yaml:"temperature"`
	RequestTimeoutSecs  int     `yaml:"request_timeout_seconds"`
	CacheSize           int     `yaml:"cache_size"`
}

// RequestTimeout returns the per-call timeout for external service requests.
func (o *OpenAIConfig) RequestTimeout() time.Duration {
	return time.Duration(o.RequestTimeoutSecs) * time.Second
}

// IngestConfig holds chunking settings (in runes).
type IngestConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// GenerationConfig holds Q&A generation bounds and thresholds.
type GenerationConfig struct {
	MaxPerRequest      int     `yaml:"max_per_request"`
	MaxParseRetries    int     `yaml:"max_parse_retries"`
	MaxRounds          int     `yaml:"max_rounds"`
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
}

// EvaluationConfig holds the semantic answer-match fallback threshold.
type EvaluationConfig struct {
	SemanticThreshold float64 `yaml:"semantic_threshold"`
}

// StatsConfig holds the stats cache time-to-live.
type StatsConfig struct {
	CacheTTLSecs int `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the stats cache TTL as a duration.
func (s *StatsConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSecs) * time.Second
}

// WatchConfig holds upload-directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.IndexDir = expandPath(cfg.Storage.IndexDir, configDir)
	cfg.Storage.UploadDir = expandPath(cfg.Storage.UploadDir, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
