// Package config provides configuration loading and structs for miru.
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
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Paths     PathsConfig     `yaml:"paths"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// PathsConfig locates the catalog PDFs, the rendered page images and the embedding database.
type PathsConfig struct {
	KnowledgeBase string `yaml:"knowledge_base"`
	OutputDir     string `yaml:"output_dir"`
	Database      string `yaml:"database"`
}

// EmbeddingConfig selects the embedding backend.
type EmbeddingConfig struct {
	// Provider is "onnx", "openai" or "mock".
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	ModelPath   string        `yaml:"model_path"`
	LibraryPath string        `yaml:"library_path"`
	Dimensions  int           `yaml:"dimensions"`
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	CacheSize   int           `yaml:"cache_size"`
	CachePath   string        `yaml:"cache_path"`
	Timeout     time.Duration `yaml:"timeout"`
}

// IngestConfig controls how PDFs become page images.
type IngestConfig struct {
	DPI          int    `yaml:"dpi"`
	MaxSide      int    `yaml:"max_side"`
	JPEGQuality  int    `yaml:"jpeg_quality"`
	Workers      int    `yaml:"workers"`
	PdftoppmPath string `yaml:"pdftoppm_path"`
	Recursive    bool   `yaml:"recursive"`
	Replace      bool   `yaml:"replace"`
}

// SearchConfig holds query settings.
type SearchConfig struct {
	DefaultTopK  int   `yaml:"default_top_k"`
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// WatchConfig controls rebuilding when the knowledge base changes (server mode).
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
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
	cfg.Paths.KnowledgeBase = expandPath(cfg.Paths.KnowledgeBase, configDir)
	cfg.Paths.OutputDir = expandPath(cfg.Paths.OutputDir, configDir)
	cfg.Paths.Database = expandPath(cfg.Paths.Database, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Embedding.CachePath != "" {
		cfg.Embedding.CachePath = expandPath(cfg.Embedding.CachePath, configDir)
	}

	return &cfg, nil
}

// Default returns the built-in configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path, creating the parent directory.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
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
