package config

import "time"

// Defaults match the layout of the flow-builder deployment the catalogs come from.
const (
	DefaultKnowledgeBase = "/opt/flow-builder/data/knowledge-base"
	DefaultOutputDir     = "/opt/flow-builder/data/catalog-images"
	DefaultDatabase      = "/opt/flow-builder/data/visual-embeddings-db.json"
	DefaultModel         = "clip-ViT-B-32"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Paths.KnowledgeBase == "" {
		cfg.Paths.KnowledgeBase = DefaultKnowledgeBase
	}
	if cfg.Paths.OutputDir == "" {
		cfg.Paths.OutputDir = DefaultOutputDir
	}
	if cfg.Paths.Database == "" {
		cfg.Paths.Database = DefaultDatabase
	}
	if cfg.Embedding.Provider == "" {
		cfg.Embedding.Provider = "onnx"
	}
	if cfg.Embedding.Model == "" {
		cfg.Embedding.Model = DefaultModel
	}
	if cfg.Embedding.ModelPath == "" {
		cfg.Embedding.ModelPath = "/usr/local/var/miru/models/clip-vit-b-32-vision.onnx"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Embedding.Timeout == 0 {
		cfg.Embedding.Timeout = 60 * time.Second
	}
	if cfg.Ingest.DPI == 0 {
		cfg.Ingest.DPI = 150
	}
	if cfg.Ingest.MaxSide == 0 {
		cfg.Ingest.MaxSide = 800
	}
	if cfg.Ingest.JPEGQuality == 0 {
		cfg.Ingest.JPEGQuality = 85
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 1
	}
	if cfg.Ingest.PdftoppmPath == "" {
		cfg.Ingest.PdftoppmPath = "pdftoppm"
	}
	if cfg.Search.DefaultTopK == 0 {
		cfg.Search.DefaultTopK = 5
	}
	if cfg.Search.MaxBodyBytes == 0 {
		cfg.Search.MaxBodyBytes = 32 << 20
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
