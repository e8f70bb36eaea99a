package embedding

import (
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Providers accepted by New.
const (
	ProviderONNX   = "onnx"
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"
)

// Config selects and configures an embedder.
type Config struct {
	Provider    string
	Model       string
	ModelPath   string
	LibraryPath string
	Dimensions  int
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	CacheSize   int
}

// New builds the configured embedder wrapped in a CachedEmbedder. When the ONNX runtime
// cannot be loaded it falls back to a MockEmbedder; the mock reports a different model,
// so searches against a database built by the real encoder fail with a model mismatch
// instead of returning meaningless rankings.
func New(cfg Config, logger *zap.Logger, store Store) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var inner Embedder
	switch strings.ToLower(cfg.Provider) {
	case ProviderONNX, "":
		e, err := NewONNXEmbedder(ONNXConfig{
			ModelPath:   cfg.ModelPath,
			LibraryPath: cfg.LibraryPath,
			Model:       cfg.Model,
			Dimensions:  cfg.Dimensions,
		})
		if err != nil {
			logger.Warn("ONNX embedder unavailable, using mock embedder", zap.Error(err))
			inner = NewMockEmbedder(MockModel, cfg.Dimensions)
		} else {
			inner = e
		}
	case ProviderOpenAI:
		if cfg.Model == "" {
			return nil, fmt.Errorf("embedding model must be set for provider %q", cfg.Provider)
		}
		inner = NewRemoteEmbedder(RemoteConfig{
			BaseURL:    cfg.BaseURL,
			APIKey:     cfg.APIKey,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
			Timeout:    cfg.Timeout,
		})
	case ProviderMock:
		inner = NewMockEmbedder(cfg.Model, cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q (want onnx, openai or mock)", cfg.Provider)
	}

	logger.Info("embedder ready",
		zap.String("model", inner.Model()),
		zap.Int("dimensions", inner.Dimensions()))

	opts := []CacheOption{WithLogger(logger)}
	if store != nil {
		opts = append(opts, WithStore(store))
	}
	return NewCachedEmbedder(inner, cfg.CacheSize, opts...), nil
}
