package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/miru/internal/config"
	"github.com/hyperjump/miru/internal/embedding"
	"github.com/hyperjump/miru/internal/indexer"
	"github.com/hyperjump/miru/internal/render"
	"github.com/hyperjump/miru/internal/search"
	"github.com/hyperjump/miru/internal/storage"
)

// Components holds initialized services.
type Components struct {
	Cache      *storage.SQLiteCache
	Embedder   embedding.Embedder
	Rasterizer *render.Poppler
	Indexer    *indexer.Indexer
	Service    *search.Service
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger, extra ...indexer.IndexerOption) (*Components, error) {
	c := &Components{}

	var store embedding.Store
	if cfg.Embedding.CachePath != "" {
		cache, err := storage.NewSQLiteCache(cfg.Embedding.CachePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}
		c.Cache = cache
		store = cache
	}

	embedder, err := embedding.New(embedding.Config{
		Provider:    cfg.Embedding.Provider,
		Model:       cfg.Embedding.Model,
		ModelPath:   cfg.Embedding.ModelPath,
		LibraryPath: cfg.Embedding.LibraryPath,
		Dimensions:  cfg.Embedding.Dimensions,
		BaseURL:     cfg.Embedding.BaseURL,
		APIKey:      cfg.Embedding.APIKey,
		Timeout:     cfg.Embedding.Timeout,
		CacheSize:   cfg.Embedding.CacheSize,
	}, logger, store)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	c.Embedder = embedder

	c.Rasterizer = render.NewPoppler(
		render.WithBinary(cfg.Ingest.PdftoppmPath),
		render.WithDPI(cfg.Ingest.DPI),
		render.WithLogger(logger),
	)

	idxOpts := []indexer.IndexerOption{
		indexer.WithLogger(logger),
		indexer.WithWorkers(cfg.Ingest.Workers),
		indexer.WithMaxSide(cfg.Ingest.MaxSide),
		indexer.WithJPEGQuality(cfg.Ingest.JPEGQuality),
		indexer.WithRecursive(cfg.Ingest.Recursive),
		indexer.WithReplace(cfg.Ingest.Replace),
	}
	c.Indexer = indexer.NewIndexer(embedder, c.Rasterizer, indexer.Paths{
		KnowledgeBase: cfg.Paths.KnowledgeBase,
		OutputDir:     cfg.Paths.OutputDir,
		Database:      cfg.Paths.Database,
	}, append(idxOpts, extra...)...)

	c.Service = search.NewService(cfg.Paths.Database, embedder,
		search.WithMaxSide(cfg.Ingest.MaxSide),
		search.WithJPEGQuality(cfg.Ingest.JPEGQuality),
		search.WithDefaultTopK(cfg.Search.DefaultTopK),
		search.WithLogger(logger),
	)
	return c, nil
}
