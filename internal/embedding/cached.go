package embedding

import (
	"context"

	"go.uber.org/zap"

	"github.com/hyperjump/miru/internal/fileid"
)

// Store persists embeddings across runs. storage.SQLiteCache implements it.
type Store interface {
	Get(ctx context.Context, model, key string) ([]float32, bool, error)
	Put(ctx context.Context, model, key string, vec []float32) error
}

// CachedEmbedder memoizes an Embedder by content hash, first in memory and then in an
// optional persistent Store. Store failures are logged and never fail an embedding.
type CachedEmbedder struct {
	Embedder
	memory *vectorCache
	store  Store
	logger *zap.Logger
}

// CacheOption configures a CachedEmbedder.
type CacheOption func(*CachedEmbedder)

// WithStore adds a persistent cache behind the in-memory one.
func WithStore(s Store) CacheOption {
	return func(c *CachedEmbedder) {
		c.store = s
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) CacheOption {
	return func(c *CachedEmbedder) {
		c.logger = l
	}
}

// NewCachedEmbedder wraps inner with an LRU of the given capacity.
func NewCachedEmbedder(inner Embedder, capacity int, opts ...CacheOption) *CachedEmbedder {
	c := &CachedEmbedder{
		Embedder: inner,
		memory:   newVectorCache(capacity),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EmbedImage returns the cached vector for identical image bytes or embeds and caches it.
func (c *CachedEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, ErrEmptyInput
	}
	hash := fileid.ContentHash(image)
	key := vectorKey{model: c.Model(), kind: "image", hash: hash}
	if v, ok := c.memory.get(key); ok {
		return v, nil
	}
	if c.store != nil {
		v, ok, err := c.store.Get(ctx, key.model, hash)
		if err != nil {
			c.logger.Warn("embedding cache read failed", zap.String("key", hash), zap.Error(err))
		} else if ok && len(v) == c.Dimensions() {
			c.memory.put(key, v)
			return v, nil
		}
	}

	v, err := c.Embedder.EmbedImage(ctx, image)
	if err != nil {
		return nil, err
	}
	c.memory.put(key, v)
	if c.store != nil {
		if err := c.store.Put(ctx, key.model, hash, v); err != nil {
			c.logger.Warn("embedding cache write failed", zap.String("key", hash), zap.Error(err))
		}
	}
	return v, nil
}

// EmbedText caches text vectors in memory only.
func (c *CachedEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	key := vectorKey{model: c.Model(), kind: "text", hash: fileid.ContentHash([]byte(text))}
	if v, ok := c.memory.get(key); ok {
		return v, nil
	}
	v, err := c.Embedder.EmbedText(ctx, text)
	if err != nil {
		return nil, err
	}
	c.memory.put(key, v)
	return v, nil
}

// Stats reports in-memory cache activity.
func (c *CachedEmbedder) Stats() CacheStats {
	return c.memory.stats()
}

// Close logs cache activity and closes the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	s := c.memory.stats()
	c.logger.Debug("embedding cache closed",
		zap.Int64("hits", s.Hits),
		zap.Int64("misses", s.Misses),
		zap.Int("entries", s.Entries))
	return c.Embedder.Close()
}
