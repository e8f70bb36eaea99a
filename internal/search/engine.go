// Package search ranks catalog pages by visual similarity to a query.
package search

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/miru/internal/models"
	"github.com/hyperjump/miru/internal/vector"
)

var (
	// ErrDimensionMismatch is returned when the query vector length differs from the database dimension.
	ErrDimensionMismatch = errors.New("query vector dimension mismatch")
	// ErrInvalidTopK is returned for a top_k that is not a positive integer.
	ErrInvalidTopK = errors.New("top_k must be a positive integer")
	// ErrModelMismatch is returned when the query embedder is not the model the database was built with.
	ErrModelMismatch = errors.New("query model differs from database model")
	// ErrEmptyQuery is returned for a query with no usable payload.
	ErrEmptyQuery = errors.New("empty query")
	// ErrInvalidQuery is returned for a malformed query document.
	ErrInvalidQuery = errors.New("invalid query")
)

// Engine ranks every page of a database against a query vector with a full scan.
// It never mutates the database and holds no per-query state, so one Engine can serve
// concurrent queries.
type Engine struct {
	ops vector.Ops
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithOps replaces the numeric backend used for dot products and norms.
func WithOps(ops vector.Ops) EngineOption {
	return func(e *Engine) {
		if ops != nil {
			e.ops = ops
		}
	}
}

// NewEngine returns an engine using float64 accumulation unless overridden.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{ops: vector.Float64Ops{}}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Rank scores every page of db by cosine similarity to query and returns the best
// min(topK, pages) matches, ordered by score descending, then catalog name and page
// number ascending. Pages with a degenerate vector score -Inf and sort last. An empty
// database yields an empty, non-nil result.
func (e *Engine) Rank(db *models.Database, query []float32, topK int) ([]models.Match, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if len(query) == 0 {
		return nil, ErrEmptyQuery
	}
	total := db.TotalPages()
	if total == 0 {
		return []models.Match{}, nil
	}
	if dim := db.Dimension(); len(query) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, database has %d", ErrDimensionMismatch, len(query), dim)
	}

	qNorm := e.ops.Norm(query)
	matches := make([]models.Match, 0, total)
	for _, c := range db.Catalogs {
		for _, p := range c.Pages {
			matches = append(matches, models.Match{
				Catalog:    c.Name,
				PageNumber: p.PageNumber,
				ImagePath:  p.ImagePath,
				SourceFile: c.SourceFile,
				Score:      vector.CosineWithNorm(e.ops, query, qNorm, p.Embedding),
			})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return less(&matches[i], &matches[j])
	})
	if topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func less(a, b *models.Match) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Catalog != b.Catalog {
		return a.Catalog < b.Catalog
	}
	return a.PageNumber < b.PageNumber
}
