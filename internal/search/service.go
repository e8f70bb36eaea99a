package search

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/miru/internal/embedding"
	"github.com/hyperjump/miru/internal/models"
	"github.com/hyperjump/miru/internal/render"
	"github.com/hyperjump/miru/internal/storage"
)

// Service answers queries against the database file. The database is loaded fresh for
// every query so a rebuild is picked up without restarting.
type Service struct {
	dbPath      string
	embedder    embedding.Embedder
	engine      *Engine
	maxSide     int
	jpegQuality int
	defaultTopK int
	logger      *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithEngine sets the ranking engine.
func WithEngine(e *Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithMaxSide sets the bound applied to query images before embedding.
func WithMaxSide(n int) Option {
	return func(s *Service) {
		s.maxSide = n
	}
}

// WithJPEGQuality sets the quality used when a query image has to be re-encoded.
func WithJPEGQuality(q int) Option {
	return func(s *Service) {
		if q > 0 && q <= 100 {
			s.jpegQuality = q
		}
	}
}

// WithDefaultTopK sets the result count for queries that omit top_k.
func WithDefaultTopK(k int) Option {
	return func(s *Service) {
		if k > 0 {
			s.defaultTopK = k
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// NewService returns a search service over the database at dbPath.
func NewService(dbPath string, embedder embedding.Embedder, opts ...Option) *Service {
	s := &Service{
		dbPath:      dbPath,
		embedder:    embedder,
		engine:      NewEngine(),
		maxSide:     render.DefaultMaxSide,
		jpegQuality: render.DefaultJPEGQuality,
		defaultTopK: models.DefaultTopK,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs a query document: an inline image payload or a text query.
func (s *Service) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	if q == nil {
		return nil, ErrEmptyQuery
	}
	if q.TopK < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, q.TopK)
	}
	if err := q.Validate(s.defaultTopK); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if q.Type() == models.QueryTypeText {
		return s.SearchText(ctx, q.Text, q.TopK)
	}
	image, err := DecodeImagePayload(q.Image)
	if err != nil {
		return nil, err
	}
	return s.SearchImage(ctx, image, q.TopK)
}

// SearchImage ranks pages against an encoded image. topK 0 means the default.
func (s *Service) SearchImage(ctx context.Context, image []byte, topK int) (*models.SearchResponse, error) {
	if len(image) == 0 {
		return nil, ErrEmptyQuery
	}
	prepared, err := s.prepareImage(image)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, models.QueryTypeImage, topK, func() ([]float32, error) {
		return s.embedder.EmbedImage(ctx, prepared)
	})
}

// SearchText ranks pages against a text description. The embedder must support text.
func (s *Service) SearchText(ctx context.Context, text string, topK int) (*models.SearchResponse, error) {
	if text == "" {
		return nil, ErrEmptyQuery
	}
	return s.run(ctx, models.QueryTypeText, topK, func() ([]float32, error) {
		return s.embedder.EmbedText(ctx, text)
	})
}

func (s *Service) run(ctx context.Context, queryType string, topK int, embed func() ([]float32, error)) (*models.SearchResponse, error) {
	start := time.Now()
	if topK == 0 {
		topK = s.defaultTopK
	}
	if topK < 0 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}

	db, err := storage.Load(s.dbPath)
	if err != nil {
		return nil, err
	}

	if model := s.embedder.Model(); db.Model != "" && model != db.Model {
		return nil, fmt.Errorf("%w: database built with %q, query embedded with %q", ErrModelMismatch, db.Model, model)
	}

	// The query is already decoded; only the model call is skipped for an empty database.
	matches := []models.Match{}
	if db.TotalPages() > 0 {
		vec, err := embed()
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if matches, err = s.engine.Rank(db, vec, topK); err != nil {
			return nil, err
		}
	}

	resp := &models.SearchResponse{
		Success:            true,
		QueryType:          queryType,
		TotalPagesSearched: db.TotalPages(),
		Results:            matches,
		QueryTime:          time.Since(start).Milliseconds(),
	}
	s.logger.Debug("search done",
		zap.String("query_type", queryType),
		zap.Int("top_k", topK),
		zap.Int("pages", resp.TotalPagesSearched),
		zap.Int("results", len(matches)),
		zap.Int64("query_time_ms", resp.QueryTime))
	return resp, nil
}

// prepareImage bounds the query image the way ingestion bounds page images. Images
// that already fit are embedded byte for byte, so querying with a stored page image
// reproduces its vector exactly.
func (s *Service) prepareImage(data []byte) ([]byte, error) {
	img, err := render.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	thumb := render.Thumbnail(img, s.maxSide)
	if thumb == img {
		return data, nil
	}
	var buf bytes.Buffer
	if err := render.EncodeJPEG(&buf, thumb, s.jpegQuality); err != nil {
		return nil, fmt.Errorf("encode query image: %w", err)
	}
	return buf.Bytes(), nil
}
