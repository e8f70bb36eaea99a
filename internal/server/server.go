// Package server provides the HTTP API for miru.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/miru/internal/config"
	"github.com/hyperjump/miru/internal/indexer"
	"github.com/hyperjump/miru/internal/models"
)

// Searcher answers queries. *search.Service implements it.
type Searcher interface {
	Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error)
	SearchImage(ctx context.Context, image []byte, topK int) (*models.SearchResponse, error)
}

// Rebuilder rebuilds the embedding database. *indexer.Indexer implements it.
type Rebuilder interface {
	Rebuild(ctx context.Context) (*indexer.Report, error)
}

// Server is the HTTP server for the miru API.
type Server struct {
	searcher  Searcher
	rebuilder Rebuilder
	config    *config.Config
	logger    *zap.Logger
	server    *http.Server

	// ctx bounds background reindex runs; cancelled by Stop.
	ctx    context.Context
	cancel context.CancelFunc

	reindexMu  sync.Mutex
	reindexing bool
	lastReport *indexer.Report
	lastError  string
	lastRunAt  time.Time
}

// NewServer creates a server. rebuilder may be nil, in which case reindex requests get 501.
func NewServer(searcher Searcher, rebuilder Rebuilder, cfg *config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		searcher:  searcher,
		rebuilder: rebuilder,
		config:    cfg,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Router returns the HTTP handler with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		r.Post("/api/v1/search", s.handleSearch)
		r.Get("/api/v1/status", s.handleStatus)
		r.Get("/api/v1/catalogs", s.handleCatalogs)
		r.Get("/health", s.handleHealth)
	})
	// A synchronous rebuild can outlive the request timeout.
	r.Post("/api/v1/reindex", s.handleReindex)
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server and cancels any background reindex.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
