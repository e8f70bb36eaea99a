// Package indexer renders catalog PDFs into page images, embeds every page and writes
// the embedding database.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/miru/internal/embedding"
	"github.com/hyperjump/miru/internal/fileid"
	"github.com/hyperjump/miru/internal/models"
	"github.com/hyperjump/miru/internal/render"
	"github.com/hyperjump/miru/internal/storage"
)

// ErrModelMismatch is returned when appending to a database built with another model.
var ErrModelMismatch = errors.New("database was built with a different model")

// Paths locates the inputs and outputs of an ingestion run.
type Paths struct {
	// KnowledgeBase is the directory holding catalog PDFs.
	KnowledgeBase string
	// OutputDir receives one directory of page JPEGs per catalog.
	OutputDir string
	// Database is the embedding database file.
	Database string
}

// Indexer builds the embedding database from a directory of catalog PDFs.
type Indexer struct {
	embedder    embedding.Embedder
	rasterizer  render.Rasterizer
	paths       Paths
	maxSide     int
	jpegQuality int
	workers     int
	recursive   bool
	appendMode  bool
	replace     bool
	logger      *zap.Logger

	// mu serializes Rebuild so concurrent triggers never interleave writes to the database.
	mu sync.Mutex
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithWorkers sets how many documents are rendered and embedded concurrently.
func WithWorkers(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// WithMaxSide bounds the longest side of stored page images.
func WithMaxSide(n int) IndexerOption {
	return func(idx *Indexer) { idx.maxSide = n }
}

// WithJPEGQuality sets the quality of stored page images.
func WithJPEGQuality(q int) IndexerOption {
	return func(idx *Indexer) { idx.jpegQuality = q }
}

// WithRecursive makes PDF discovery descend into subdirectories.
func WithRecursive(r bool) IndexerOption {
	return func(idx *Indexer) { idx.recursive = r }
}

// WithAppend makes Rebuild add to the existing database instead of starting empty.
func WithAppend(a bool) IndexerOption {
	return func(idx *Indexer) { idx.appendMode = a }
}

// WithReplace lets a catalog replace an existing one with the same name.
func WithReplace(r bool) IndexerOption {
	return func(idx *Indexer) { idx.replace = r }
}

// NewIndexer creates an indexer.
func NewIndexer(embedder embedding.Embedder, rasterizer render.Rasterizer, paths Paths, opts ...IndexerOption) *Indexer {
	idx := &Indexer{
		embedder:    embedder,
		rasterizer:  rasterizer,
		paths:       paths,
		maxSide:     render.DefaultMaxSide,
		jpegQuality: render.DefaultJPEGQuality,
		workers:     1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// IndexCatalog renders every page of pdfPath, stores each page as a bounded JPEG under
// the output directory and embeds the stored bytes. Any page failure fails the catalog.
func (idx *Indexer) IndexCatalog(ctx context.Context, pdfPath string) (*models.Catalog, error) {
	c := &models.Catalog{
		Name:       fileid.CatalogName(pdfPath),
		SourceFile: filepath.Base(pdfPath),
		Pages:      []models.Page{},
	}
	err := idx.rasterizer.Rasterize(ctx, pdfPath, func(n int, img image.Image) error {
		thumb := render.Thumbnail(img, idx.maxSide)
		data, err := render.JPEGBytes(thumb, idx.jpegQuality)
		if err != nil {
			return fmt.Errorf("page %d: encode: %w", n, err)
		}
		imagePath := fileid.PageImagePath(idx.paths.OutputDir, pdfPath, n)
		if err := writeFile(imagePath, data); err != nil {
			return fmt.Errorf("page %d: %w", n, err)
		}
		vec, err := idx.embedder.EmbedImage(ctx, data)
		if err != nil {
			return fmt.Errorf("page %d: embed: %w", n, err)
		}
		c.Pages = append(c.Pages, models.Page{PageNumber: n, ImagePath: imagePath, Embedding: vec})
		if n%10 == 0 {
			idx.logger.Debug("indexer progress", zap.String("catalog", c.Name), zap.Int("pages", n))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(c.Pages) == 0 {
		return nil, render.ErrNoPages
	}
	return c, nil
}

// Build indexes every PDF in the knowledge base into base, or into a new database when
// base is nil. Documents that fail to render or embed are skipped and listed in the
// report. Documents are processed concurrently but merged in file name order, so the
// result does not depend on scheduling. base is not modified.
func (idx *Indexer) Build(ctx context.Context, base *models.Database) (*models.Database, *Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.New().String(), Model: idx.embedder.Model()}
	logger := idx.logger.With(zap.String("run_id", report.RunID))

	var db *models.Database
	if base == nil {
		db = storage.New(idx.embedder.Model(), time.Now().UTC())
	} else {
		if base.Model != idx.embedder.Model() {
			return nil, nil, fmt.Errorf("%w: database %q, embedder %q", ErrModelMismatch, base.Model, idx.embedder.Model())
		}
		clone := *base
		clone.Catalogs = append([]models.Catalog(nil), base.Catalogs...)
		db = &clone
	}

	files, err := ListPDFs(idx.paths.KnowledgeBase, idx.recursive)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("ingestion started",
		zap.String("knowledge_base", idx.paths.KnowledgeBase),
		zap.Int("documents", len(files)),
		zap.Int("workers", idx.workers))

	type outcome struct {
		catalog *models.Catalog
		err     error
	}
	outcomes := make([]outcome, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for i, path := range files {
		g.Go(func() error {
			c, err := idx.IndexCatalog(gctx, path)
			outcomes[i] = outcome{c, err}
			return nil
		})
	}
	_ = g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	for i, path := range files {
		o := outcomes[i]
		if o.err == nil {
			o.err = storage.AppendCatalog(db, *o.catalog, idx.replace)
		}
		if o.err != nil {
			logger.Warn("skipping document", zap.String("pdf", path), zap.Error(o.err))
			report.Skipped = append(report.Skipped, SkippedDocument{Path: path, Reason: o.err.Error()})
			continue
		}
		report.Catalogs++
		report.Pages += len(o.catalog.Pages)
		logger.Info("catalog indexed",
			zap.String("catalog", o.catalog.Name),
			zap.String("source_file", o.catalog.SourceFile),
			zap.Int("pages", len(o.catalog.Pages)))
	}

	report.TotalCatalogs = len(db.Catalogs)
	report.TotalPages = db.TotalPages()
	report.DurationMs = time.Since(start).Milliseconds()
	return db, report, nil
}

// Rebuild runs Build and saves the result atomically. In append mode the existing
// database is the base; a missing database starts empty. Calls are serialized.
func (idx *Indexer) Rebuild(ctx context.Context) (*Report, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	var base *models.Database
	if idx.appendMode {
		db, err := storage.Load(idx.paths.Database)
		switch {
		case err == nil:
			base = db
		case errors.Is(err, storage.ErrNotFound):
		default:
			return nil, err
		}
	}

	db, report, err := idx.Build(ctx, base)
	if err != nil {
		return nil, err
	}
	if err := storage.Save(db, idx.paths.Database); err != nil {
		return nil, fmt.Errorf("save database: %w", err)
	}
	report.Database = idx.paths.Database
	if info, err := os.Stat(idx.paths.Database); err == nil {
		report.DatabaseBytes = info.Size()
	}
	idx.logger.Info("ingestion finished",
		zap.String("run_id", report.RunID),
		zap.Int("catalogs", report.Catalogs),
		zap.Int("pages", report.Pages),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int64("database_bytes", report.DatabaseBytes),
		zap.Int64("duration_ms", report.DurationMs))
	return report, nil
}

// ListPDFs returns the PDF files in dir sorted by path. Subdirectories are searched only
// when recursive is set.
func ListPDFs(dir string, recursive bool) ([]string, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat knowledge base: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}
	var files []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if !fileid.IsPDF(path) {
			return nil
		}
		// Resolve symlinks so only regular files are indexed.
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write image: %w", err)
	}
	return nil
}
