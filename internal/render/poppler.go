package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// DefaultDPI is the rasterization resolution for catalog pages.
const DefaultDPI = 150

// PageFunc receives each rendered page in order. Page numbers start at 1.
type PageFunc func(pageNumber int, img image.Image) error

// Rasterizer renders every page of a PDF, in page order.
type Rasterizer interface {
	Rasterize(ctx context.Context, pdfPath string, fn PageFunc) error
}

// Poppler rasterizes PDFs with the pdftoppm binary from poppler-utils.
type Poppler struct {
	binary string
	dpi    int
	logger *zap.Logger
}

// Option configures a Poppler rasterizer.
type Option func(*Poppler)

// WithBinary sets the pdftoppm executable (name on PATH or absolute path).
func WithBinary(path string) Option {
	return func(p *Poppler) {
		if path != "" {
			p.binary = path
		}
	}
}

// WithDPI sets the rendering resolution.
func WithDPI(dpi int) Option {
	return func(p *Poppler) {
		if dpi > 0 {
			p.dpi = dpi
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Poppler) {
		p.logger = l
	}
}

// NewPoppler returns a rasterizer using pdftoppm at DefaultDPI unless overridden.
func NewPoppler(opts ...Option) *Poppler {
	p := &Poppler{binary: "pdftoppm", dpi: DefaultDPI, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Available reports whether the pdftoppm binary can be found.
func (p *Poppler) Available() bool {
	_, err := exec.LookPath(p.binary)
	return err == nil
}

// Rasterize renders all pages of pdfPath into a temporary directory and calls fn for each
// page in order. Rendering stops at the first error returned by fn.
func (p *Poppler) Rasterize(ctx context.Context, pdfPath string, fn PageFunc) error {
	expected, err := PageCount(pdfPath)
	if err != nil {
		return err
	}

	dir, err := os.MkdirTemp("", "miru-render-*")
	if err != nil {
		return fmt.Errorf("create render dir: %w", err)
	}
	defer os.RemoveAll(dir)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, p.binary, "-r", strconv.Itoa(p.dpi), "-png", pdfPath, filepath.Join(dir, "page"))
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("pdftoppm %s: %w: %s", filepath.Base(pdfPath), err, strings.TrimSpace(stderr.String()))
	}

	files, err := renderedPages(dir)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("pdftoppm %s: %w", filepath.Base(pdfPath), ErrNoPages)
	}
	if len(files) != expected {
		p.logger.Warn("rendered page count differs from document",
			zap.String("pdf", pdfPath), zap.Int("rendered", len(files)), zap.Int("declared", expected))
	}

	for i, name := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := decodeFile(filepath.Join(dir, name))
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		if err := fn(i+1, img); err != nil {
			return err
		}
	}
	return nil
}

// renderedPages lists page-N.png files in dir sorted by N. pdftoppm pads N to the
// width of the page count, so a numeric sort is needed only for safety.
func renderedPages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read render dir: %w", err)
	}
	type numbered struct {
		name string
		n    int
	}
	var pages []numbered
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "page-") || !strings.HasSuffix(name, ".png") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "page-"), ".png"))
		if err != nil {
			continue
		}
		pages = append(pages, numbered{name, n})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].n < pages[j].n })
	names := make([]string, len(pages))
	for i, p := range pages {
		names[i] = p.name
	}
	return names, nil
}

func decodeFile(path string) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
