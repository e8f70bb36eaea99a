package storage

import (
	"fmt"
	"math"

	"github.com/hyperjump/miru/internal/models"
)

// Validate checks every invariant of db: supported version, a declared model, unique
// non-empty catalog names, and per catalog positive strictly increasing page numbers,
// unique image paths, and one embedding dimension across the whole database.
func Validate(db *models.Database) error {
	if db == nil {
		return schemaErr("", "nil database")
	}
	if db.Version == "" {
		return schemaErr("version", "missing")
	}
	if db.Version != models.CurrentVersion {
		return fmt.Errorf("%w: %q (supported: %q)", ErrUnsupportedVersion, db.Version, models.CurrentVersion)
	}
	if db.Model == "" {
		return schemaErr("model", "missing")
	}
	names := make(map[string]struct{}, len(db.Catalogs))
	dim := 0
	for i := range db.Catalogs {
		c := &db.Catalogs[i]
		if _, ok := names[c.Name]; ok {
			return schemaErr(fmt.Sprintf("catalogs[%d].name", i), "duplicate catalog %q", c.Name)
		}
		names[c.Name] = struct{}{}
		var err error
		if dim, err = validateCatalog(c, fmt.Sprintf("catalogs[%d]", i), dim); err != nil {
			return err
		}
	}
	return nil
}

// validateCatalog checks c against dim (0 = not yet known) and returns the dimension in effect afterwards.
func validateCatalog(c *models.Catalog, field string, dim int) (int, error) {
	if c.Name == "" {
		return dim, schemaErr(field+".name", "must not be empty")
	}
	paths := make(map[string]struct{}, len(c.Pages))
	prev := 0
	for j := range c.Pages {
		p := &c.Pages[j]
		pf := fmt.Sprintf("%s.pages[%d]", field, j)
		if p.PageNumber <= 0 {
			return dim, schemaErr(pf+".page_number", "must be positive, got %d", p.PageNumber)
		}
		if p.PageNumber <= prev {
			return dim, schemaErr(pf+".page_number", "pages must be ordered by unique page number (%d after %d)", p.PageNumber, prev)
		}
		prev = p.PageNumber
		if _, ok := paths[p.ImagePath]; ok {
			return dim, schemaErr(pf+".image_path", "duplicate image path %q", p.ImagePath)
		}
		paths[p.ImagePath] = struct{}{}
		if len(p.Embedding) == 0 {
			return dim, schemaErr(pf+".embedding", "empty vector")
		}
		if dim == 0 {
			dim = len(p.Embedding)
		} else if len(p.Embedding) != dim {
			return dim, schemaErr(pf+".embedding", "dimension %d differs from %d", len(p.Embedding), dim)
		}
		for _, v := range p.Embedding {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return dim, schemaErr(pf+".embedding", "non-finite component")
			}
		}
	}
	return dim, nil
}
