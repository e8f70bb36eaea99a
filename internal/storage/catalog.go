package storage

import (
	"fmt"

	"github.com/hyperjump/miru/internal/models"
)

// AppendCatalog adds c to db. When a catalog with the same name exists it fails with
// ErrDuplicateCatalog unless replace is set, in which case the old record is removed and
// c is appended after the remaining catalogs. The vectors of c must match the dimension of
// the rest of the database. db is left unchanged on error.
func AppendCatalog(db *models.Database, c models.Catalog, replace bool) error {
	existing := db.FindCatalog(c.Name)
	if existing >= 0 && !replace {
		return fmt.Errorf("%w: %q", ErrDuplicateCatalog, c.Name)
	}

	dim := 0
	for i := range db.Catalogs {
		if i == existing {
			continue
		}
		for j := range db.Catalogs[i].Pages {
			dim = len(db.Catalogs[i].Pages[j].Embedding)
			break
		}
		if dim > 0 {
			break
		}
	}
	if c.Pages == nil {
		c.Pages = []models.Page{}
	}
	if _, err := validateCatalog(&c, fmt.Sprintf("catalog %q", c.Name), dim); err != nil {
		return err
	}

	if existing >= 0 {
		db.Catalogs = append(db.Catalogs[:existing:existing], db.Catalogs[existing+1:]...)
	}
	db.Catalogs = append(db.Catalogs, c)
	return nil
}
