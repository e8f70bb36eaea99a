package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/hyperjump/miru/internal/models"
)

func catalog(name string, vecs ...[]float32) models.Catalog {
	c := models.Catalog{Name: name, SourceFile: name + ".pdf", Pages: []models.Page{}}
	for i, v := range vecs {
		c.Pages = append(c.Pages, models.Page{
			PageNumber: i + 1,
			ImagePath:  name + "/page_" + string(rune('a'+i)) + ".jpg",
			Embedding:  v,
		})
	}
	return c
}

func TestAppendCatalog_Duplicate(t *testing.T) {
	db := New("m", time.Now())
	if err := AppendCatalog(db, catalog("Spring2024", []float32{1, 0}), false); err != nil {
		t.Fatal(err)
	}
	err := AppendCatalog(db, catalog("Spring2024", []float32{0, 1}, []float32{1, 1}), false)
	if !errors.Is(err, ErrDuplicateCatalog) {
		t.Fatalf("second append error = %v, want ErrDuplicateCatalog", err)
	}
	if len(db.Catalogs) != 1 || len(db.Catalogs[0].Pages) != 1 {
		t.Errorf("failed append must not change the database: %+v", db.Catalogs)
	}
}

func TestAppendCatalog_Replace(t *testing.T) {
	db := New("m", time.Now())
	_ = AppendCatalog(db, catalog("Spring2024", []float32{1, 0}), false)
	_ = AppendCatalog(db, catalog("Outdoor", []float32{0, 1}), false)

	second := catalog("Spring2024", []float32{0, 1}, []float32{1, 1})
	if err := AppendCatalog(db, second, true); err != nil {
		t.Fatal(err)
	}
	count := 0
	for _, c := range db.Catalogs {
		if c.Name == "Spring2024" {
			count++
			if len(c.Pages) != 2 || c.Pages[0].Embedding[1] != 1 {
				t.Errorf("replaced catalog should hold the second call's pages: %+v", c.Pages)
			}
		}
	}
	if count != 1 {
		t.Errorf("expected exactly one Spring2024, got %d", count)
	}
	if db.Catalogs[0].Name != "Outdoor" || db.Catalogs[1].Name != "Spring2024" {
		t.Errorf("replacement should be ordered by insertion: %v, %v", db.Catalogs[0].Name, db.Catalogs[1].Name)
	}
}

func TestAppendCatalog_ReplaceOnlyCatalogMayChangeDimension(t *testing.T) {
	db := New("m", time.Now())
	_ = AppendCatalog(db, catalog("A", []float32{1, 0}), false)
	if err := AppendCatalog(db, catalog("A", []float32{1, 0, 0}), true); err != nil {
		t.Fatalf("replacing the only catalog should not be held to its old dimension: %v", err)
	}
	if db.Dimension() != 3 {
		t.Errorf("Dimension = %d, want 3", db.Dimension())
	}
}

func TestAppendCatalog_DimensionMismatch(t *testing.T) {
	db := New("m", time.Now())
	_ = AppendCatalog(db, catalog("A", []float32{1, 0, 0}), false)
	err := AppendCatalog(db, catalog("B", []float32{1, 0}), false)
	if !errors.Is(err, ErrSchema) {
		t.Fatalf("error = %v, want ErrSchema", err)
	}
	if len(db.Catalogs) != 1 {
		t.Errorf("catalog with wrong dimension must not be appended")
	}
}

func TestAppendCatalog_InvalidPages(t *testing.T) {
	db := New("m", time.Now())
	c := catalog("A", []float32{1}, []float32{2})
	c.Pages[1].PageNumber = 1
	if err := AppendCatalog(db, c, false); !errors.Is(err, ErrSchema) {
		t.Errorf("duplicate page number error = %v, want ErrSchema", err)
	}
	if err := AppendCatalog(db, models.Catalog{Name: ""}, false); !errors.Is(err, ErrSchema) {
		t.Errorf("empty name error = %v, want ErrSchema", err)
	}
}

func TestValidate_UnsupportedVersion(t *testing.T) {
	db := New("m", time.Now())
	db.Version = "0.9"
	if err := Validate(db); !errors.Is(err, ErrUnsupportedVersion) {
		t.Errorf("Validate error = %v, want ErrUnsupportedVersion", err)
	}
}
