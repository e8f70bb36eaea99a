// Package models defines core data structures for the embedding database, queries, and search results.
package models

// CurrentVersion is the schema version written by this module.
const CurrentVersion = "1.0"

// Page is one rendered catalog page and its embedding. Immutable once written.
type Page struct {
	PageNumber int       `json:"page_number"`
	ImagePath  string    `json:"image_path"`
	Embedding  []float32 `json:"embedding"`
}

// Catalog is one source document and its pages, ordered by page number.
type Catalog struct {
	Name       string `json:"name"`
	SourceFile string `json:"source_file"`
	Pages      []Page `json:"pages"`
}

// Database is the versioned collection of catalogs. Every vector was produced by Model.
type Database struct {
	Version  string    `json:"version"`
	Model    string    `json:"model"`
	Created  Timestamp `json:"created"`
	Catalogs []Catalog `json:"catalogs"`
}

// TotalPages returns the number of pages across all catalogs.
func (db *Database) TotalPages() int {
	n := 0
	for i := range db.Catalogs {
		n += len(db.Catalogs[i].Pages)
	}
	return n
}

// Dimension returns the length of the first stored vector, or 0 when the database has no pages.
func (db *Database) Dimension() int {
	for i := range db.Catalogs {
		for j := range db.Catalogs[i].Pages {
			return len(db.Catalogs[i].Pages[j].Embedding)
		}
	}
	return 0
}

// FindCatalog returns the index of the catalog with the given name, or -1.
func (db *Database) FindCatalog(name string) int {
	for i := range db.Catalogs {
		if db.Catalogs[i].Name == name {
			return i
		}
	}
	return -1
}
