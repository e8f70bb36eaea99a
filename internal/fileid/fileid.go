// Package fileid derives deterministic names for catalogs and their page images.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
)

// IsPDF reports whether path has a .pdf extension (any case).
func IsPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}

// Stem returns the base name of path without its .pdf extension.
func Stem(path string) string {
	base := filepath.Base(path)
	if IsPDF(base) {
		return base[:len(base)-len(".pdf")]
	}
	return base
}

// CatalogName derives the catalog name from a PDF file name. Catalog files are
// conventionally prefixed with an ordering key ("01-Spring2024.pdf"), so when the stem
// contains "-" everything up to and including the first "-" is dropped. A stem that
// would become empty is used whole.
func CatalogName(path string) string {
	stem := Stem(path)
	if i := strings.Index(stem, "-"); i >= 0 {
		if name := stem[i+1:]; name != "" {
			return name
		}
	}
	return stem
}

// PageImagePath returns where the JPEG for a page of pdfPath is stored under outputDir:
// <outputDir>/<stem>/page_NNN.jpg.
func PageImagePath(outputDir, pdfPath string, pageNumber int) string {
	return filepath.Join(outputDir, Stem(pdfPath), fmt.Sprintf("page_%03d.jpg", pageNumber))
}

// ContentHash returns the hex SHA-256 of data. Used as the embedding cache key.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
