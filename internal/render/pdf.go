// Package render turns catalog PDFs into page images and shrinks images to thumbnails.
package render

import (
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// ErrNoPages is returned for a PDF that parses but declares no pages.
var ErrNoPages = errors.New("pdf has no pages")

// PageCount opens the PDF at path and returns its number of pages. It is used to
// reject unreadable documents before spending time on rasterization.
func PageCount(path string) (n int, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("open PDF %s: malformed document: %v", path, r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open PDF %s: %w", path, err)
	}
	defer f.Close()
	n = r.NumPage()
	if n <= 0 {
		return 0, fmt.Errorf("%s: %w", path, ErrNoPages)
	}
	return n, nil
}
