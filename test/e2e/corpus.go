// Package e2e runs the full ingest and search pipeline against generated catalog PDFs.
package e2e

import (
	"fmt"
	"image/color"
)

// CatalogFixture is one generated catalog: the PDF file name and one fill color per page.
type CatalogFixture struct {
	FileName string
	Name     string
	Pages    []color.RGBA
}

// Corpus is the set of catalogs written to the knowledge base.
type Corpus struct {
	Catalogs   []CatalogFixture
	TotalPages int
}

// BuildCorpus returns n catalogs of pagesPer pages each. Every page gets a distinct
// solid color so rendered pages never collide.
func BuildCorpus(n, pagesPer int) *Corpus {
	c := &Corpus{}
	k := 0
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("Season%02d", i+1)
		cat := CatalogFixture{
			FileName: fmt.Sprintf("%02d-%s.pdf", i+1, name),
			Name:     name,
		}
		for p := 0; p < pagesPer; p++ {
			k++
			cat.Pages = append(cat.Pages, pageColor(k))
		}
		c.Catalogs = append(c.Catalogs, cat)
		c.TotalPages += pagesPer
	}
	return c
}

func pageColor(k int) color.RGBA {
	return color.RGBA{
		R: uint8((k * 67) % 256),
		G: uint8((k * 131) % 256),
		B: uint8((k * 29) % 256),
		A: 255,
	}
}
