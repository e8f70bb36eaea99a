package e2e

import (
	"bytes"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
)

// PageWidth and PageHeight are the media box of generated pages, in points.
const (
	PageWidth  = 200
	PageHeight = 300
)

// ColorPagesPDF returns a PDF whose pages are each filled with one solid color.
func ColorPagesPDF(pages []color.RGBA) []byte {
	var buf bytes.Buffer
	var offsets []int
	buf.WriteString("%PDF-1.4\n")
	obj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	obj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := range pages {
		kids += fmt.Sprintf("%d 0 R ", 3+2*i)
	}
	obj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, len(pages)))
	for i, c := range pages {
		obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents %d 0 R >>",
			PageWidth, PageHeight, 4+2*i))
		content := fmt.Sprintf("%.3f %.3f %.3f rg 0 0 %d %d re f",
			float64(c.R)/255, float64(c.G)/255, float64(c.B)/255, PageWidth, PageHeight)
		obj(fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

// WriteCorpus writes every catalog in c as a PDF under dir.
func WriteCorpus(dir string, c *Corpus) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	for _, cat := range c.Catalogs {
		if err := os.WriteFile(filepath.Join(dir, cat.FileName), ColorPagesPDF(cat.Pages), 0644); err != nil {
			return err
		}
	}
	return nil
}
