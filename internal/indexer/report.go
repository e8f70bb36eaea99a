package indexer

import (
	"fmt"
	"io"
)

// Report summarizes an ingestion run.
type Report struct {
	RunID string `json:"run_id"`
	Model string `json:"model"`
	// Catalogs and Pages count what this run added.
	Catalogs int `json:"catalogs_processed"`
	Pages    int `json:"pages_processed"`
	// TotalCatalogs and TotalPages describe the resulting database.
	TotalCatalogs int               `json:"total_catalogs"`
	TotalPages    int               `json:"total_pages"`
	Skipped       []SkippedDocument `json:"skipped,omitempty"`
	Database      string            `json:"database,omitempty"`
	DatabaseBytes int64             `json:"database_bytes,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
}

// SkippedDocument is a PDF that could not be indexed.
type SkippedDocument struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// WriteText prints the report for humans.
func (r *Report) WriteText(w io.Writer) {
	fmt.Fprintf(w, "run_id:             %s\n", r.RunID)
	fmt.Fprintf(w, "model:              %s\n", r.Model)
	fmt.Fprintf(w, "catalogs_processed: %d\n", r.Catalogs)
	fmt.Fprintf(w, "pages_processed:    %d\n", r.Pages)
	fmt.Fprintf(w, "total_catalogs:     %d\n", r.TotalCatalogs)
	fmt.Fprintf(w, "total_pages:        %d\n", r.TotalPages)
	if r.Database != "" {
		fmt.Fprintf(w, "database:           %s (%.1f MB)\n", r.Database, float64(r.DatabaseBytes)/(1024*1024))
	}
	fmt.Fprintf(w, "duration_ms:        %d\n", r.DurationMs)
	if len(r.Skipped) > 0 {
		fmt.Fprintf(w, "\nskipped %d document(s):\n", len(r.Skipped))
		for _, s := range r.Skipped {
			fmt.Fprintf(w, "  %s: %s\n", s.Path, s.Reason)
		}
	}
}
