// Package cli reads query input and writes result documents for the miru command.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/hyperjump/miru/internal/models"
	"github.com/hyperjump/miru/internal/storage"
	"github.com/hyperjump/miru/pkg/utils"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputJSON is a single JSON document (default), consumable by other programs.
	OutputJSON SearchOutputFormat = "json"
	// OutputText is human-readable text.
	OutputText SearchOutputFormat = "text"
)

// WriteSearchResults writes response to w in the given format.
// Unknown formats fall back to JSON.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	if format == OutputText {
		writeSearchResultsText(w, response)
		return nil
	}
	return encodeJSON(w, response)
}

// WriteError writes err as {"error": "..."} (or a single line in text format).
func WriteError(w io.Writer, err error, format SearchOutputFormat) error {
	msg := ErrorMessage(err)
	if format == OutputText {
		_, werr := fmt.Fprintf(w, "error: %s\n", msg)
		return werr
	}
	return encodeJSON(w, models.ErrorResponse{Error: msg})
}

// ErrorMessage renders err for users. A missing database gets a hint on how to build it.
func ErrorMessage(err error) string {
	if errors.Is(err, storage.ErrNotFound) {
		return err.Error() + "; run `miru index` first to build it"
	}
	return err.Error()
}

func encodeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeSearchResultsText(w io.Writer, response *models.SearchResponse) {
	fmt.Fprintf(w, "\nFound %d matches among %d pages in %dms (%s query)\n\n",
		len(response.Results), response.TotalPagesSearched, response.QueryTime, response.QueryType)
	for i, m := range response.Results {
		writeOneResult(w, i+1, m)
	}
}

func writeOneResult(w io.Writer, rank int, m models.Match) {
	score := "n/a"
	if !math.IsInf(m.Score, 0) && !math.IsNaN(m.Score) {
		score = fmt.Sprintf("%.4f", m.Score)
	}
	fmt.Fprintf(w, "%2d. %-40s page %-4d similarity %s\n", rank, utils.Truncate(m.Catalog, 40), m.PageNumber, score)
	fmt.Fprintf(w, "    %s\n", m.ImagePath)
}
