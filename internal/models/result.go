package models

import (
	"encoding/json"
	"math"
)

// Match is one ranked page. Score is the cosine similarity, or -Inf for a degenerate vector.
type Match struct {
	Catalog    string  `json:"catalog"`
	PageNumber int     `json:"page_number"`
	ImagePath  string  `json:"image_path"`
	Score      float64 `json:"similarity"`
	SourceFile string  `json:"source_file"`
}

// MarshalJSON writes a non-finite score as null; JSON has no infinity.
func (m Match) MarshalJSON() ([]byte, error) {
	type wire struct {
		Catalog    string   `json:"catalog"`
		PageNumber int      `json:"page_number"`
		ImagePath  string   `json:"image_path"`
		Score      *float64 `json:"similarity"`
		SourceFile string   `json:"source_file"`
	}
	w := wire{
		Catalog:    m.Catalog,
		PageNumber: m.PageNumber,
		ImagePath:  m.ImagePath,
		SourceFile: m.SourceFile,
	}
	if !math.IsInf(m.Score, 0) && !math.IsNaN(m.Score) {
		score := m.Score
		w.Score = &score
	}
	return json.Marshal(w)
}

// UnmarshalJSON reads null as -Inf.
func (m *Match) UnmarshalJSON(data []byte) error {
	var w struct {
		Catalog    string   `json:"catalog"`
		PageNumber int      `json:"page_number"`
		ImagePath  string   `json:"image_path"`
		Score      *float64 `json:"similarity"`
		SourceFile string   `json:"source_file"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*m = Match{
		Catalog:    w.Catalog,
		PageNumber: w.PageNumber,
		ImagePath:  w.ImagePath,
		Score:      math.Inf(-1),
		SourceFile: w.SourceFile,
	}
	if w.Score != nil {
		m.Score = *w.Score
	}
	return nil
}

// SearchResponse is the success document for a query.
type SearchResponse struct {
	Success            bool    `json:"success"`
	QueryType          string  `json:"query_type"`
	TotalPagesSearched int     `json:"total_pages_searched"`
	Results            []Match `json:"results"`
	QueryTime          int64   `json:"query_time_ms"`
}

// ErrorResponse is the failure document for a query.
type ErrorResponse struct {
	Error string `json:"error"`
}
