package models

import "fmt"

// Query types reported in the search response.
const (
	QueryTypeImage = "image"
	QueryTypeText  = "text"
)

// DefaultTopK is used when a query does not specify top_k.
const DefaultTopK = 5

// SearchQuery is a search request. Exactly one of Image or Text must be set.
// Image is a data URL or raw base64 payload.
type SearchQuery struct {
	Image string `json:"image,omitempty"`
	Text  string `json:"text,omitempty"`
	TopK  int    `json:"top_k,omitempty"`
}

// Validate checks that exactly one input is present and applies defaultTopK when TopK is unset.
// A negative TopK is rejected; values above the number of pages are allowed.
func (q *SearchQuery) Validate(defaultTopK int) error {
	if q.Image == "" && q.Text == "" {
		return fmt.Errorf("query requires an image or text")
	}
	if q.Image != "" && q.Text != "" {
		return fmt.Errorf("query accepts either an image or text, not both")
	}
	if q.TopK < 0 {
		return fmt.Errorf("top_k must be positive, got %d", q.TopK)
	}
	if q.TopK == 0 {
		if defaultTopK <= 0 {
			defaultTopK = DefaultTopK
		}
		q.TopK = defaultTopK
	}
	return nil
}

// Type returns QueryTypeText for text queries and QueryTypeImage otherwise.
func (q *SearchQuery) Type() string {
	if q.Text != "" {
		return QueryTypeText
	}
	return QueryTypeImage
}
