// Package embedding turns page images, and on some backends text, into vectors.
package embedding

import (
	"context"
	"errors"
)

var (
	// ErrEmptyInput is returned for empty image bytes or empty text.
	ErrEmptyInput = errors.New("empty embedding input")
	// ErrTextUnsupported is returned by EmbedText on image-only backends.
	ErrTextUnsupported = errors.New("embedder does not support text input")
)

// Embedder produces vectors for catalog pages and query images.
type Embedder interface {
	EmbedImage(ctx context.Context, image []byte) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	// Model identifies the vector space. It is recorded in the database and queries
	// are only ranked against a database built with the same model.
	Model() string
	Dimensions() int
	Close() error
}
