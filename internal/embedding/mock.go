package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/rand/v2"

	"github.com/hyperjump/miru/pkg/utils"
)

// MockModel is the model identifier reported by a MockEmbedder built without one.
const MockModel = "mock"

// MockEmbedder is a deterministic embedder for tests and for running without a model.
// Vectors are unit length and derived from a hash of the input, so identical bytes always
// map to identical vectors and different inputs are almost orthogonal.
type MockEmbedder struct {
	model      string
	dimensions int
}

// NewMockEmbedder returns a mock producing vectors of the given dimensions. An empty
// model name becomes MockModel.
func NewMockEmbedder(model string, dimensions int) *MockEmbedder {
	if dimensions <= 0 {
		dimensions = 512
	}
	if model == "" {
		model = MockModel
	}
	return &MockEmbedder{model: model, dimensions: dimensions}
}

// EmbedImage hashes the image bytes into a vector.
func (e *MockEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, ErrEmptyInput
	}
	return e.vector("image", image), nil
}

// EmbedText hashes the text into a vector.
func (e *MockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return e.vector("text", []byte(text)), nil
}

func (e *MockEmbedder) vector(kind string, data []byte) []float32 {
	h := sha256.New()
	h.Write([]byte(kind))
	h.Write(data)
	sum := h.Sum(nil)
	rng := rand.New(rand.NewPCG(binary.LittleEndian.Uint64(sum[:8]), binary.LittleEndian.Uint64(sum[8:16])))
	emb := make([]float32, e.dimensions)
	for i := range emb {
		emb[i] = float32(rng.NormFloat64())
	}
	utils.NormalizeL2(emb)
	return emb
}

// Model returns the configured model identifier.
func (e *MockEmbedder) Model() string {
	return e.model
}

// Dimensions returns the embedding dimension.
func (e *MockEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for MockEmbedder.
func (e *MockEmbedder) Close() error {
	return nil
}
