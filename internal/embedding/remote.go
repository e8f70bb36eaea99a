package embedding

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// RemoteConfig configures a RemoteEmbedder.
type RemoteConfig struct {
	// BaseURL of an OpenAI-compatible API, e.g. "http://localhost:8000/v1".
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	Timeout    time.Duration
	HTTPClient *http.Client
}

// RemoteEmbedder calls an OpenAI-compatible embeddings endpoint. Images are sent as
// base64 data URLs, which multimodal servers (CLIP, jina-clip, SigLIP) accept as input
// strings; text is sent as-is.
type RemoteEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
}

var _ Embedder = (*RemoteEmbedder)(nil)

// NewRemoteEmbedder creates a remote embedder.
func NewRemoteEmbedder(cfg RemoteConfig) *RemoteEmbedder {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	opts := []option.RequestOption{
		option.WithHTTPClient(httpClient),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := openai.NewClient(opts...)
	return &RemoteEmbedder{
		client:     &client,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
	}
}

// EmbedImage sends the image as a data URL.
func (r *RemoteEmbedder) EmbedImage(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, ErrEmptyInput
	}
	return r.embed(ctx, DataURL(image))
}

// EmbedText embeds a text query.
func (r *RemoteEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyInput
	}
	return r.embed(ctx, text)
}

// Model returns the remote model name.
func (r *RemoteEmbedder) Model() string {
	return r.model
}

// Dimensions returns the configured dimension.
func (r *RemoteEmbedder) Dimensions() int {
	return r.dimensions
}

// Close is a no-op.
func (r *RemoteEmbedder) Close() error {
	return nil
}

func (r *RemoteEmbedder) embed(ctx context.Context, input string) ([]float32, error) {
	params := openai.EmbeddingNewParams{
		Model:          r.model,
		Input:          openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: []string{input}},
		EncodingFormat: openai.EmbeddingNewParamsEncodingFormatFloat,
	}
	resp, err := r.client.Embeddings.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("remote embedding: %w", err)
	}
	if len(resp.Data) != 1 {
		return nil, fmt.Errorf("remote embedding: got %d vectors, want 1", len(resp.Data))
	}
	vec := make([]float32, len(resp.Data[0].Embedding))
	for i, v := range resp.Data[0].Embedding {
		vec[i] = float32(v)
	}
	if r.dimensions > 0 && len(vec) != r.dimensions {
		return nil, fmt.Errorf("remote embedding: got %d dimensions, want %d", len(vec), r.dimensions)
	}
	return vec, nil
}

// DataURL encodes image bytes as a data URL using the sniffed content type.
func DataURL(image []byte) string {
	return "data:" + http.DetectContentType(image) + ";base64," + base64.StdEncoding.EncodeToString(image)
}
