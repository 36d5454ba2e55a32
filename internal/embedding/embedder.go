// Package embedding turns chunk text into vectors via an external provider,
// with rate limiting and rate-limit retry handling.
package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// Embedder generates vector embeddings for text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// EmbedBatch generates embeddings for texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension. It must match the
	// vector index dimension in the graph store.
	Dimension() int

	// Model returns the embedding model name.
	Model() string
}

// OpenAIConfig configures the OpenAI-compatible embedding client.
type OpenAIConfig struct {
	APIKey    string
	BaseURL   string // empty for api.openai.com
	Model     string
	Dimension int
}

// OpenAIEmbedder implements Embedder on any OpenAI-compatible embeddings
// endpoint through langchaingo.
type OpenAIEmbedder struct {
	embedder  embeddings.Embedder
	model     string
	dimension int
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder creates the langchaingo-backed embedder and validates
// its configuration.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("embedding API key required")
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("embedding dimension must be positive, got %d", cfg.Dimension)
	}

	opts := []openai.Option{
		openai.WithToken(cfg.APIKey),
		openai.WithEmbeddingModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	client, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create openai client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(client, embeddings.WithStripNewLines(true))
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIEmbedder{
		embedder:  embedder,
		model:     cfg.Model,
		dimension: cfg.Dimension,
	}, nil
}

// EmbedBatch generates embeddings for texts and validates count and
// dimensions before returning them.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(texts))
	}
	for i, v := range vectors {
		if len(v) != e.dimension {
			return nil, fmt.Errorf("embedding %d dimension mismatch: got %d, want %d", i, len(v), e.dimension)
		}
	}

	return vectors, nil
}

// Dimension returns the expected embedding dimension.
func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

// Model returns the embedding model name.
func (e *OpenAIEmbedder) Model() string {
	return e.model
}
