// Package embedding turns text into the fixed-dimension vectors the store
// indexes. Ingestion and retrieval must embed with the same model or the
// similarity scores are meaningless.
package embedding

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ragstack/ragchat/internal/config"
)

var (
	ErrUnsupportedProvider = errors.New("unsupported embedding provider")
	ErrMissingAPIKey       = errors.New("embedding API key not configured")
)

// Embedder is the single-text embedding contract used by the ingest
// pipeline and the retriever.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// Service embeds through the OpenAI embeddings API.
type Service struct {
	client    *openai.Client
	model     openai.EmbeddingModel
	dimension int
}

func NewService(cfg config.EmbeddingConfig) (*Service, error) {
	if cfg.Provider != "openai" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedProvider, cfg.Provider)
	}
	if cfg.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	return &Service{
		client:    openai.NewClient(cfg.APIKey),
		model:     openai.EmbeddingModel(cfg.Model),
		dimension: cfg.Dimension,
	}, nil
}

func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := s.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: s.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embedding response contained no data")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != s.dimension {
		return nil, fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(vec), s.dimension)
	}
	return vec, nil
}

func (s *Service) Dimension() int {
	return s.dimension
}
