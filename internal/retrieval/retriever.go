// Package retrieval answers "which stored chunks are closest to this text"
// by embedding the query and delegating to the vector store.
package retrieval

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ragstack/ragchat/internal/embedding"
	"github.com/ragstack/ragchat/internal/vectorstore"
)

// Query is one retrieval request. DocumentIDs and FileTypes are optional
// narrowing filters.
type Query struct {
	TenantID    uuid.UUID
	Text        string
	TopK        int
	DocumentIDs []uuid.UUID
	FileTypes   []string
}

type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Store
}

func New(embedder embedding.Embedder, store vectorstore.Store) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

func (r *Retriever) Retrieve(ctx context.Context, q Query) ([]vectorstore.SearchResult, error) {
	vec, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := r.store.SimilaritySearch(ctx, vec, vectorstore.SearchOptions{
		TenantID:    q.TenantID,
		TopK:        q.TopK,
		DocumentIDs: q.DocumentIDs,
		FileTypes:   q.FileTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	return results, nil
}
