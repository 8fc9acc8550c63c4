// Package vectorstore persists chunk embeddings and answers tenant-scoped
// similarity queries over them.
package vectorstore

import (
	"context"

	"github.com/google/uuid"
)

// Chunk is the unit of storage: one window of a document's text plus its
// embedding.
type Chunk struct {
	ChunkIndex int
	Content    string
	Embedding  []float32
}

// SearchOptions narrows a similarity query. Tenancy comes through the
// documents table, so a tenant can never match another tenant's chunks even
// with guessed document IDs.
type SearchOptions struct {
	TenantID    uuid.UUID
	TopK        int
	DocumentIDs []uuid.UUID
	FileTypes   []string
}

// SearchResult carries one matched chunk and its cosine similarity score in
// [0, 1], higher is closer.
type SearchResult struct {
	ChunkID      uuid.UUID
	DocumentID   uuid.UUID
	DocumentName string
	ChunkIndex   int
	Content      string
	Score        float64
}

// Store is the chunk persistence contract. ReplaceChunks swaps a document's
// chunks atomically so readers never observe a half-ingested document.
type Store interface {
	ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []Chunk) error
	SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error)
	DeleteByDocument(ctx context.Context, documentID uuid.UUID) error
}
