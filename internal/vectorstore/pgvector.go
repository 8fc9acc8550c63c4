package vectorstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore keeps chunks in Postgres with the pgvector extension.
type PgVectorStore struct {
	db         *pgxpool.Pool
	contentCap int
}

func NewPgVectorStore(db *pgxpool.Pool, contentCap int) *PgVectorStore {
	return &PgVectorStore{db: db, contentCap: contentCap}
}

// ReplaceChunks deletes the document's existing chunks and inserts the new
// set in one transaction. Re-ingesting a document is therefore idempotent:
// the chunk set always reflects exactly one extraction pass.
func (s *PgVectorStore) ReplaceChunks(ctx context.Context, documentID uuid.UUID, chunks []Chunk) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("delete old chunks: %w", err)
	}

	for _, c := range chunks {
		content := c.Content
		if s.contentCap > 0 {
			if runes := []rune(content); len(runes) > s.contentCap {
				content = string(runes[:s.contentCap])
			}
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO document_chunks (id, document_id, chunk_index, content, embedding)
			 VALUES ($1, $2, $3, $4, $5)`,
			uuid.New(), documentID, c.ChunkIndex, content, pgvector.NewVector(c.Embedding),
		)
		if err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.ChunkIndex, err)
		}
	}

	return tx.Commit(ctx)
}

func (s *PgVectorStore) SimilaritySearch(ctx context.Context, query []float32, opts SearchOptions) ([]SearchResult, error) {
	if opts.TopK <= 0 {
		opts.TopK = 10
	}

	var sb strings.Builder
	sb.WriteString(
		`SELECT c.id, c.document_id, d.name, c.chunk_index, c.content,
		        1 - (c.embedding <=> $1) AS score
		 FROM document_chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.tenant_id = $2 AND d.status = 'ready'`)

	args := []any{pgvector.NewVector(query), opts.TenantID}
	if len(opts.DocumentIDs) > 0 {
		args = append(args, opts.DocumentIDs)
		fmt.Fprintf(&sb, " AND c.document_id = ANY($%d)", len(args))
	}
	if len(opts.FileTypes) > 0 {
		args = append(args, opts.FileTypes)
		fmt.Fprintf(&sb, " AND d.file_type = ANY($%d)", len(args))
	}

	args = append(args, opts.TopK)
	fmt.Fprintf(&sb, " ORDER BY c.embedding <=> $1 LIMIT $%d", len(args))

	rows, err := s.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		if err := rows.Scan(&r.ChunkID, &r.DocumentID, &r.DocumentName, &r.ChunkIndex, &r.Content, &r.Score); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("similarity search rows: %w", err)
	}
	return results, nil
}

func (s *PgVectorStore) DeleteByDocument(ctx context.Context, documentID uuid.UUID) error {
	if _, err := s.db.Exec(ctx, "DELETE FROM document_chunks WHERE document_id = $1", documentID); err != nil {
		return fmt.Errorf("delete chunks: %w", err)
	}
	return nil
}

var _ Store = (*PgVectorStore)(nil)
