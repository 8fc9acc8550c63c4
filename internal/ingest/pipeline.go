// Package ingest runs the extract, chunk, embed, store pipeline that turns
// an uploaded document into searchable chunks.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/embedding"
	"github.com/ragstack/ragchat/internal/models"
	"github.com/ragstack/ragchat/internal/vectorstore"
	"github.com/ragstack/ragchat/pkg/chunker"
)

// DocumentStore is the slice of the document service the pipeline needs.
type DocumentStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

// FileLoader resolves a stored document URL to raw bytes.
type FileLoader interface {
	Load(ctx context.Context, url string) ([]byte, error)
}

// TextExtractor converts raw file bytes to plain text.
type TextExtractor interface {
	Text(fileType string, raw []byte) (string, error)
}

type Pipeline struct {
	docs      DocumentStore
	files     FileLoader
	extractor TextExtractor
	embedder  embedding.Embedder
	chunks    vectorstore.Store
	cfg       config.IngestConfig
	http      *http.Client
	logger    *slog.Logger
}

func NewPipeline(docs DocumentStore, files FileLoader, extractor TextExtractor, embedder embedding.Embedder, chunks vectorstore.Store, cfg config.IngestConfig, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		docs:      docs,
		files:     files,
		extractor: extractor,
		embedder:  embedder,
		chunks:    chunks,
		cfg:       cfg,
		http:      &http.Client{Timeout: 60 * time.Second},
		logger:    logger,
	}
}

// ProcessDocument runs the full pipeline for one document. On any failure
// the document is marked failed and the error is returned, so the task
// queue can retry; a later successful run replaces the chunk set whole.
func (p *Pipeline) ProcessDocument(ctx context.Context, documentID uuid.UUID) error {
	doc, err := p.docs.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("load document %s: %w", documentID, err)
	}

	log := p.logger.With("document_id", doc.ID, "tenant_id", doc.TenantID, "file_type", doc.FileType)
	started := time.Now()

	if err := p.docs.UpdateStatus(ctx, doc.ID, models.DocStatusProcessing); err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}

	if err := p.run(ctx, doc, log); err != nil {
		log.Error("document processing failed", "error", err)
		if stErr := p.docs.UpdateStatus(ctx, doc.ID, models.DocStatusFailed); stErr != nil {
			log.Error("failed to mark document failed", "error", stErr)
		}
		return err
	}

	if err := p.docs.UpdateStatus(ctx, doc.ID, models.DocStatusReady); err != nil {
		return fmt.Errorf("mark ready: %w", err)
	}
	log.Info("document processed", "duration_ms", time.Since(started).Milliseconds())
	return nil
}

func (p *Pipeline) run(ctx context.Context, doc *models.Document, log *slog.Logger) error {
	raw, err := p.fetch(ctx, doc.URL)
	if err != nil {
		return fmt.Errorf("fetch document bytes: %w", err)
	}

	text, err := p.extractor.Text(doc.FileType, raw)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("document contains no extractable text")
	}

	pieces := chunker.Split(text, p.cfg.ChunkSize, p.cfg.ChunkOverlap)
	log.Info("document chunked", "chunks", len(pieces), "text_chars", len(text))

	chunks := make([]vectorstore.Chunk, 0, len(pieces))
	for i, piece := range pieces {
		vec, err := p.embedder.Embed(ctx, piece)
		if err != nil {
			return fmt.Errorf("embed chunk %d: %w", i, err)
		}
		chunks = append(chunks, vectorstore.Chunk{ChunkIndex: i, Content: piece, Embedding: vec})
	}

	if err := p.chunks.ReplaceChunks(ctx, doc.ID, chunks); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	return nil
}

// fetch prefers local storage and falls back to an HTTP GET for documents
// registered by external URL.
func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, error) {
	data, err := p.files.Load(ctx, url)
	if err == nil {
		return data, nil
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, err
	}

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if reqErr != nil {
		return nil, fmt.Errorf("build fetch request: %w", reqErr)
	}
	resp, reqErr := p.http.Do(req)
	if reqErr != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, reqErr)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}

	limit := int64(p.cfg.MaxUploadMB)<<20 + 1
	data, reqErr = io.ReadAll(io.LimitReader(resp.Body, limit))
	if reqErr != nil {
		return nil, fmt.Errorf("read fetched body: %w", reqErr)
	}
	return data, nil
}
