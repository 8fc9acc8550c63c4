// Package document owns the documents table: upload metadata, lifecycle
// status, and tenant-scoped reads.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ragstack/ragchat/internal/models"
)

var ErrNotFound = errors.New("document not found")

type Service struct {
	db *pgxpool.Pool
}

func NewService(db *pgxpool.Pool) *Service {
	return &Service{db: db}
}

// Create registers an uploaded file in status processing. The chunks arrive
// later, when the worker finishes.
func (s *Service) Create(ctx context.Context, tenantID uuid.UUID, name, fileType string, sizeBytes int64, url string) (*models.Document, error) {
	doc := &models.Document{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Name:      name,
		FileType:  fileType,
		SizeBytes: sizeBytes,
		URL:       url,
		Status:    models.DocStatusProcessing,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO documents (id, tenant_id, name, file_type, size_bytes, url, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		doc.ID, doc.TenantID, doc.Name, doc.FileType, doc.SizeBytes, doc.URL, doc.Status, doc.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return doc, nil
}

func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (*models.Document, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, file_type, size_bytes, url, status, created_at
		 FROM documents WHERE id = $1 AND tenant_id = $2`,
		id, tenantID,
	)
	return scanDocument(row)
}

// GetByID fetches without a tenant filter. Worker-side only: the task
// payload carries a document ID, not a tenant context.
func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*models.Document, error) {
	row := s.db.QueryRow(ctx,
		`SELECT id, tenant_id, name, file_type, size_bytes, url, status, created_at
		 FROM documents WHERE id = $1`,
		id,
	)
	return scanDocument(row)
}

func (s *Service) List(ctx context.Context, tenantID uuid.UUID) ([]models.Document, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, tenant_id, name, file_type, size_bytes, url, status, created_at
		 FROM documents WHERE tenant_id = $1 ORDER BY created_at DESC`,
		tenantID,
	)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Name, &d.FileType, &d.SizeBytes, &d.URL, &d.Status, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := s.db.Exec(ctx, "UPDATE documents SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document row. Chunks go with it via the FK cascade;
// the stored file is the caller's problem (it has the URL).
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, "DELETE FROM documents WHERE id = $1 AND tenant_id = $2", id, tenantID)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDocument(row pgx.Row) (*models.Document, error) {
	var d models.Document
	err := row.Scan(&d.ID, &d.TenantID, &d.Name, &d.FileType, &d.SizeBytes, &d.URL, &d.Status, &d.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	return &d, nil
}
