package models

import (
	"time"

	"github.com/google/uuid"
)

// Document file types accepted for upload and extraction.
const (
	FileTypePDF  = "pdf"
	FileTypeDOCX = "docx"
	FileTypeTXT  = "txt"
	FileTypeMD   = "md"
	FileTypeCSV  = "csv"
)

// Document processing statuses. Status is terminal on ready/failed until an
// explicit reprocess resets it to processing.
const (
	DocStatusProcessing = "processing"
	DocStatusReady      = "ready"
	DocStatusFailed     = "failed"
)

func ValidFileType(ft string) bool {
	switch ft {
	case FileTypePDF, FileTypeDOCX, FileTypeTXT, FileTypeMD, FileTypeCSV:
		return true
	}
	return false
}

type Document struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	Name      string    `json:"name" db:"name"`
	FileType  string    `json:"file_type" db:"file_type"`
	SizeBytes int64     `json:"size_bytes" db:"size_bytes"`
	URL       string    `json:"url" db:"url"`
	Status    string    `json:"status" db:"status"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type DocumentChunk struct {
	ID         uuid.UUID `json:"id" db:"id"`
	DocumentID uuid.UUID `json:"document_id" db:"document_id"`
	ChunkIndex int       `json:"chunk_index" db:"chunk_index"`
	Content    string    `json:"content" db:"content"`
	Embedding  []float32 `json:"-" db:"embedding"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
