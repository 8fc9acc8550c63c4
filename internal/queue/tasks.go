package queue

const (
	TypeDocumentProcess = "document:process"
)

// DocumentProcessPayload identifies the document to run through the ingest
// pipeline. The tenant ID rides along for log correlation only; the worker
// re-reads the document row for authority.
type DocumentProcessPayload struct {
	DocumentID string `json:"document_id"`
	TenantID   string `json:"tenant_id"`
}
