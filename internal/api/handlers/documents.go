package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/document"
	"github.com/ragstack/ragchat/internal/models"
	"github.com/ragstack/ragchat/internal/queue"
	"github.com/ragstack/ragchat/internal/storage"
	"github.com/ragstack/ragchat/internal/tenant"
	"github.com/ragstack/ragchat/internal/vectorstore"
)

type DocumentHandler struct {
	svc    *document.Service
	store  storage.Storage
	chunks vectorstore.Store
	qc     *queue.Client
	ingest config.IngestConfig
}

func NewDocumentHandler(svc *document.Service, store storage.Storage, chunks vectorstore.Store, qc *queue.Client, ingest config.IngestConfig) *DocumentHandler {
	return &DocumentHandler{svc: svc, store: store, chunks: chunks, qc: qc, ingest: ingest}
}

// Upload handles POST /documents: persist the file, register the document
// in status processing, and enqueue the ingest task.
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(h.ingest.MaxUploadMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)

	if err := r.ParseMultipartForm(maxBytes); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	if header.Size > maxBytes {
		writeDetail(w, http.StatusRequestEntityTooLarge, "file exceeds upload size limit")
		return
	}

	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	if !models.ValidFileType(fileType) {
		writeDetail(w, http.StatusBadRequest, "unsupported file type: "+fileType)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxBytes))
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "read upload")
		return
	}

	t := tenant.FromContext(r.Context())
	url, err := h.store.Save(r.Context(), t.ID, header.Filename, data)
	if err != nil {
		slog.Error("save upload failed", "tenant_id", t.ID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "store file")
		return
	}

	doc, err := h.svc.Create(r.Context(), t.ID, header.Filename, fileType, int64(len(data)), url)
	if err != nil {
		slog.Error("create document failed", "tenant_id", t.ID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "register document")
		return
	}

	if err := h.qc.EnqueueDocumentProcess(queue.DocumentProcessPayload{
		DocumentID: doc.ID.String(),
		TenantID:   t.ID.String(),
	}); err != nil {
		slog.Error("enqueue document task failed", "document_id", doc.ID, "error", err)
		// The document stays in processing; reprocess can re-enqueue it.
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())
	docs, err := h.svc.List(r.Context(), t.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"documents": docs, "count": len(docs)})
}

func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (h *DocumentHandler) Status(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDoc(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": doc.ID.String(), "status": doc.Status})
}

func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDoc(w, r)
	if !ok {
		return
	}

	t := tenant.FromContext(r.Context())
	if err := h.svc.Delete(r.Context(), t.ID, doc.ID); err != nil {
		writeDetail(w, http.StatusInternalServerError, "delete document")
		return
	}
	if err := h.chunks.DeleteByDocument(r.Context(), doc.ID); err != nil {
		slog.Warn("delete chunks failed", "document_id", doc.ID, "error", err)
	}
	if err := h.store.Delete(r.Context(), doc.URL); err != nil {
		slog.Warn("delete stored file failed", "document_id", doc.ID, "error", err)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Reprocess handles POST /documents/{id}/reprocess: re-run ingestion for a
// failed or stale document.
func (h *DocumentHandler) Reprocess(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.loadDoc(w, r)
	if !ok {
		return
	}

	t := tenant.FromContext(r.Context())
	if err := h.svc.UpdateStatus(r.Context(), doc.ID, models.DocStatusProcessing); err != nil {
		writeDetail(w, http.StatusInternalServerError, "update status")
		return
	}
	if err := h.qc.EnqueueDocumentProcess(queue.DocumentProcessPayload{
		DocumentID: doc.ID.String(),
		TenantID:   t.ID.String(),
	}); err != nil {
		slog.Error("enqueue reprocess failed", "document_id", doc.ID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "enqueue processing task")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"id": doc.ID.String(), "status": models.DocStatusProcessing})
}

func (h *DocumentHandler) loadDoc(w http.ResponseWriter, r *http.Request) (*models.Document, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid document ID")
		return nil, false
	}

	t := tenant.FromContext(r.Context())
	doc, err := h.svc.Get(r.Context(), t.ID, id)
	if errors.Is(err, document.ErrNotFound) {
		writeDetail(w, http.StatusNotFound, "document not found")
		return nil, false
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "load document")
		return nil, false
	}
	return doc, true
}
