package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/retrieval"
	"github.com/ragstack/ragchat/internal/tenant"
)

type SearchHandler struct {
	retriever *retrieval.Retriever
	retrv     config.RetrievalConfig
}

func NewSearchHandler(retriever *retrieval.Retriever, retrv config.RetrievalConfig) *SearchHandler {
	return &SearchHandler{retriever: retriever, retrv: retrv}
}

type searchResultItem struct {
	DocumentID   string  `json:"document_id"`
	DocumentName string  `json:"document_name"`
	ChunkIndex   int     `json:"chunk_index"`
	Content      string  `json:"content"`
	Score        float64 `json:"score"`
}

// Search handles POST /search: raw tenant-scoped similarity search, no LLM
// in the loop.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validateSearch(h.retrv); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	docIDs, err := req.documentIDs()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	t := tenant.FromContext(r.Context())
	results, err := h.retriever.Retrieve(r.Context(), retrieval.Query{
		TenantID:    t.ID,
		Text:        req.Query,
		TopK:        *req.TopK,
		DocumentIDs: docIDs,
		FileTypes:   req.FileTypes,
	})
	if err != nil {
		slog.Error("search failed", "tenant_id", t.ID, "error", err)
		writeDetail(w, http.StatusInternalServerError, "search failed")
		return
	}

	items := make([]searchResultItem, 0, len(results))
	for _, res := range results {
		items = append(items, searchResultItem{
			DocumentID:   res.DocumentID.String(),
			DocumentName: res.DocumentName,
			ChunkIndex:   res.ChunkIndex,
			Content:      res.Content,
			Score:        res.Score,
		})
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": items, "count": len(items)})
}
