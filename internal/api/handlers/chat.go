package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ragstack/ragchat/internal/chat"
	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/httpx"
	"github.com/ragstack/ragchat/internal/idempotency"
	"github.com/ragstack/ragchat/internal/tenant"
)

const idempotencyHeader = "Idempotency-Key"

type ChatHandler struct {
	svc   *chat.Service
	idem  *idempotency.Store
	retrv config.RetrievalConfig
}

func NewChatHandler(svc *chat.Service, idem *idempotency.Store, retrv config.RetrievalConfig) *ChatHandler {
	return &ChatHandler{svc: svc, idem: idem, retrv: retrv}
}

// Complete handles POST /chat. The Idempotency-Key header is mandatory:
// a replayed key returns the cached response byte for byte, and a key whose
// first request is still running gets a 409.
func (h *ChatHandler) Complete(w http.ResponseWriter, r *http.Request) {
	key := r.Header.Get(idempotencyHeader)
	if key == "" {
		writeDetail(w, http.StatusBadRequest, "Idempotency-Key header required")
		return
	}
	// Keys are tenant-scoped so tenants cannot collide with, or probe,
	// each other's cached responses.
	t := tenant.FromContext(r.Context())
	scopedKey := t.ID.String() + ":" + key

	if cached, ok, err := h.idem.Result(r.Context(), scopedKey); err != nil {
		slog.Warn("idempotency lookup failed", "error", err)
	} else if ok {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Idempotency-Replayed", "true")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	reserved, err := h.idem.Reserve(r.Context(), scopedKey)
	if err != nil {
		slog.Warn("idempotency reserve failed", "error", err)
	} else if !reserved {
		// Reservation held but no stored result: the first request is
		// either mid-flight or failed inside its TTL.
		if cached, ok, err := h.idem.Result(r.Context(), scopedKey); err == nil && ok {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Idempotency-Replayed", "true")
			w.WriteHeader(http.StatusOK)
			w.Write(cached)
			return
		}
		writeDetail(w, http.StatusConflict, "Duplicate request in progress")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validateChat(h.retrv); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	docIDs, err := req.documentIDs()
	if err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.svc.Complete(r.Context(), chat.Request{
		TenantID:    t.ID,
		SessionID:   req.SessionID,
		Messages:    req.messages(),
		MaxTokens:   *req.MaxTokens,
		Temperature: *req.Temperature,
		TopK:        *req.TopK,
		DocumentIDs: docIDs,
		FileTypes:   req.FileTypes,
	})
	if err != nil {
		writeChatError(w, err)
		return
	}

	body, err := json.Marshal(resp)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "encode response")
		return
	}
	if err := h.idem.SaveResult(r.Context(), scopedKey, body); err != nil {
		slog.Warn("idempotency save failed", "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// chatErrorDetail maps orchestrator errors to a status and a client-safe
// detail string. The stream handler reuses the detail for its terminal
// error frame.
func chatErrorDetail(err error) (int, string) {
	switch {
	case errors.Is(err, chat.ErrProviderNotConfigured):
		return http.StatusInternalServerError, "no chat provider configured; set one via PUT /api/v1/chatbot/provider"
	case errors.Is(err, httpx.ErrCircuitOpen):
		// Distinct from a plain upstream failure so clients and monitors
		// can tell "degraded upstream" apart from "bad request".
		return http.StatusServiceUnavailable, "provider temporarily unavailable"
	default:
		slog.Error("chat failed", "error", err)
		return http.StatusInternalServerError, "chat provider request failed"
	}
}

func writeChatError(w http.ResponseWriter, err error) {
	status, detail := chatErrorDetail(err)
	writeDetail(w, status, detail)
}
