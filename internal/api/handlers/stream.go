package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ragstack/ragchat/internal/chat"
	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/tenant"
)

type StreamHandler struct {
	svc   *chat.Service
	retrv config.RetrievalConfig
}

func NewStreamHandler(svc *chat.Service, retrv config.RetrievalConfig) *StreamHandler {
	return &StreamHandler{svc: svc, retrv: retrv}
}

// Complete handles POST /chat/stream as server-sent events. Validation
// errors are plain JSON; once the request is accepted, every failure, setup
// included, becomes a terminal error event followed by [DONE] so clients
// always read a well-formed stream.
func (h *StreamHandler) Complete(w http.ResponseWriter, r *http.Request) {
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

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeDetail(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	t := tenant.FromContext(r.Context())
	events, streamErr := h.svc.Stream(r.Context(), chat.Request{
		TenantID:    t.ID,
		SessionID:   req.SessionID,
		Messages:    req.messages(),
		MaxTokens:   *req.MaxTokens,
		Temperature: *req.Temperature,
		TopK:        *req.TopK,
		DocumentIDs: docIDs,
		FileTypes:   req.FileTypes,
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sw := sseWriter{w: w, flusher: flusher}
	if streamErr != nil {
		// Setup failures (no provider, retrieval, provider handshake)
		// honor the stream contract too: one error frame, then the
		// terminator.
		_, detail := chatErrorDetail(streamErr)
		if payload, err := json.Marshal(chat.ErrorData{Detail: detail}); err == nil {
			sw.writeEvent(chat.EventError, payload)
		}
	} else {
		for ev := range events {
			payload, err := json.Marshal(ev.Data)
			if err != nil {
				continue
			}
			sw.writeEvent(ev.Type, payload)
		}
	}
	// The terminator is unconditional so clients always see end of stream,
	// error included.
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// writeEvent emits one SSE frame. Multi-line payloads repeat the data:
// prefix per line, as the protocol requires.
func (s sseWriter) writeEvent(name string, payload []byte) {
	fmt.Fprintf(s.w, "event: %s\n", name)
	for _, line := range strings.Split(string(payload), "\n") {
		fmt.Fprintf(s.w, "data: %s\n", line)
	}
	fmt.Fprint(s.w, "\n")
	s.flusher.Flush()
}
