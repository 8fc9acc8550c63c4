package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ragstack/ragchat/internal/chatbot"
	"github.com/ragstack/ragchat/internal/tenant"
)

type ChatbotHandler struct {
	svc *chatbot.Service
}

func NewChatbotHandler(svc *chatbot.Service) *ChatbotHandler {
	return &ChatbotHandler{svc: svc}
}

func (h *ChatbotHandler) Get(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())
	bot, err := h.svc.GetOrCreate(r.Context(), t.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "load chatbot")
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *ChatbotHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateChatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	t := tenant.FromContext(r.Context())
	bot, err := h.svc.Update(r.Context(), t.ID, req.Name, req.Tone, req.SystemInstructions)
	if errors.Is(err, chatbot.ErrInvalidTone) {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "update chatbot")
		return
	}
	writeJSON(w, http.StatusOK, bot)
}

func (h *ChatbotHandler) GetProvider(w http.ResponseWriter, r *http.Request) {
	t := tenant.FromContext(r.Context())
	p, err := h.svc.GetProvider(r.Context(), t.ID)
	if errors.Is(err, chatbot.ErrNoProvider) {
		writeDetail(w, http.StatusNotFound, "no provider configured")
		return
	}
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "load provider")
		return
	}
	// The encrypted credential is json:"-"; only metadata goes out.
	writeJSON(w, http.StatusOK, p)
}

func (h *ChatbotHandler) UpsertProvider(w http.ResponseWriter, r *http.Request) {
	var req upsertProviderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, err.Error())
		return
	}

	t := tenant.FromContext(r.Context())
	p, err := h.svc.UpsertProvider(r.Context(), t.ID, req.Provider, req.ModelName, req.APIKey)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, "save provider")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
