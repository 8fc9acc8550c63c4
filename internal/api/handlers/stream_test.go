package handlers

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/ragchat/internal/chat"
	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/llm"
)

func newStreamHandler(deltas []string) *StreamHandler {
	factory := func(vendor, model, apiKey string) (llm.ChatClient, error) {
		return stubChatClient{deltas: deltas}, nil
	}
	svc := chat.NewService(stubResolver{}, stubRetriever{}, factory,
		config.LLMConfig{ChatTimeout: time.Second, StreamTimeout: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	return NewStreamHandler(svc, retrievalCfg())
}

type sseFrame struct {
	event string
	data  string
}

func parseSSE(t *testing.T, body string) []sseFrame {
	t.Helper()
	var frames []sseFrame
	for _, raw := range strings.Split(body, "\n\n") {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		var f sseFrame
		var dataLines []string
		for _, line := range strings.Split(raw, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				f.event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
			}
		}
		f.data = strings.Join(dataLines, "\n")
		frames = append(frames, f)
	}
	return frames
}

func TestStreamSSEFraming(t *testing.T) {
	h := newStreamHandler([]string{"one", "two", "three"})
	r := tenantRequest(http.MethodPost, "/api/v1/chat/stream", chatBody)
	w := httptest.NewRecorder()

	h.Complete(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := parseSSE(t, w.Body.String())
	require.Len(t, frames, 8, "start, 2 citations, 3 deltas, end, [DONE]")

	assert.Equal(t, chat.EventMessageStart, frames[0].event)
	assert.Contains(t, frames[0].data, `"session_id":"s1"`)
	assert.Contains(t, frames[0].data, `"model":"gpt-4o-mini"`)

	for _, f := range frames[1:3] {
		assert.Equal(t, chat.EventCitation, f.event)
		assert.Contains(t, f.data, `"chunk_index"`)
	}

	for i, want := range []string{"one", "two", "three"} {
		assert.Equal(t, chat.EventDelta, frames[3+i].event)
		assert.Contains(t, frames[3+i].data, want)
	}

	assert.Equal(t, chat.EventMessageEnd, frames[6].event)

	last := frames[7]
	assert.Empty(t, last.event)
	assert.Equal(t, "[DONE]", last.data)
}

func TestStreamEndsWithDoneEvenWhenEmpty(t *testing.T) {
	h := newStreamHandler(nil)
	r := tenantRequest(http.MethodPost, "/api/v1/chat/stream", chatBody)
	w := httptest.NewRecorder()

	h.Complete(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasSuffix(w.Body.String(), "data: [DONE]\n\n"))
}

func TestStreamSetupFailureEmitsErrorFrame(t *testing.T) {
	factory := func(vendor, model, apiKey string) (llm.ChatClient, error) {
		return stubChatClient{}, nil
	}
	svc := chat.NewService(noProviderResolver{}, stubRetriever{}, factory,
		config.LLMConfig{ChatTimeout: time.Second, StreamTimeout: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))
	h := NewStreamHandler(svc, retrievalCfg())

	r := tenantRequest(http.MethodPost, "/api/v1/chat/stream", chatBody)
	w := httptest.NewRecorder()

	h.Complete(w, r)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))

	frames := parseSSE(t, w.Body.String())
	require.Len(t, frames, 2, "error frame, then [DONE]")
	assert.Equal(t, chat.EventError, frames[0].event)
	assert.Contains(t, frames[0].data, "no chat provider configured")
	assert.Equal(t, "[DONE]", frames[1].data)
}

func TestStreamRejectsInvalidBodyBeforeStreaming(t *testing.T) {
	h := newStreamHandler(nil)
	r := tenantRequest(http.MethodPost, "/api/v1/chat/stream", `{"messages":[]}`)
	w := httptest.NewRecorder()

	h.Complete(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
}
