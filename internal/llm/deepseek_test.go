package llm

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/ragchat/internal/models"
)

func TestDeepSeekChatIgnoresReasoningContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer ds-key", r.Header.Get("Authorization"))
		io.WriteString(w, `{
			"model": "deepseek-reasoner",
			"choices": [{"message": {
				"content": "final answer",
				"reasoning_content": "step 1... step 2..."
			}}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 9, "total_tokens": 29}
		}`)
	}))
	defer srv.Close()

	c := NewDeepSeekClient("deepseek-reasoner", "ds-key", testHTTPClient())
	c.inner.baseURL = srv.URL

	answer, usage, model, err := c.Chat(context.Background(), []Message{{Role: "user", Content: "why"}}, testOptions())
	require.NoError(t, err)
	assert.Equal(t, "final answer", answer)
	assert.NotContains(t, answer, "step 1")
	assert.Equal(t, 29, usage.TotalTokens)
	assert.Equal(t, "deepseek-reasoner", model)
}

func TestDeepSeekStreamIgnoresReasoningDeltas(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, `data: {"choices":[{"delta":{"reasoning_content":"thinking..."}}]}`+"\n\n")
		io.WriteString(w, `data: {"choices":[{"delta":{"content":"done"}}]}`+"\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewDeepSeekClient("deepseek-chat", "ds-key", testHTTPClient())
	c.inner.baseURL = srv.URL

	ch, err := c.Stream(context.Background(), []Message{{Role: "user", Content: "hi"}}, testOptions())
	require.NoError(t, err)

	var got string
	for chunk := range ch {
		require.NoError(t, chunk.Err)
		got += chunk.Delta
	}
	assert.Equal(t, "done", got)
}

func TestNewDispatch(t *testing.T) {
	hc := testHTTPClient()

	for _, vendor := range []string{models.ProviderOpenAI, models.ProviderGemini, models.ProviderDeepSeek} {
		client, err := New(vendor, "some-model", "key", "", hc)
		require.NoError(t, err, vendor)
		require.NotNil(t, client, vendor)
	}

	_, err := New("anthropic", "claude", "key", "", hc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}
