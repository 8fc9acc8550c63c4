// Package llm holds the vendor chat clients. Each client speaks its
// vendor's wire schema directly over the resilient HTTP layer and
// normalizes responses to one canonical shape.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/ragstack/ragchat/internal/httpx"
	"github.com/ragstack/ragchat/internal/models"
)

// Message is the canonical chat message. Role is one of system, user,
// assistant; vendors that use other role names remap internally.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage is the canonical token accounting, normalized from each vendor's
// field names. Absent fields default to zero.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Options carries the per-call generation parameters.
type Options struct {
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// StreamChunk is one item of a streaming response. A chunk with Err set is
// terminal; the channel closes after the final chunk. The stream is a
// forward-only cursor over network data and cannot be replayed.
type StreamChunk struct {
	Delta string
	Err   error
}

// ChatClient is the uniform interface over the supported vendors.
type ChatClient interface {
	// Chat issues a non-streaming completion and returns the answer text,
	// normalized usage, and the model name the vendor resolved.
	Chat(ctx context.Context, messages []Message, opts Options) (string, Usage, string, error)
	// Stream opens an event-stream completion and emits text deltas as
	// they arrive. Establishing the connection may fail; after that,
	// failures arrive as a terminal Err chunk.
	Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error)
}

// New constructs the client for a vendor. This switch is the single
// dispatch point: adding a vendor means adding a case here and an
// implementation file, nothing else.
func New(vendor, model, apiKey, baseURL string, hc *httpx.Client) (ChatClient, error) {
	switch vendor {
	case models.ProviderOpenAI:
		return NewOpenAIClient(model, apiKey, baseURL, hc), nil
	case models.ProviderGemini:
		return NewGeminiClient(model, apiKey, hc), nil
	case models.ProviderDeepSeek:
		return NewDeepSeekClient(model, apiKey, hc), nil
	default:
		return nil, fmt.Errorf("unsupported provider %q", vendor)
	}
}

// upstreamKey scopes breaker state to vendor+model, so one degraded model
// does not short-circuit a vendor's other models.
func upstreamKey(vendor, model string) string {
	return vendor + ":" + model
}
