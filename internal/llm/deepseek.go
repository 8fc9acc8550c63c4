package llm

import (
	"context"

	"github.com/ragstack/ragchat/internal/httpx"
	"github.com/ragstack/ragchat/internal/models"
)

const deepSeekBase = "https://api.deepseek.com/v1"

// DeepSeekClient rides the OpenAI-compatible endpoint at api.deepseek.com
// under its own vendor label, so its breaker state and error messages stay
// distinct from OpenAI's. Reasoner models additionally emit
// reasoning_content, which the shared response shape does not map, so
// chain-of-thought text never reaches callers.
type DeepSeekClient struct {
	inner *OpenAIClient
}

func NewDeepSeekClient(model, apiKey string, hc *httpx.Client) *DeepSeekClient {
	return &DeepSeekClient{inner: openAICompat(models.ProviderDeepSeek, model, apiKey, deepSeekBase, hc)}
}

func (c *DeepSeekClient) Chat(ctx context.Context, messages []Message, opts Options) (string, Usage, string, error) {
	return c.inner.Chat(ctx, messages, opts)
}

func (c *DeepSeekClient) Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	return c.inner.Stream(ctx, messages, opts)
}

var _ ChatClient = (*DeepSeekClient)(nil)
