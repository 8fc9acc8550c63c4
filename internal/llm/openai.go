package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ragstack/ragchat/internal/httpx"
	"github.com/ragstack/ragchat/internal/models"
)

const openAIDefaultBase = "https://api.openai.com/v1"

// OpenAIClient speaks the Chat Completions wire schema. A base URL override
// points it at OpenAI-compatible backends; the DeepSeek client wraps it with
// its own vendor label so breaker state stays per-vendor.
type OpenAIClient struct {
	vendor  string
	model   string
	apiKey  string
	baseURL string
	hc      *httpx.Client
}

func NewOpenAIClient(model, apiKey, baseURL string, hc *httpx.Client) *OpenAIClient {
	if baseURL == "" {
		baseURL = openAIDefaultBase
	}
	return &OpenAIClient{vendor: models.ProviderOpenAI, model: model, apiKey: apiKey, baseURL: baseURL, hc: hc}
}

type openAIRequest struct {
	Model         string              `json:"model"`
	Messages      []Message           `json:"messages"`
	MaxTokens     int                 `json:"max_tokens"`
	Temperature   float64             `json:"temperature"`
	Stream        bool                `json:"stream,omitempty"`
	StreamOptions *openAIStreamOption `json:"stream_options,omitempty"`
}

type openAIStreamOption struct {
	IncludeUsage bool `json:"include_usage"`
}

type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}

func (c *OpenAIClient) headers() map[string]string {
	return map[string]string{
		"Authorization": "Bearer " + c.apiKey,
		"Accept":        "application/json",
	}
}

func (c *OpenAIClient) Chat(ctx context.Context, messages []Message, opts Options) (string, Usage, string, error) {
	body := openAIRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}

	resp, err := c.hc.PostJSON(ctx, upstreamKey(c.vendor, c.model), c.baseURL+"/chat/completions", c.headers(), body, opts.Timeout)
	if err != nil {
		return "", Usage{}, "", fmt.Errorf("%s chat: %w", c.vendor, err)
	}
	if resp.StatusCode >= 400 {
		return "", Usage{}, "", fmt.Errorf("%s api error %d: %s", c.vendor, resp.StatusCode, resp.Body)
	}

	var data openAIResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return "", Usage{}, "", fmt.Errorf("%s chat: decode response: %w", c.vendor, err)
	}

	// A tool-call turn carries no content; an empty answer is valid.
	answer := ""
	if len(data.Choices) > 0 {
		answer = data.Choices[0].Message.Content
	}
	model := data.Model
	if model == "" {
		model = c.model
	}
	return answer, data.Usage, model, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	body := openAIRequest{
		Model:         c.model,
		Messages:      messages,
		MaxTokens:     opts.MaxTokens,
		Temperature:   opts.Temperature,
		Stream:        true,
		StreamOptions: &openAIStreamOption{IncludeUsage: false},
	}

	stream, err := c.hc.OpenStream(ctx, upstreamKey(c.vendor, c.model), c.baseURL+"/chat/completions", c.headers(), nil, body, opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%s stream: %w", c.vendor, err)
	}
	if stream.StatusCode >= 400 {
		defer stream.Body.Close()
		detail := readErrorBody(stream.Body)
		return nil, fmt.Errorf("%s api error %d: %s", c.vendor, stream.StatusCode, detail)
	}

	ch := make(chan StreamChunk, streamBuffer)
	go func() {
		defer close(ch)
		defer stream.Body.Close()

		sc := httpx.NewSSEScanner(stream.Body)
		for {
			datum, ok := sc.Next()
			if !ok {
				if err := sc.Err(); err != nil {
					emit(ctx, ch, StreamChunk{Err: fmt.Errorf("openai stream: %w", err)})
				}
				return
			}
			if datum == "" || datum == doneMarker {
				return
			}
			var chunk openAIResponse
			if err := json.Unmarshal([]byte(datum), &chunk); err != nil {
				continue // malformed frame: no data this tick
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			if delta := chunk.Choices[0].Delta.Content; delta != "" {
				if !emit(ctx, ch, StreamChunk{Delta: delta}) {
					return
				}
			}
		}
	}()
	return ch, nil
}

// openAICompat derives a client for a vendor that reuses this wire schema.
func openAICompat(vendor, model, apiKey, baseURL string, hc *httpx.Client) *OpenAIClient {
	return &OpenAIClient{vendor: vendor, model: model, apiKey: apiKey, baseURL: baseURL, hc: hc}
}

const (
	doneMarker   = "[DONE]"
	streamBuffer = 64
)

// emit sends unless the consumer has gone away.
func emit(ctx context.Context, ch chan<- StreamChunk, chunk StreamChunk) bool {
	select {
	case ch <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// readErrorBody captures enough of a failed handshake body to be useful in
// an error message without trusting its size.
func readErrorBody(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 4096))
	return string(data)
}

var _ ChatClient = (*OpenAIClient)(nil)
