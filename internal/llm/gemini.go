package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ragstack/ragchat/internal/httpx"
	"github.com/ragstack/ragchat/internal/models"
)

const geminiBase = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiClient speaks the generateContent wire schema. Gemini differs from
// the OpenAI-style vendors on every axis that matters: role names, where
// system prompts live, auth header, and how streaming is requested.
type GeminiClient struct {
	model   string
	apiKey  string
	baseURL string
	hc      *httpx.Client
}

func NewGeminiClient(model, apiKey string, hc *httpx.Client) *GeminiClient {
	return &GeminiClient{model: model, apiKey: apiKey, baseURL: geminiBase, hc: hc}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	GenerationConfig  struct {
		MaxOutputTokens int     `json:"maxOutputTokens"`
		Temperature     float64 `json:"temperature"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
	ModelVersion string `json:"modelVersion"`
}

// buildRequest translates canonical messages into Gemini's shape: system
// messages collect into a single systemInstruction, assistant becomes
// "model", and empty-content turns are dropped (the API rejects them).
func (c *GeminiClient) buildRequest(messages []Message, opts Options) geminiRequest {
	var req geminiRequest
	var systemParts []string
	for _, m := range messages {
		if m.Role == "system" {
			if m.Content != "" {
				systemParts = append(systemParts, m.Content)
			}
			continue
		}
		if m.Content == "" {
			continue
		}
		role := "user"
		if m.Role == "assistant" {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}
	if len(systemParts) > 0 {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: strings.Join(systemParts, "\n\n")}},
		}
	}
	req.GenerationConfig.MaxOutputTokens = opts.MaxTokens
	req.GenerationConfig.Temperature = opts.Temperature
	return req
}

func (c *GeminiClient) headers() map[string]string {
	return map[string]string{"x-goog-api-key": c.apiKey}
}

func (r *geminiResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

func (r *geminiResponse) usage() Usage {
	return Usage{
		PromptTokens:     r.UsageMetadata.PromptTokenCount,
		CompletionTokens: r.UsageMetadata.CandidatesTokenCount,
		TotalTokens:      r.UsageMetadata.TotalTokenCount,
	}
}

func (c *GeminiClient) Chat(ctx context.Context, messages []Message, opts Options) (string, Usage, string, error) {
	url := fmt.Sprintf("%s/%s:generateContent", c.baseURL, c.model)
	resp, err := c.hc.PostJSON(ctx, upstreamKey(models.ProviderGemini, c.model), url, c.headers(), c.buildRequest(messages, opts), opts.Timeout)
	if err != nil {
		return "", Usage{}, "", fmt.Errorf("gemini chat: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", Usage{}, "", fmt.Errorf("gemini api error %d: %s", resp.StatusCode, resp.Body)
	}

	var data geminiResponse
	if err := json.Unmarshal(resp.Body, &data); err != nil {
		return "", Usage{}, "", fmt.Errorf("gemini chat: decode response: %w", err)
	}

	model := data.ModelVersion
	if model == "" {
		model = c.model
	}
	return data.text(), data.usage(), model, nil
}

func (c *GeminiClient) Stream(ctx context.Context, messages []Message, opts Options) (<-chan StreamChunk, error) {
	url := fmt.Sprintf("%s/%s:streamGenerateContent", c.baseURL, c.model)
	// Without alt=sse Gemini streams a JSON array, not event-stream frames.
	params := map[string]string{"alt": "sse"}

	stream, err := c.hc.OpenStream(ctx, upstreamKey(models.ProviderGemini, c.model), url, c.headers(), params, c.buildRequest(messages, opts), opts.Timeout)
	if err != nil {
		return nil, fmt.Errorf("gemini stream: %w", err)
	}
	if stream.StatusCode >= 400 {
		defer stream.Body.Close()
		detail := readErrorBody(stream.Body)
		return nil, fmt.Errorf("gemini api error %d: %s", stream.StatusCode, detail)
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
					emit(ctx, ch, StreamChunk{Err: fmt.Errorf("gemini stream: %w", err)})
				}
				return
			}
			// Gemini ends the stream by closing it; no [DONE] sentinel.
			var chunk geminiResponse
			if err := json.Unmarshal([]byte(datum), &chunk); err != nil {
				continue
			}
			if delta := chunk.text(); delta != "" {
				if !emit(ctx, ch, StreamChunk{Delta: delta}) {
					return
				}
			}
		}
	}()
	return ch, nil
}

var _ ChatClient = (*GeminiClient)(nil)
