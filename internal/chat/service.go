// Package chat orchestrates a turn: resolve the tenant's provider, retrieve
// grounding chunks, assemble the system prompt, and call the vendor.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ragstack/ragchat/internal/chatbot"
	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/llm"
	"github.com/ragstack/ragchat/internal/retrieval"
	"github.com/ragstack/ragchat/internal/vectorstore"
)

var ErrProviderNotConfigured = errors.New("chat provider not configured")

// ProviderResolver yields the tenant's decrypted provider configuration.
type ProviderResolver interface {
	ResolveProvider(ctx context.Context, tenantID uuid.UUID) (*chatbot.ProviderConfig, error)
}

// Retriever finds the chunks closest to a query text.
type Retriever interface {
	Retrieve(ctx context.Context, q retrieval.Query) ([]vectorstore.SearchResult, error)
}

// ClientFactory builds the vendor client for a resolved provider. Split out
// so tests can substitute a scripted client.
type ClientFactory func(vendor, model, apiKey string) (llm.ChatClient, error)

// Request is a validated chat turn. Messages carry the conversation so far;
// the service prepends its own system message.
type Request struct {
	TenantID    uuid.UUID
	SessionID   string
	Messages    []llm.Message
	MaxTokens   int
	Temperature float64
	TopK        int
	DocumentIDs []uuid.UUID
	FileTypes   []string
}

type Response struct {
	ID        string     `json:"id"`
	SessionID string     `json:"session_id"`
	Model     string     `json:"model"`
	Created   int64      `json:"created"`
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	Usage     llm.Usage  `json:"usage"`
	LatencyMS int64      `json:"latency_ms"`
}

type Service struct {
	resolver  ProviderResolver
	retriever Retriever
	factory   ClientFactory
	cfg       config.LLMConfig
	logger    *slog.Logger
}

func NewService(resolver ProviderResolver, retriever Retriever, factory ClientFactory, cfg config.LLMConfig, logger *slog.Logger) *Service {
	return &Service{
		resolver:  resolver,
		retriever: retriever,
		factory:   factory,
		cfg:       cfg,
		logger:    logger,
	}
}

// Complete runs one synchronous chat turn.
func (s *Service) Complete(ctx context.Context, req Request) (*Response, error) {
	started := time.Now()

	client, pc, citations, messages, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	answer, usage, model, err := client.Chat(ctx, messages, llm.Options{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Timeout:     s.cfg.ChatTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("provider chat: %w", err)
	}

	s.logger.Info("chat completed",
		"tenant_id", req.TenantID,
		"provider", pc.Provider,
		"model", model,
		"citations", len(citations),
		"total_tokens", usage.TotalTokens,
		"latency_ms", time.Since(started).Milliseconds(),
	)

	return &Response{
		ID:        responseID(started),
		SessionID: req.SessionID,
		Model:     model,
		Created:   started.Unix(),
		Answer:    answer,
		Citations: citations,
		Usage:     usage,
		LatencyMS: time.Since(started).Milliseconds(),
	}, nil
}

// Stream runs one streaming chat turn. Events arrive in a fixed order:
// message_start, one citation per retrieved chunk, zero or more deltas,
// then message_end, or a single terminal error. The channel closes when
// the turn is over.
func (s *Service) Stream(ctx context.Context, req Request) (<-chan Event, error) {
	started := time.Now()

	client, pc, citations, messages, err := s.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	chunks, err := client.Stream(ctx, messages, llm.Options{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Timeout:     s.cfg.StreamTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("provider stream: %w", err)
	}

	events := make(chan Event, 16)
	go func() {
		defer close(events)

		send := func(ev Event) bool {
			select {
			case events <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		if !send(Event{Type: EventMessageStart, Data: MessageStartData{
			ID:        responseID(started),
			SessionID: req.SessionID,
			Model:     pc.Model,
			Created:   started.Unix(),
		}}) {
			return
		}
		for _, c := range citations {
			if !send(Event{Type: EventCitation, Data: c}) {
				return
			}
		}

		for chunk := range chunks {
			if chunk.Err != nil {
				s.logger.Error("stream failed mid-flight",
					"tenant_id", req.TenantID, "provider", pc.Provider, "error", chunk.Err)
				send(Event{Type: EventError, Data: ErrorData{Detail: "upstream stream interrupted"}})
				return
			}
			if !send(Event{Type: EventDelta, Data: DeltaData{Text: chunk.Delta}}) {
				return
			}
		}

		send(Event{Type: EventMessageEnd, Data: MessageEndData{
			LatencyMS: time.Since(started).Milliseconds(),
		}})
	}()
	return events, nil
}

// prepare does the work shared by both modes: provider resolution,
// retrieval, and prompt assembly.
func (s *Service) prepare(ctx context.Context, req Request) (llm.ChatClient, *chatbot.ProviderConfig, []Citation, []llm.Message, error) {
	pc, err := s.resolver.ResolveProvider(ctx, req.TenantID)
	if errors.Is(err, chatbot.ErrNoProvider) {
		return nil, nil, nil, nil, ErrProviderNotConfigured
	}
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("resolve provider: %w", err)
	}

	client, err := s.factory(pc.Provider, pc.Model, pc.APIKey)
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("build provider client: %w", err)
	}

	var results []vectorstore.SearchResult
	if query := retrievalQuery(req.Messages); query != "" {
		results, err = s.retriever.Retrieve(ctx, retrieval.Query{
			TenantID:    req.TenantID,
			Text:        query,
			TopK:        req.TopK,
			DocumentIDs: req.DocumentIDs,
			FileTypes:   req.FileTypes,
		})
		if err != nil {
			return nil, nil, nil, nil, fmt.Errorf("retrieve context: %w", err)
		}
	}

	citations := make([]Citation, 0, len(results))
	for _, r := range results {
		citations = append(citations, Citation{
			DocumentID:   r.DocumentID,
			DocumentName: r.DocumentName,
			ChunkIndex:   r.ChunkIndex,
			Score:        r.Score,
		})
	}

	messages := make([]llm.Message, 0, len(req.Messages)+1)
	messages = append(messages, llm.Message{Role: "system", Content: buildSystemPrompt(pc, results)})
	messages = append(messages, req.Messages...)

	return client, pc, citations, messages, nil
}

// retrievalQuery joins the user turns into one search text. Assistant and
// system turns carry no retrieval signal.
func retrievalQuery(messages []llm.Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == "user" && strings.TrimSpace(m.Content) != "" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n\n")
}

func buildSystemPrompt(pc *chatbot.ProviderConfig, results []vectorstore.SearchResult) string {
	bot := pc.Chatbot
	var sb strings.Builder
	fmt.Fprintf(&sb, "You are %s, an assistant with a %s tone. Answer using the provided context when it is relevant, and say so when it is not sufficient.",
		bot.Name, strings.ToLower(bot.Tone))

	if strings.TrimSpace(bot.SystemInstructions) != "" {
		sb.WriteString("\n\n")
		sb.WriteString(bot.SystemInstructions)
	}

	if len(results) > 0 {
		sb.WriteString("\n\nContext:\n")
		blocks := make([]string, 0, len(results))
		for _, r := range results {
			blocks = append(blocks, fmt.Sprintf("[%s #%d]\n%s", r.DocumentName, r.ChunkIndex, r.Content))
		}
		sb.WriteString(strings.Join(blocks, "\n\n---\n\n"))
	}
	return sb.String()
}

func responseID(t time.Time) string {
	return fmt.Sprintf("resp_%d", t.UnixMilli())
}
