package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragstack/ragchat/internal/chatbot"
	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/llm"
	"github.com/ragstack/ragchat/internal/models"
	"github.com/ragstack/ragchat/internal/retrieval"
	"github.com/ragstack/ragchat/internal/vectorstore"
)

type fakeResolver struct {
	pc  *chatbot.ProviderConfig
	err error
}

func (f *fakeResolver) ResolveProvider(ctx context.Context, tenantID uuid.UUID) (*chatbot.ProviderConfig, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.pc, nil
}

type fakeRetriever struct {
	results   []vectorstore.SearchResult
	lastQuery retrieval.Query
	calls     int
	err       error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, q retrieval.Query) ([]vectorstore.SearchResult, error) {
	f.calls++
	f.lastQuery = q
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

type scriptedClient struct {
	answer       string
	usage        llm.Usage
	model        string
	chatErr      error
	deltas       []string
	streamErr    error
	lastMessages []llm.Message
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message, opts llm.Options) (string, llm.Usage, string, error) {
	c.lastMessages = messages
	if c.chatErr != nil {
		return "", llm.Usage{}, "", c.chatErr
	}
	return c.answer, c.usage, c.model, nil
}

func (c *scriptedClient) Stream(ctx context.Context, messages []llm.Message, opts llm.Options) (<-chan llm.StreamChunk, error) {
	c.lastMessages = messages
	ch := make(chan llm.StreamChunk, len(c.deltas)+1)
	for _, d := range c.deltas {
		ch <- llm.StreamChunk{Delta: d}
	}
	if c.streamErr != nil {
		ch <- llm.StreamChunk{Err: c.streamErr}
	}
	close(ch)
	return ch, nil
}

func testProviderConfig() *chatbot.ProviderConfig {
	return &chatbot.ProviderConfig{
		Chatbot: &models.Chatbot{
			ID:                 uuid.New(),
			Name:               "Support Bot",
			Tone:               models.ToneTechnical,
			SystemInstructions: "Always cite sources.",
		},
		Provider: models.ProviderOpenAI,
		Model:    "gpt-4o-mini",
		APIKey:   "sk-test",
	}
}

func testResults() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{DocumentID: uuid.New(), DocumentName: "handbook.pdf", ChunkIndex: 4, Content: "Refunds take 5 days.", Score: 0.91},
		{DocumentID: uuid.New(), DocumentName: "faq.md", ChunkIndex: 0, Content: "Contact support via email.", Score: 0.82},
	}
}

func newTestService(r *fakeResolver, ret *fakeRetriever, client *scriptedClient) *Service {
	factory := func(vendor, model, apiKey string) (llm.ChatClient, error) {
		return client, nil
	}
	cfg := config.LLMConfig{ChatTimeout: time.Second, StreamTimeout: time.Second}
	return NewService(r, ret, factory, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRequest() Request {
	return Request{
		TenantID:  uuid.New(),
		SessionID: "sess-1",
		Messages: []llm.Message{
			{Role: "user", Content: "How long do refunds take?"},
		},
		MaxTokens:   512,
		Temperature: 0.2,
		TopK:        6,
	}
}

func TestCompleteHappyPath(t *testing.T) {
	client := &scriptedClient{answer: "About 5 days.", usage: llm.Usage{TotalTokens: 40}, model: "gpt-4o-mini-2024"}
	ret := &fakeRetriever{results: testResults()}
	svc := newTestService(&fakeResolver{pc: testProviderConfig()}, ret, client)

	resp, err := svc.Complete(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(resp.ID, "resp_"))
	assert.Equal(t, "sess-1", resp.SessionID)
	assert.Equal(t, "gpt-4o-mini-2024", resp.Model)
	assert.Equal(t, "About 5 days.", resp.Answer)
	assert.Equal(t, 40, resp.Usage.TotalTokens)
	require.Len(t, resp.Citations, 2)
	assert.Equal(t, "handbook.pdf", resp.Citations[0].DocumentName)
	assert.Equal(t, 4, resp.Citations[0].ChunkIndex)
	assert.InDelta(t, 0.91, resp.Citations[0].Score, 1e-9)
}

func TestCompleteBuildsSystemPrompt(t *testing.T) {
	client := &scriptedClient{answer: "ok"}
	svc := newTestService(&fakeResolver{pc: testProviderConfig()}, &fakeRetriever{results: testResults()}, client)

	_, err := svc.Complete(context.Background(), testRequest())
	require.NoError(t, err)

	require.NotEmpty(t, client.lastMessages)
	system := client.lastMessages[0]
	assert.Equal(t, "system", system.Role)
	assert.Contains(t, system.Content, "Support Bot")
	assert.Contains(t, system.Content, "technical tone")
	assert.Contains(t, system.Content, "Always cite sources.")
	assert.Contains(t, system.Content, "Refunds take 5 days.")
	assert.Contains(t, system.Content, "\n\n---\n\n", "context blocks are separated")

	assert.Equal(t, "user", client.lastMessages[1].Role)
}

func TestCompleteRetrievalQueryUsesUserTurnsOnly(t *testing.T) {
	ret := &fakeRetriever{}
	svc := newTestService(&fakeResolver{pc: testProviderConfig()}, ret, &scriptedClient{answer: "ok"})

	req := testRequest()
	req.Messages = []llm.Message{
		{Role: "user", Content: "first question"},
		{Role: "assistant", Content: "an answer"},
		{Role: "user", Content: "follow-up"},
	}
	_, err := svc.Complete(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, "first question\n\nfollow-up", ret.lastQuery.Text)
	assert.Equal(t, req.TenantID, ret.lastQuery.TenantID)
	assert.Equal(t, 6, ret.lastQuery.TopK)
}

func TestCompleteSkipsRetrievalWithoutUserText(t *testing.T) {
	ret := &fakeRetriever{}
	svc := newTestService(&fakeResolver{pc: testProviderConfig()}, ret, &scriptedClient{answer: "ok"})

	req := testRequest()
	req.Messages = []llm.Message{{Role: "assistant", Content: "previous answer"}}
	resp, err := svc.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Zero(t, ret.calls)
	assert.Empty(t, resp.Citations)
}

func TestCompleteProviderNotConfigured(t *testing.T) {
	svc := newTestService(&fakeResolver{err: chatbot.ErrNoProvider}, &fakeRetriever{}, &scriptedClient{})
	_, err := svc.Complete(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestCompleteRetrievalFailure(t *testing.T) {
	svc := newTestService(&fakeResolver{pc: testProviderConfig()}, &fakeRetriever{err: errors.New("pg down")}, &scriptedClient{})
	_, err := svc.Complete(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "retrieve context")
}

func collectEvents(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var events []Event
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return events
			}
			events = append(events, ev)
		case <-deadline:
			t.Fatal("timed out waiting for events")
		}
	}
}

func TestStreamEventOrder(t *testing.T) {
	client := &scriptedClient{deltas: []string{"About ", "5 ", "days."}}
	svc := newTestService(&fakeResolver{pc: testProviderConfig()}, &fakeRetriever{results: testResults()}, client)

	ch, err := svc.Stream(context.Background(), testRequest())
	require.NoError(t, err)

	events := collectEvents(t, ch)
	require.Len(t, events, 7)

	assert.Equal(t, EventMessageStart, events[0].Type)
	start := events[0].Data.(MessageStartData)
	assert.Equal(t, "sess-1", start.SessionID)
	assert.Equal(t, "gpt-4o-mini", start.Model)

	for _, ev := range events[1:3] {
		require.Equal(t, EventCitation, ev.Type)
	}
	assert.Equal(t, 4, events[1].Data.(Citation).ChunkIndex)

	var answer string
	for _, ev := range events[3:6] {
		require.Equal(t, EventDelta, ev.Type)
		answer += ev.Data.(DeltaData).Text
	}
	assert.Equal(t, "About 5 days.", answer)

	assert.Equal(t, EventMessageEnd, events[6].Type)
}

func TestStreamMidFlightErrorIsTerminal(t *testing.T) {
	client := &scriptedClient{deltas: []string{"partial"}, streamErr: errors.New("connection reset")}
	svc := newTestService(&fakeResolver{pc: testProviderConfig()}, &fakeRetriever{}, client)

	ch, err := svc.Stream(context.Background(), testRequest())
	require.NoError(t, err)

	events := collectEvents(t, ch)
	last := events[len(events)-1]
	require.Equal(t, EventError, last.Type)
	assert.NotContains(t, last.Data.(ErrorData).Detail, "connection reset", "upstream detail is not leaked")

	for _, ev := range events[:len(events)-1] {
		assert.NotEqual(t, EventError, ev.Type, "only one error event, and it is last")
	}
}

func TestStreamProviderNotConfigured(t *testing.T) {
	svc := newTestService(&fakeResolver{err: chatbot.ErrNoProvider}, &fakeRetriever{}, &scriptedClient{})
	_, err := svc.Stream(context.Background(), testRequest())
	assert.ErrorIs(t, err, ErrProviderNotConfigured)
}

func TestStreamConsumerCancellation(t *testing.T) {
	client := &scriptedClient{deltas: make([]string, 100)}
	for i := range client.deltas {
		client.deltas[i] = "x"
	}
	svc := newTestService(&fakeResolver{pc: testProviderConfig()}, &fakeRetriever{}, client)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := svc.Stream(ctx, testRequest())
	require.NoError(t, err)

	<-ch
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, open := <-ch:
			if !open {
				return
			}
		case <-deadline:
			t.Fatal("event channel never closed after cancellation")
		}
	}
}
