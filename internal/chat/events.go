package chat

import (
	"github.com/google/uuid"

	"github.com/ragstack/ragchat/internal/llm"
)

// Streaming event names, in emission order. At most one error event is
// emitted and it is always terminal.
const (
	EventMessageStart = "message_start"
	EventCitation     = "citation"
	EventDelta        = "delta"
	EventMessageEnd   = "message_end"
	EventError        = "error"
)

// Event is one frame of a streaming chat response. Data marshals to the
// event's JSON payload.
type Event struct {
	Type string
	Data any
}

// Citation points a response back at the chunk that grounded it.
type Citation struct {
	DocumentID   uuid.UUID `json:"doc_id"`
	DocumentName string    `json:"document_name"`
	ChunkIndex   int       `json:"chunk_index"`
	Score        float64   `json:"score"`
}

type MessageStartData struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`
	Created   int64  `json:"created"`
}

type DeltaData struct {
	Text string `json:"text"`
}

type MessageEndData struct {
	Usage     llm.Usage `json:"usage"`
	LatencyMS int64     `json:"latency_ms"`
}

type ErrorData struct {
	Detail string `json:"detail"`
}
