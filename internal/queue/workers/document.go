// Package workers holds the asynq task handlers run by the worker binary.
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/ragstack/ragchat/internal/ingest"
	"github.com/ragstack/ragchat/internal/queue"
)

type DocumentWorker struct {
	pipeline *ingest.Pipeline
}

func NewDocumentWorker(pipeline *ingest.Pipeline) *DocumentWorker {
	return &DocumentWorker{pipeline: pipeline}
}

func (w *DocumentWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.DocumentProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}

	docID, err := uuid.Parse(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("parse document ID: %w", err)
	}

	slog.Info("processing document task", "document_id", docID, "tenant_id", payload.TenantID)
	return w.pipeline.ProcessDocument(ctx, docID)
}
