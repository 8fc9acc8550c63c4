package queue

import (
	"github.com/hibiken/asynq"
)

// HandlersRegistry collects task handlers by type before the worker starts
// serving. The ingestion worker registers under TypeDocumentProcess.
type HandlersRegistry struct {
	mux *asynq.ServeMux
}

func NewHandlersRegistry() *HandlersRegistry {
	return &HandlersRegistry{mux: asynq.NewServeMux()}
}

func (r *HandlersRegistry) Register(taskType string, handler asynq.Handler) {
	r.mux.Handle(taskType, handler)
}

// Mux hands the assembled routing table to asynq.Server.Run.
func (r *HandlersRegistry) Mux() *asynq.ServeMux {
	return r.mux
}
