package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"

	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/database"
	"github.com/ragstack/ragchat/internal/document"
	"github.com/ragstack/ragchat/internal/embedding"
	"github.com/ragstack/ragchat/internal/extract"
	"github.com/ragstack/ragchat/internal/ingest"
	"github.com/ragstack/ragchat/internal/queue"
	"github.com/ragstack/ragchat/internal/queue/workers"
	"github.com/ragstack/ragchat/internal/storage"
	"github.com/ragstack/ragchat/internal/vectorstore"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		slog.Error("database unavailable", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	embedSvc, err := embedding.NewService(cfg.Embedding)
	if err != nil {
		slog.Error("embedding service unavailable", "error", err)
		os.Exit(1)
	}

	docSvc := document.NewService(db)
	store := storage.NewLocalStorage(cfg.Storage.MediaDir, cfg.Storage.MediaURL)
	extractor := extract.New(cfg.Ingest)
	vs := vectorstore.NewPgVectorStore(db, cfg.Ingest.ChunkContentCap)

	pipeline := ingest.NewPipeline(docSvc, store, extractor, embedSvc, vs, cfg.Ingest, logger)

	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
		},
	)

	registry := queue.NewHandlersRegistry()
	docWorker := workers.NewDocumentWorker(pipeline)
	registry.Register(queue.TypeDocumentProcess, asynq.HandlerFunc(docWorker.ProcessTask))

	slog.Info("starting worker", "concurrency", 10)
	if err := srv.Run(registry.Mux()); err != nil {
		slog.Error("worker error", "error", err)
		os.Exit(1)
	}
}
