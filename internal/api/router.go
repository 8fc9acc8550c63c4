// Package api assembles the HTTP surface: middleware chain, service wiring,
// and routes.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ragstack/ragchat/internal/api/handlers"
	"github.com/ragstack/ragchat/internal/api/middleware"
	"github.com/ragstack/ragchat/internal/auth"
	"github.com/ragstack/ragchat/internal/breaker"
	"github.com/ragstack/ragchat/internal/cache"
	"github.com/ragstack/ragchat/internal/chat"
	"github.com/ragstack/ragchat/internal/chatbot"
	"github.com/ragstack/ragchat/internal/config"
	"github.com/ragstack/ragchat/internal/crypto"
	"github.com/ragstack/ragchat/internal/document"
	"github.com/ragstack/ragchat/internal/embedding"
	"github.com/ragstack/ragchat/internal/httpx"
	"github.com/ragstack/ragchat/internal/idempotency"
	"github.com/ragstack/ragchat/internal/llm"
	"github.com/ragstack/ragchat/internal/queue"
	"github.com/ragstack/ragchat/internal/retrieval"
	"github.com/ragstack/ragchat/internal/storage"
	"github.com/ragstack/ragchat/internal/tenant"
	"github.com/ragstack/ragchat/internal/vectorstore"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	kv     cache.Store
	cfg    *config.Config
	ts     *tenant.Service
	jwt    *auth.JWTMiddleware
	apikey *auth.APIKeyMiddleware
}

// NewRouter wires the service graph. The kv store backs both the circuit
// breaker and the idempotency cache; redis may be nil in degraded mode, in
// which case readiness reports accordingly.
func NewRouter(db *pgxpool.Pool, rdb *redis.Client, kv cache.Store, cfg *config.Config) (*Router, error) {
	ts := tenant.NewService(db)
	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		kv:     kv,
		cfg:    cfg,
		ts:     ts,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret, ts),
		apikey: auth.NewAPIKeyMiddleware(db, cfg.Auth.APIKeyHeader, ts),
	}, nil
}

func (rt *Router) Setup() (http.Handler, error) {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	encryptor, err := crypto.NewEncryptor(rt.cfg.Encryption.Key)
	if err != nil {
		return nil, err
	}
	embedSvc, err := embedding.NewService(rt.cfg.Embedding)
	if err != nil {
		return nil, err
	}

	brk := breaker.New(rt.kv, rt.cfg.Breaker)
	hc := httpx.NewClient(brk, rt.cfg.HTTPRetry)

	vs := vectorstore.NewPgVectorStore(rt.db, rt.cfg.Ingest.ChunkContentCap)
	retriever := retrieval.New(embedSvc, vs)

	store := storage.NewLocalStorage(rt.cfg.Storage.MediaDir, rt.cfg.Storage.MediaURL)
	docSvc := document.NewService(rt.db)
	queueClient := queue.NewClient(rt.cfg.Redis)

	botSvc := chatbot.NewService(rt.db, encryptor)
	factory := func(vendor, model, apiKey string) (llm.ChatClient, error) {
		return llm.New(vendor, model, apiKey, "", hc)
	}
	chatSvc := chat.NewService(botSvc, retriever, factory, rt.cfg.LLM, slog.Default())

	idemStore := idempotency.NewStore(rt.kv, rt.cfg.Idempotency.TTL)

	chatH := handlers.NewChatHandler(chatSvc, idemStore, rt.cfg.Retrieval)
	streamH := handlers.NewStreamHandler(chatSvc, rt.cfg.Retrieval)
	searchH := handlers.NewSearchHandler(retriever, rt.cfg.Retrieval)
	docH := handlers.NewDocumentHandler(docSvc, store, vs, queueClient, rt.cfg.Ingest)
	botH := handlers.NewChatbotHandler(botSvc)

	rl := middleware.NewRateLimiter(100, 200)

	r.Route("/api/v1", func(r chi.Router) {
		// API key first, then JWT; both set the tenant on the context.
		r.Use(rt.apikey.Authenticate)
		r.Use(rt.jwt.Authenticate)
		r.Use(auth.RequireTenant)
		r.Use(rl.Limit)

		r.Post("/chat/completions", chatH.Complete)
		r.Post("/chat/stream", streamH.Complete)
		r.Post("/search", searchH.Search)

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
			r.Get("/{id}/status", docH.Status)
			r.Post("/{id}/reprocess", docH.Reprocess)
		})

		r.Route("/chatbot", func(r chi.Router) {
			r.Get("/", botH.Get)
			r.Put("/", botH.Update)
			r.Get("/provider", botH.GetProvider)
			r.Put("/provider", botH.UpsertProvider)
		})
	})

	return r, nil
}
