package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Auth        AuthConfig
	LLM         LLMConfig
	Embedding   EmbeddingConfig
	Ingest      IngestConfig
	Retrieval   RetrievalConfig
	HTTPRetry   HTTPRetryConfig
	Breaker     BreakerConfig
	Idempotency IdempotencyConfig
	Storage     StorageConfig
	Encryption  EncryptionConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type DatabaseConfig struct {
	URL            string
	MaxConns       int
	MinConns       int
	MigrationsPath string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret    string
	APIKeyHeader string
}

type LLMConfig struct {
	ChatTimeout   time.Duration
	StreamTimeout time.Duration
}

type EmbeddingConfig struct {
	Provider  string
	Model     string
	APIKey    string
	Dimension int
	Timeout   time.Duration
}

type IngestConfig struct {
	ChunkSize       int
	ChunkOverlap    int
	MaxUploadMB     int
	MaxPDFPages     int
	ChunkContentCap int
}

type RetrievalConfig struct {
	ChatTopKDefault   int
	ChatTopKMax       int
	SearchTopKDefault int
	SearchTopKMax     int
}

type HTTPRetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type BreakerConfig struct {
	FailWindow    time.Duration
	TripThreshold int
	OpenTTL       time.Duration
}

type IdempotencyConfig struct {
	TTL time.Duration
}

type StorageConfig struct {
	MediaDir string
	MediaURL string
}

type EncryptionConfig struct {
	Key string
}

func Load() (*Config, error) {
	port, err := getEnvInt("SERVER_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}
	maxConns, err := getEnvInt("DB_MAX_CONNS", 20)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_CONNS: %w", err)
	}
	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIN_CONNS: %w", err)
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	embedDim, err := getEnvInt("EMBEDDING_DIMENSION", 1536)
	if err != nil {
		return nil, fmt.Errorf("invalid EMBEDDING_DIMENSION: %w", err)
	}
	chunkSize, err := getEnvInt("CHUNK_SIZE_CHARS", 1500)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_SIZE_CHARS: %w", err)
	}
	chunkOverlap, err := getEnvInt("CHUNK_OVERLAP_CHARS", 200)
	if err != nil {
		return nil, fmt.Errorf("invalid CHUNK_OVERLAP_CHARS: %w", err)
	}
	maxUploadMB, err := getEnvInt("MAX_UPLOAD_MB", 25)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_UPLOAD_MB: %w", err)
	}
	maxPDFPages, err := getEnvInt("MAX_PDF_PAGES", 500)
	if err != nil {
		return nil, fmt.Errorf("invalid MAX_PDF_PAGES: %w", err)
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			URL:            getEnv("DATABASE_URL", ""),
			MaxConns:       maxConns,
			MinConns:       minConns,
			MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		Auth: AuthConfig{
			JWTSecret:    getEnv("JWT_SECRET", ""),
			APIKeyHeader: getEnv("API_KEY_HEADER", "X-API-Key"),
		},
		LLM: LLMConfig{
			ChatTimeout:   getEnvDuration("LLM_CHAT_TIMEOUT", 30*time.Second),
			StreamTimeout: getEnvDuration("LLM_STREAM_TIMEOUT", 120*time.Second),
		},
		Embedding: EmbeddingConfig{
			Provider:  getEnv("EMBEDDING_PROVIDER", "openai"),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			APIKey:    getEnv("OPENAI_API_KEY", ""),
			Dimension: embedDim,
			Timeout:   getEnvDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Ingest: IngestConfig{
			ChunkSize:       chunkSize,
			ChunkOverlap:    chunkOverlap,
			MaxUploadMB:     maxUploadMB,
			MaxPDFPages:     maxPDFPages,
			ChunkContentCap: 5000,
		},
		Retrieval: RetrievalConfig{
			ChatTopKDefault:   6,
			ChatTopKMax:       20,
			SearchTopKDefault: 8,
			SearchTopKMax:     50,
		},
		HTTPRetry: HTTPRetryConfig{
			MaxAttempts: 5,
			BaseDelay:   500 * time.Millisecond,
			MaxDelay:    8 * time.Second,
		},
		Breaker: BreakerConfig{
			FailWindow:    60 * time.Second,
			TripThreshold: 5,
			OpenTTL:       60 * time.Second,
		},
		Idempotency: IdempotencyConfig{
			TTL: getEnvDuration("IDEMPOTENCY_TTL", time.Hour),
		},
		Storage: StorageConfig{
			MediaDir: getEnv("MEDIA_DIR", "media"),
			MediaURL: getEnv("MEDIA_URL", "/media/"),
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
	}

	return cfg, nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
