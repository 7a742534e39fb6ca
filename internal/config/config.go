package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	DocsiftAPIKey string

	LogLevel slog.Level

	// Embedding gateway
	Embedder           string // hash, openai or http
	EmbeddingModel     string
	EmbeddingDim       int
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	EmbeddingURL       string
	EmbeddingAPIKey    string
	EmbeddingTimeout   time.Duration
	EmbeddingBatchSize int
	EmbeddingRPS       float64
	EmbeddingRetries   int

	// Vector index
	VectorStore  string // memory or sqlite
	VectorDBPath string

	// Ranking
	TopK              int
	MaxSectionsPerDoc int
	PassageTokens     int

	// Worker pool
	WorkerCount          int
	MaxQueueSize         int
	MaxConcurrentExtract int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool
}

// LoadDotEnv loads variables from path into the environment when the file
// exists. Variables already set win.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		DocsiftAPIKey: os.Getenv("DOCSIFT_API_KEY"),

		LogLevel: envLevel("LOG_LEVEL", slog.LevelInfo),

		Embedder:           strings.ToLower(envOr("EMBEDDER", "hash")),
		EmbeddingModel:     envOr("EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:       envInt("EMBEDDING_DIM", 512),
		OpenAIAPIKey:       os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:      os.Getenv("OPENAI_BASE_URL"),
		EmbeddingURL:       os.Getenv("EMBEDDING_URL"),
		EmbeddingAPIKey:    os.Getenv("EMBEDDING_API_KEY"),
		EmbeddingTimeout:   envDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		EmbeddingBatchSize: envInt("EMBEDDING_BATCH_SIZE", 64),
		EmbeddingRPS:       envFloat("EMBEDDING_RPS", 10),
		EmbeddingRetries:   envInt("EMBEDDING_MAX_RETRIES", 3),

		VectorStore:  strings.ToLower(envOr("VECTOR_STORE", "memory")),
		VectorDBPath: envOr("VECTOR_DB_PATH", "docsift.db"),

		TopK:              envInt("TOP_K", 5),
		MaxSectionsPerDoc: envInt("MAX_SECTIONS_PER_DOC", 2),
		PassageTokens:     envInt("PASSAGE_TOKENS", 120),

		WorkerCount:          envInt("WORKER_COUNT", 2),
		MaxQueueSize:         envInt("MAX_QUEUE_SIZE", 50),
		MaxConcurrentExtract: envInt("MAX_CONCURRENT_EXTRACT", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),
	}

	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 512
	}
	if cfg.EmbeddingBatchSize <= 0 {
		cfg.EmbeddingBatchSize = 64
	}
	if cfg.EmbeddingTimeout <= 0 {
		cfg.EmbeddingTimeout = 30 * time.Second
	}
	if cfg.EmbeddingRetries < 0 {
		cfg.EmbeddingRetries = 0
	}
	if cfg.PassageTokens <= 0 {
		cfg.PassageTokens = 120
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 50
	}
	if cfg.MaxConcurrentExtract <= 0 {
		cfg.MaxConcurrentExtract = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}

	return cfg
}

// Validate checks the settings every command needs.
func (c Config) Validate() error {
	var errs []error
	switch c.Embedder {
	case "hash":
	case "openai":
		if c.OpenAIAPIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY is required for EMBEDDER=openai"))
		}
	case "http":
		if c.EmbeddingURL == "" {
			errs = append(errs, errors.New("EMBEDDING_URL is required for EMBEDDER=http"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDER %q (want hash, openai or http)", c.Embedder))
	}
	switch c.VectorStore {
	case "memory":
	case "sqlite":
		if c.VectorDBPath == "" {
			errs = append(errs, errors.New("VECTOR_DB_PATH is required for VECTOR_STORE=sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_STORE %q (want memory or sqlite)", c.VectorStore))
	}
	if c.TopK <= 0 {
		errs = append(errs, errors.New("TOP_K must be positive"))
	}
	if c.MaxSectionsPerDoc < 0 {
		errs = append(errs, errors.New("MAX_SECTIONS_PER_DOC must not be negative"))
	}
	return errors.Join(errs...)
}

// ValidateServer additionally checks what the HTTP server needs.
func (c Config) ValidateServer() error {
	err := c.Validate()
	if c.DocsiftAPIKey == "" {
		err = errors.Join(err, errors.New("DOCSIFT_API_KEY is required"))
	}
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envLevel(key string, fallback slog.Level) slog.Level {
	if v := os.Getenv(key); v != "" {
		var l slog.Level
		if err := l.UnmarshalText([]byte(v)); err == nil {
			return l
		}
	}
	return fallback
}
