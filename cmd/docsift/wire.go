package main

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgallion1/docsift/internal/chunker"
	"github.com/dgallion1/docsift/internal/config"
	"github.com/dgallion1/docsift/internal/embed"
	"github.com/dgallion1/docsift/internal/outline"
	"github.com/dgallion1/docsift/internal/parser"
	"github.com/dgallion1/docsift/internal/pipeline"
	"github.com/dgallion1/docsift/internal/rank"
	"github.com/dgallion1/docsift/internal/vectorindex"
)

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// services holds everything a command needs to extract and rank.
type services struct {
	extractor *pipeline.Extractor
	runner    *pipeline.Runner
	stats     *embed.Stats

	closers []func() error
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		_ = s.closers[i]()
	}
}

func newExtractor(cfg config.Config, log *slog.Logger) *pipeline.Extractor {
	return pipeline.NewExtractor(
		parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		outline.NewBuilder(outline.DefaultConfig(), log),
	)
}

func newServices(cfg config.Config, log *slog.Logger) (*services, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	s := &services{
		extractor: newExtractor(cfg, log),
		stats:     embed.NewStats(time.Hour),
	}

	gateway, err := s.gateway(cfg, log)
	if err != nil {
		return nil, err
	}
	indexes, err := s.indexes(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.runner = pipeline.NewRunner(s.extractor, gateway, indexes, pipeline.RunnerConfig{
		MaxConcurrent: cfg.MaxConcurrentExtract,
		Rank: rank.Config{
			TopK:           cfg.TopK,
			MaxPerDocument: cfg.MaxSectionsPerDoc,
			Passages: chunker.Config{
				PassageSize: cfg.PassageTokens,
				MinPassage:  chunker.DefaultConfig().MinPassage,
			},
		},
	}, log)
	return s, nil
}

func (s *services) gateway(cfg config.Config, log *slog.Logger) (embed.Gateway, error) {
	var backend embed.Gateway
	switch cfg.Embedder {
	case "hash":
		backend = embed.NewHashEmbedder(cfg.EmbeddingDim)
	case "openai":
		backend = embed.NewOpenAIGateway(embed.OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.EmbeddingModel,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.EmbeddingTimeout,
		})
	case "http":
		g := embed.NewHTTPGateway(cfg.EmbeddingURL, cfg.EmbeddingAPIKey, cfg.EmbeddingTimeout)
		s.closers = append(s.closers, func() error { g.Close(); return nil })
		backend = g
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Embedder)
	}

	guard := embed.GuardConfig{
		Name:       cfg.Embedder,
		BatchSize:  cfg.EmbeddingBatchSize,
		Timeout:    cfg.EmbeddingTimeout,
		RPS:        cfg.EmbeddingRPS,
		MaxRetries: cfg.EmbeddingRetries,
	}
	if cfg.Embedder == "hash" {
		guard.RPS = 0 // local, nothing to protect
	}
	return embed.NewGuard(backend, guard, s.stats, log), nil
}

func (s *services) indexes(cfg config.Config) (vectorindex.Provider, error) {
	switch cfg.VectorStore {
	case "memory":
		return vectorindex.NewMemoryProvider(), nil
	case "sqlite":
		store, err := vectorindex.OpenSQLite(cfg.VectorDBPath)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown vector store %q", cfg.VectorStore)
	}
}
