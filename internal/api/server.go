package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dgallion1/docsift/internal/config"
	"github.com/dgallion1/docsift/internal/embed"
	"github.com/dgallion1/docsift/internal/pipeline"
)

// Server is the HTTP API server for docsift.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	extractor    *pipeline.Extractor
	stats        *embed.Stats
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. stats may be nil when
// the embedding backend is not guarded.
func NewServer(orch *pipeline.Orchestrator, extractor *pipeline.Extractor, stats *embed.Stats, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		extractor:    extractor,
		stats:        stats,
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(logRequests(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(requireAPIKey(s.cfg.DocsiftAPIKey, s.log))

		r.Post("/api/outline", s.handleOutline)

		r.Post("/api/collections", s.handleCreateCollection)
		r.Get("/api/collections/{jobID}/status", s.handleCollectionStatus)
		r.Get("/api/collections/{jobID}/report", s.handleCollectionReport)

		r.Get("/api/stats/embeddings", s.handleEmbeddingStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
