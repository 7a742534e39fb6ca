package api

import (
	"encoding/json"
	"net/http"
)

func (s *Server) handleEmbeddingStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		jsonError(w, "embedding stats unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"embedder": s.cfg.Embedder,
		"model":    s.cfg.EmbeddingModel,
		"stats":    s.stats.Snapshot(),
		"queue":    s.orchestrator.QueueDepth(),
	})
}
