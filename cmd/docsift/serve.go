package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dgallion1/docsift/internal/api"
	"github.com/dgallion1/docsift/internal/pipeline"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Start the docsift HTTP API.

Endpoints (all but /health need "Authorization: Bearer $DOCSIFT_API_KEY"):
  GET  /health
  POST /api/outline                        multipart "file"
  POST /api/collections                    multipart "files", "persona", "job_to_be_done"
  GET  /api/collections/{jobID}/status
  GET  /api/collections/{jobID}/report
  GET  /api/stats/embeddings`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger(os.Stdout, cfg.LogLevel)
		if servePort != "" {
			cfg.Port = servePort
		}
		if err := cfg.ValidateServer(); err != nil {
			log.Error("invalid configuration", "error", err)
			return err
		}

		svc, err := newServices(cfg, log)
		if err != nil {
			return err
		}
		defer svc.Close()

		ctx := cmd.Context()
		orch := pipeline.NewOrchestrator(pipeline.OrchestratorConfig{
			WorkerCount:  cfg.WorkerCount,
			MaxQueueSize: cfg.MaxQueueSize,
			JobTTL:       cfg.JobTTL,
		}, svc.runner, log)
		orch.Start(ctx)

		srv := api.NewServer(orch, svc.extractor, svc.stats, log, cfg)
		httpServer := &http.Server{
			Addr:         ":" + cfg.Port,
			Handler:      srv,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 120 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		// Graceful shutdown.
		go func() {
			<-ctx.Done()
			log.Info("shutting down...")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			httpServer.Shutdown(shutdownCtx)
		}()

		log.Info("starting docsift", "port", cfg.Port, "embedder", cfg.Embedder, "vector_store", cfg.VectorStore)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			orch.Stop()
			return err
		}
		orch.Stop()
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&servePort, "port", "", "listen port (default from PORT)")
}
