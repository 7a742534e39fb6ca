package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/embed"
)

// Worker processes collection jobs.
type Worker struct {
	runner *Runner
	log    *slog.Logger
}

func NewWorker(runner *Runner, log *slog.Logger) *Worker {
	return &Worker{runner: runner, log: log}
}

// Process runs the full collection pipeline for a job.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID)
	snap := job.Snapshot()

	refs := make([]DocumentRef, len(snap.Documents))
	for i, name := range snap.Documents {
		refs[i] = DocumentRef{Filename: name}
	}

	// Phase 1: extract, outline and segment every document.
	job.SetStatus(StatusExtracting, "extracting")
	prepared, err := w.runner.Prepare(ctx, Collection{
		ID:        job.ID,
		Documents: refs,
		Query:     doctree.Query{Persona: snap.Persona, JobToBeDone: snap.JobToBeDone},
		Loader:    job.Files(),
		OnDocument: func(name string, err error) {
			job.DocumentDone(err != nil)
			if err != nil {
				job.AddError(name + ": " + err.Error())
			}
		},
	})
	if err != nil {
		log.Error("extraction failed", "error", err)
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "extracting")
		return
	}
	job.SetSections(len(prepared.Sections))

	// Phase 2: rank and build the report.
	job.SetStatus(StatusRanking, "ranking")
	rep, err := w.runner.Rank(ctx, prepared)
	if err != nil {
		if errors.Is(err, embed.ErrEmbeddingUnavailable) {
			log.Error("embedding service unavailable", "error", err)
		} else {
			log.Error("ranking failed", "error", err)
		}
		job.AddError(err.Error())
		job.SetStatus(StatusFailed, "ranking")
		return
	}

	job.Complete(rep)
	log.Info("collection job complete",
		"sections", len(prepared.Sections),
		"omitted", len(prepared.Omitted),
		"ranked", len(rep.ExtractedSections))
}
