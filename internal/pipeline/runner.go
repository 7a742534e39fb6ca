// Package pipeline runs collections end to end: load, extract, outline,
// segment, rank and report. Runs are synchronous through Runner or queued
// through the Orchestrator.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docsift/internal/chunker"
	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/embed"
	"github.com/dgallion1/docsift/internal/outline"
	"github.com/dgallion1/docsift/internal/parser"
	"github.com/dgallion1/docsift/internal/rank"
	"github.com/dgallion1/docsift/internal/report"
	"github.com/dgallion1/docsift/internal/vectorindex"
)

// Extractor turns raw bytes into a document and its outline.
type Extractor struct {
	opts    parser.Options
	outline *outline.Builder
}

func NewExtractor(opts parser.Options, builder *outline.Builder) *Extractor {
	return &Extractor{opts: opts, outline: builder}
}

// Extract parses data as filename and infers its outline. Every failure
// wraps parser.ErrDocumentUnreadable.
func (e *Extractor) Extract(filename string, data []byte) (*doctree.Document, *outline.Outline, error) {
	p, err := parser.ForFile(filename, e.opts)
	if err != nil {
		return nil, nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		if !errors.Is(err, parser.ErrDocumentUnreadable) {
			err = fmt.Errorf("%w: %v", parser.ErrDocumentUnreadable, err)
		}
		return nil, nil, err
	}
	return doc, e.outline.Build(doc), nil
}

// Collection is the input of one run.
type Collection struct {
	ID        string // generated when empty
	Documents []DocumentRef
	Query     doctree.Query
	Loader    Loader

	// OnDocument, if set, is called once per document after extraction.
	OnDocument func(name string, err error)
}

// Prepared holds the sections of a collection ready for ranking.
type Prepared struct {
	RunID     string
	Documents []string
	Query     doctree.Query
	Sections  []doctree.Section
	Omitted   []report.Omission
}

// RunnerConfig bounds a run.
type RunnerConfig struct {
	MaxConcurrent int
	Rank          rank.Config
}

// Runner executes collection runs. It is safe for concurrent use; each run
// gets its own embedding cache and vector index.
type Runner struct {
	extractor *Extractor
	gateway   embed.Gateway
	indexes   vectorindex.Provider
	cfg       RunnerConfig
	log       *slog.Logger
	now       func() time.Time
}

func NewRunner(extractor *Extractor, gateway embed.Gateway, indexes vectorindex.Provider, cfg RunnerConfig, log *slog.Logger) *Runner {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		extractor: extractor,
		gateway:   gateway,
		indexes:   indexes,
		cfg:       cfg,
		log:       log,
		now:       time.Now,
	}
}

// Run prepares, ranks and reports a collection. Unreadable documents are
// omitted; an unavailable embedding gateway fails the whole run.
func (r *Runner) Run(ctx context.Context, col Collection) (*report.Report, error) {
	p, err := r.Prepare(ctx, col)
	if err != nil {
		return nil, err
	}
	return r.Rank(ctx, p)
}

type docOutcome struct {
	name     string
	hash     string
	sections []doctree.Section
	err      error
}

// Prepare extracts, outlines and segments every document in parallel.
func (r *Runner) Prepare(ctx context.Context, col Collection) (*Prepared, error) {
	runID := col.ID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := r.log.With("run_id", runID)

	p := &Prepared{
		RunID:     runID,
		Documents: make([]string, len(col.Documents)),
		Query:     col.Query,
	}
	for i, ref := range col.Documents {
		p.Documents[i] = ref.Name()
	}

	outcomes := make([]docOutcome, len(col.Documents))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.MaxConcurrent)
	for i, ref := range col.Documents {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.prepareDocument(gctx, col.Loader, ref)
			if col.OnDocument != nil {
				col.OnDocument(outcomes[i].name, outcomes[i].err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extract: %w", err)
	}

	seenHash := make(map[string]string)
	seenName := make(map[string]bool)
	for _, o := range outcomes {
		switch {
		case o.err != nil:
			log.Warn("document omitted", "document", o.name, "error", o.err)
			p.Omitted = append(p.Omitted, report.Omission{Document: o.name, Reason: o.err.Error()})
			continue
		case seenName[o.name]:
			log.Warn("duplicate document name", "document", o.name)
			p.Omitted = append(p.Omitted, report.Omission{Document: o.name, Reason: "duplicate document name"})
			continue
		case seenHash[o.hash] != "":
			log.Info("duplicate document, skipping", "document", o.name, "same_as", seenHash[o.hash])
			p.Omitted = append(p.Omitted, report.Omission{Document: o.name, Reason: "duplicate of " + seenHash[o.hash]})
			continue
		}
		seenName[o.name] = true
		seenHash[o.hash] = o.name
		p.Sections = append(p.Sections, o.sections...)
	}

	log.Info("collection prepared",
		"documents", len(col.Documents), "omitted", len(p.Omitted), "sections", len(p.Sections))
	return p, nil
}

func (r *Runner) prepareDocument(ctx context.Context, loader Loader, ref DocumentRef) docOutcome {
	out := docOutcome{name: ref.Name()}
	if loader == nil {
		out.err = errors.New("no document loader")
		return out
	}
	data, err := loader.Load(ctx, ref.Filename)
	if err != nil {
		out.err = fmt.Errorf("load: %w", err)
		return out
	}
	out.hash = ContentHashHex(data)

	doc, ol, err := r.extractor.Extract(out.name, data)
	if err != nil {
		out.err = err
		return out
	}
	if ref.Title != "" {
		doc.Title = ref.Title
	}
	out.sections = chunker.Segment(doc, ol)
	return out
}

// Rank orders the prepared sections and assembles the report.
func (r *Runner) Rank(ctx context.Context, p *Prepared) (*report.Report, error) {
	engine := rank.NewEngine(embed.NewCache(r.gateway), r.indexes, r.cfg.Rank, r.log.With("run_id", p.RunID))
	results, err := engine.Rank(ctx, p.RunID, p.Query, p.Sections)
	if err != nil {
		return nil, fmt.Errorf("rank: %w", err)
	}
	return report.Build(report.Input{
		Documents: p.Documents,
		Query:     p.Query,
		Omitted:   p.Omitted,
		Processed: r.now(),
	}, results), nil
}
