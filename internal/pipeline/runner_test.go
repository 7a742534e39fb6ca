package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/embed"
	"github.com/dgallion1/docsift/internal/outline"
	"github.com/dgallion1/docsift/internal/parser"
	"github.com/dgallion1/docsift/internal/rank"
	"github.com/dgallion1/docsift/internal/vectorindex"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRunner(gw embed.Gateway) *Runner {
	log := quietLogger()
	ex := NewExtractor(parser.Options{}, outline.NewBuilder(outline.DefaultConfig(), log))
	r := NewRunner(ex, gw, vectorindex.NewMemoryProvider(), RunnerConfig{MaxConcurrent: 2, Rank: rank.DefaultConfig()}, log)
	r.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return r
}

const guideMD = `# South of France

## Beaches

The coast offers sandy beaches, calm water and coastal walks for groups of friends.

## Museums

Art museums and history collections fill the old town.
`

const budgetMD = `## Budget Tips

Plan a 4-day trip for friends on a budget: share apartments, cook together and buy rail passes.

## Packing

Pack light clothes and comfortable shoes.
`

func travelCollection() Collection {
	return Collection{
		Documents: []DocumentRef{
			{Filename: "guide.md"},
			{Filename: "budget.md"},
			{Filename: "broken.pdf"},
			{Filename: "copy.md"},
			{Filename: "missing.md"},
		},
		Query: doctree.Query{Persona: "Travel Planner", JobToBeDone: "Plan a 4-day trip for friends"},
		Loader: MemLoader{
			"guide.md":   []byte(guideMD),
			"budget.md":  []byte(budgetMD),
			"broken.pdf": []byte("this is not a pdf"),
			"copy.md":    []byte(guideMD),
		},
	}
}

func TestRunner_Run(t *testing.T) {
	r := newTestRunner(embed.NewHashEmbedder(512))
	rep, err := r.Run(context.Background(), travelCollection())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"guide.md", "budget.md", "broken.pdf", "copy.md", "missing.md"}
	if !reflect.DeepEqual(rep.Metadata.InputDocuments, want) {
		t.Errorf("input documents = %v, want %v", rep.Metadata.InputDocuments, want)
	}
	omitted := map[string]string{}
	for _, o := range rep.Metadata.OmittedDocuments {
		omitted[o.Document] = o.Reason
	}
	if len(omitted) != 3 {
		t.Fatalf("expected 3 omissions, got %+v", rep.Metadata.OmittedDocuments)
	}
	if !strings.Contains(omitted["broken.pdf"], "unreadable") {
		t.Errorf("unexpected reason for broken.pdf: %q", omitted["broken.pdf"])
	}
	if omitted["copy.md"] != "duplicate of guide.md" {
		t.Errorf("unexpected reason for copy.md: %q", omitted["copy.md"])
	}
	if !strings.Contains(omitted["missing.md"], "not found") {
		t.Errorf("unexpected reason for missing.md: %q", omitted["missing.md"])
	}

	if len(rep.ExtractedSections) == 0 || len(rep.ExtractedSections) != len(rep.SubsectionAnalysis) {
		t.Fatalf("expected aligned non-empty results, got %d/%d", len(rep.ExtractedSections), len(rep.SubsectionAnalysis))
	}
	perDoc := map[string]int{}
	for i, s := range rep.ExtractedSections {
		if s.ImportanceRank != i+1 {
			t.Errorf("section %d has rank %d", i, s.ImportanceRank)
		}
		if rep.SubsectionAnalysis[i].Document != s.Document {
			t.Errorf("subsection %d document %q, want %q", i, rep.SubsectionAnalysis[i].Document, s.Document)
		}
		perDoc[s.Document]++
	}
	for doc, n := range perDoc {
		if n > 2 {
			t.Errorf("%s appears %d times, cap is 2", doc, n)
		}
	}
	if rep.Metadata.ProcessingTimestamp != "2025-01-02T03:04:05Z" {
		t.Errorf("unexpected timestamp %q", rep.Metadata.ProcessingTimestamp)
	}
}

func TestRunner_Idempotent(t *testing.T) {
	r := newTestRunner(embed.NewHashEmbedder(512))
	a, err := r.Run(context.Background(), travelCollection())
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	b, err := r.Run(context.Background(), travelCollection())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("runs differ:\n%+v\n%+v", a, b)
	}
}

func TestRunner_EmptyCollection(t *testing.T) {
	r := newTestRunner(embed.NewHashEmbedder(64))
	rep, err := r.Run(context.Background(), Collection{Query: doctree.Query{Persona: "p", JobToBeDone: "j"}, Loader: MemLoader{}})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rep.ExtractedSections == nil || len(rep.ExtractedSections) != 0 {
		t.Errorf("expected empty extracted sections, got %#v", rep.ExtractedSections)
	}
	if rep.SubsectionAnalysis == nil || len(rep.SubsectionAnalysis) != 0 {
		t.Errorf("expected empty subsection analysis, got %#v", rep.SubsectionAnalysis)
	}
}

type downGateway struct{}

func (downGateway) Embed(ctx context.Context, items []embed.Item) (map[string][]float32, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func TestRunner_EmbeddingUnavailableFailsRun(t *testing.T) {
	r := newTestRunner(downGateway{})
	rep, err := r.Run(context.Background(), travelCollection())
	if !errors.Is(err, embed.ErrEmbeddingUnavailable) {
		t.Fatalf("expected ErrEmbeddingUnavailable, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "rank: ") {
		t.Errorf("expected error to name the stage, got %q", err)
	}
	if rep != nil {
		t.Error("expected no partial report")
	}
}

func TestRunner_TitleOverride(t *testing.T) {
	r := newTestRunner(embed.NewHashEmbedder(64))
	p, err := r.Prepare(context.Background(), Collection{
		Documents: []DocumentRef{{Filename: "notes.txt", Title: "Field Notes"}},
		Query:     doctree.Query{Persona: "p"},
		Loader:    MemLoader{"notes.txt": []byte("Just some plain text without headings.")},
	})
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(p.Sections) != 1 || p.Sections[0].Heading.Text != "Field Notes" {
		t.Fatalf("expected one implicit section titled Field Notes, got %+v", p.Sections)
	}
}

func TestRunner_CancelledContext(t *testing.T) {
	r := newTestRunner(embed.NewHashEmbedder(64))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Run(ctx, travelCollection()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExtractor_Unsupported(t *testing.T) {
	ex := NewExtractor(parser.Options{}, outline.NewBuilder(outline.DefaultConfig(), quietLogger()))
	if _, _, err := ex.Extract("data.xls", []byte("x")); !errors.Is(err, parser.ErrDocumentUnreadable) {
		t.Fatalf("expected ErrDocumentUnreadable, got %v", err)
	}
}

func TestOrchestrator_ProcessesJob(t *testing.T) {
	r := newTestRunner(embed.NewHashEmbedder(128))
	o := NewOrchestrator(OrchestratorConfig{WorkerCount: 1, MaxQueueSize: 2, JobTTL: time.Hour}, r, quietLogger())
	o.Start(context.Background())
	defer o.Stop()

	col := travelCollection()
	names := []string{"guide.md", "budget.md", "broken.pdf"}
	job := NewJob("job-1", col.Query.Persona, col.Query.JobToBeDone, names, col.Loader.(MemLoader))
	if err := o.Submit(job); err != nil {
		t.Fatalf("submit: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s := job.Snapshot().Status; s == StatusCompleted || s == StatusFailed {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	snap := job.Snapshot()
	if snap.Status != StatusCompleted {
		t.Fatalf("expected completed job, got %q (%v)", snap.Status, snap.Progress.Errors)
	}
	if snap.Progress.DocumentsProcessed != 3 || snap.Progress.DocumentsOmitted != 1 {
		t.Errorf("unexpected progress %+v", snap.Progress)
	}
	if o.GetJob("job-1") != job || job.Report() == nil {
		t.Error("expected the job and its report to be retrievable")
	}
}

func TestOrchestrator_QueueFull(t *testing.T) {
	r := newTestRunner(embed.NewHashEmbedder(16))
	o := NewOrchestrator(OrchestratorConfig{WorkerCount: 1, MaxQueueSize: 1, JobTTL: time.Hour}, r, quietLogger())
	// Not started, so nothing drains the queue.
	if err := o.Submit(NewJob("a", "p", "j", nil, MemLoader{})); err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second := NewJob("b", "p", "j", nil, MemLoader{})
	if err := o.Submit(second); err == nil {
		t.Fatal("expected queue full error")
	}
	if second.Snapshot().Status != StatusFailed {
		t.Errorf("expected rejected job to be failed, got %q", second.Snapshot().Status)
	}
}
