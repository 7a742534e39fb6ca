// Package rank orders the sections of a collection by relevance to a
// persona and task, and refines each top section down to its best passage.
package rank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"

	"github.com/dgallion1/docsift/internal/chunker"
	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/embed"
	"github.com/dgallion1/docsift/internal/textnorm"
	"github.com/dgallion1/docsift/internal/vectorindex"
)

// Embedding item keys are namespaced by kind so that a document name can
// never make a section key equal a passage key.
const queryID = "q:"

func sectionKey(id string) string { return "s:" + id }
func passageKey(id string) string { return "p:" + id }

// Config holds ranking limits.
type Config struct {
	TopK           int // sections in the answer; <= 0 keeps every survivor
	MaxPerDocument int // per-document cap; <= 0 disables it
	Passages       chunker.Config
}

func DefaultConfig() Config {
	return Config{
		TopK:           5,
		MaxPerDocument: 2,
		Passages:       chunker.DefaultConfig(),
	}
}

// Result is one ranked section.
type Result struct {
	Section     doctree.Section
	Rank        int // dense, from 1
	Score       float64
	RefinedText string // best passage, empty when the section has no body
	RefinedPage int
}

// Engine ranks sections against a query.
type Engine struct {
	gateway embed.Gateway
	indexes vectorindex.Provider
	cfg     Config
	log     *slog.Logger
}

func NewEngine(gateway embed.Gateway, indexes vectorindex.Provider, cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{gateway: gateway, indexes: indexes, cfg: cfg, log: log}
}

// Rank embeds the query and every section, retrieves them from a fresh index
// named after the collection, and returns the capped top-K with refined
// passages. Zero sections produce an empty result. Any embedding failure
// aborts the call with an error wrapping embed.ErrEmbeddingUnavailable.
func (e *Engine) Rank(ctx context.Context, collection string, q doctree.Query, sections []doctree.Section) ([]Result, error) {
	if len(sections) == 0 {
		return []Result{}, nil
	}

	items := make([]embed.Item, 0, len(sections)+1)
	items = append(items, embed.Item{ID: queryID, Text: q.Text()})
	pos := make(map[string]int, len(sections))
	for i := range sections {
		s := &sections[i]
		if _, dup := pos[s.ID]; dup {
			return nil, fmt.Errorf("duplicate section id %q", s.ID)
		}
		pos[s.ID] = i
		items = append(items, embed.Item{ID: sectionKey(s.ID), Text: sectionText(s)})
	}

	vecs, err := e.gateway.Embed(ctx, items)
	if err != nil {
		return nil, unavailable(err)
	}
	qvec, err := lookup(vecs, queryID)
	if err != nil {
		return nil, err
	}

	idx, err := e.indexes.ForCollection(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}
	defer func() {
		if err := e.indexes.Drop(context.WithoutCancel(ctx), collection); err != nil {
			e.log.Warn("drop index failed", "collection", collection, "error", err)
		}
	}()

	for i := range sections {
		s := &sections[i]
		vec, err := lookup(vecs, sectionKey(s.ID))
		if err != nil {
			return nil, err
		}
		meta := vectorindex.Metadata{"document": s.Document, "ordinal": strconv.Itoa(s.Ordinal)}
		if err := idx.Upsert(ctx, s.ID, vec, meta); err != nil {
			return nil, fmt.Errorf("index section %s: %w", s.ID, err)
		}
	}

	cands, err := idx.Query(ctx, qvec, 0)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return pos[cands[i].ID] < pos[cands[j].ID]
	})

	results := e.selectTop(cands, sections, pos)
	if err := e.refine(ctx, qvec, results); err != nil {
		return nil, err
	}

	e.log.Debug("collection ranked",
		"collection", collection, "sections", len(sections), "results", len(results))
	return results, nil
}

// selectTop applies the per-document cap and the top-K cut to candidates
// already in final order.
func (e *Engine) selectTop(cands []vectorindex.Candidate, sections []doctree.Section, pos map[string]int) []Result {
	perDoc := make(map[string]int)
	results := make([]Result, 0, e.cfg.TopK)
	for _, c := range cands {
		if e.cfg.TopK > 0 && len(results) == e.cfg.TopK {
			break
		}
		sec := sections[pos[c.ID]]
		if e.cfg.MaxPerDocument > 0 && perDoc[sec.Document] >= e.cfg.MaxPerDocument {
			continue
		}
		perDoc[sec.Document]++
		results = append(results, Result{
			Section: sec,
			Rank:    len(results) + 1,
			Score:   c.Score,
		})
	}
	return results
}

// refine attaches the best passage of each result. All passages are embedded
// in one keyed batch; ties go to the earliest passage.
func (e *Engine) refine(ctx context.Context, qvec []float32, results []Result) error {
	passages := make([][]doctree.Passage, len(results))
	var items []embed.Item
	for i := range results {
		passages[i] = chunker.Passages(&results[i].Section, e.cfg.Passages)
		for _, p := range passages[i] {
			items = append(items, embed.Item{ID: passageKey(p.ID), Text: p.Text})
		}
	}
	if len(items) == 0 {
		return nil
	}

	vecs, err := e.gateway.Embed(ctx, items)
	if err != nil {
		return unavailable(err)
	}
	for i := range results {
		best, bestScore := -1, 0.0
		for k, p := range passages[i] {
			vec, err := lookup(vecs, passageKey(p.ID))
			if err != nil {
				return err
			}
			if score := vectorindex.Cosine(qvec, vec); best < 0 || score > bestScore {
				best, bestScore = k, score
			}
		}
		if best >= 0 {
			results[i].RefinedText = textnorm.CleanPassage(passages[i][best].Text)
			results[i].RefinedPage = Page(&results[i].Section)
		}
	}
	return nil
}

// Page is the page a section is reported on: its heading's page, or the
// first body page for implicit sections.
func Page(s *doctree.Section) int {
	if s.Heading.Page > 0 {
		return s.Heading.Page
	}
	return s.PageStart
}

func sectionText(s *doctree.Section) string {
	if !s.HasBody() {
		return s.Heading.Text
	}
	return s.Heading.Text + "\n" + s.Body
}

func lookup(vecs map[string][]float32, id string) ([]float32, error) {
	v, ok := vecs[id]
	if !ok || len(v) == 0 {
		return nil, fmt.Errorf("%w: no vector for %q", embed.ErrEmbeddingUnavailable, id)
	}
	return v, nil
}

func unavailable(err error) error {
	if errors.Is(err, embed.ErrEmbeddingUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", embed.ErrEmbeddingUnavailable, err)
}
