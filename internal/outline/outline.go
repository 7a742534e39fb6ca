// Package outline infers a document's heading hierarchy from typography.
//
// Levels are document-local: font sizes are clustered into tiers, combined
// with weight into styles, and the styles more prominent than the dominant
// body style are ranked into H1, H2 and H3. A single markedly larger run at
// the top of the first page becomes the TITLE.
package outline

import (
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/textnorm"
)

// Config holds the inference thresholds.
type Config struct {
	MinChars        int     // runs shorter than this never become headings
	SizeTolerance   float64 // points; sizes this close share a tier
	TitleWindow     int     // leading qualifying runs on the first page eligible for TITLE
	TitleRatio      float64 // TITLE must be this much larger than the next heading style
	MaxHeadingChars int
	MaxHeadingWords int
}

// DefaultConfig returns sensible defaults for typical reports and manuals.
func DefaultConfig() Config {
	return Config{
		MinChars:        3,
		SizeTolerance:   0.5,
		TitleWindow:     5,
		TitleRatio:      1.15,
		MaxHeadingChars: 200,
		MaxHeadingWords: 25,
	}
}

// Outline is the inferred structure of one document.
type Outline struct {
	Title         *doctree.OutlineNode
	Nodes         []doctree.OutlineNode  // H1-H3 headings in reading order
	Levels        []doctree.HeadingLevel // one entry per Document.Runs element
	LowConfidence bool
	Reason        string // why confidence is low, empty otherwise
}

// TitleText returns the title text or "".
func (o *Outline) TitleText() string {
	if o.Title == nil {
		return ""
	}
	return o.Title.Text
}

// Builder infers outlines. It holds no per-document state and is safe for
// concurrent use.
type Builder struct {
	cfg Config
	log *slog.Logger
}

func NewBuilder(cfg Config, log *slog.Logger) *Builder {
	if log == nil {
		log = slog.Default()
	}
	return &Builder{cfg: cfg, log: log}
}

// style is a (size tier, weight) pair. Lower tier index means larger text.
type style struct {
	tier int
	bold bool
}

// moreProminent orders styles: larger tier first, bold before regular.
func (s style) moreProminent(o style) bool {
	if s.tier != o.tier {
		return s.tier < o.tier
	}
	return s.bold && !o.bold
}

// analysis is the per-document working state of Build.
type analysis struct {
	doc       *doctree.Document
	qualifies []bool
	styles    []style
	tierSize  []float64 // representative (largest) size of each tier
	cleaned   []string
}

// Build assigns a level to every run of doc.
func (b *Builder) Build(doc *doctree.Document) *Outline {
	out := &Outline{Levels: make([]doctree.HeadingLevel, len(doc.Runs))}
	for i := range out.Levels {
		out.Levels[i] = doctree.LevelBody
	}
	if len(doc.Runs) == 0 {
		return out
	}

	a := b.analyze(doc)
	body, ok := a.bodyStyle()
	if !ok {
		out.LowConfidence, out.Reason = true, "no qualifying text"
		b.logOutline(doc, out)
		return out
	}

	headingRuns := make(map[style][]int)
	for i := range doc.Runs {
		if !a.qualifies[i] || !a.styles[i].moreProminent(body) {
			continue
		}
		if !b.headingShaped(a.cleaned[i]) {
			continue
		}
		headingRuns[a.styles[i]] = append(headingRuns[a.styles[i]], i)
	}

	evidenced := make([]style, 0, len(headingRuns))
	for s := range headingRuns {
		evidenced = append(evidenced, s)
	}
	sort.Slice(evidenced, func(i, j int) bool { return evidenced[i].moreProminent(evidenced[j]) })

	titleGroup := b.findTitle(a, body, headingRuns, evidenced)
	if len(titleGroup) > 0 {
		texts := make([]string, len(titleGroup))
		for k, i := range titleGroup {
			texts[k] = a.cleaned[i]
			out.Levels[i] = doctree.LevelTitle
		}
		first := doc.Runs[titleGroup[0]]
		out.Title = &doctree.OutlineNode{
			Level: doctree.LevelTitle,
			Text:  strings.Join(texts, " "),
			Page:  first.Page,
			Order: first.Order,
		}
		evidenced = evidenced[1:]
	}

	levels := newLevelMap(evidenced)
	for i := range doc.Runs {
		if out.Levels[i] == doctree.LevelTitle || !a.qualifies[i] {
			continue
		}
		lvl, ok := levels[a.styles[i]]
		if !ok || !b.headingShaped(a.cleaned[i]) {
			continue
		}
		out.Levels[i] = lvl
		out.Nodes = append(out.Nodes, doctree.OutlineNode{
			Level: lvl,
			Text:  a.cleaned[i],
			Page:  doc.Runs[i].Page,
			Order: doc.Runs[i].Order,
		})
	}

	switch {
	case len(evidenced) == 0:
		out.LowConfidence, out.Reason = true, "no typographic hierarchy"
	case len(evidenced) > 3:
		out.LowConfidence, out.Reason = true, "more than three heading styles collapsed into H3"
	}
	b.logOutline(doc, out)
	return out
}

func (b *Builder) logOutline(doc *doctree.Document, o *Outline) {
	attrs := []any{"document", doc.Name, "headings", len(o.Nodes), "title", o.TitleText()}
	if o.LowConfidence {
		b.log.Info("outline low confidence", append(attrs, "reason", o.Reason)...)
		return
	}
	b.log.Debug("outline built", attrs...)
}

func (b *Builder) analyze(doc *doctree.Document) *analysis {
	n := len(doc.Runs)
	a := &analysis{
		doc:       doc,
		qualifies: make([]bool, n),
		styles:    make([]style, n),
		cleaned:   make([]string, n),
	}

	furniture := pageFurniture(doc)
	var sizes []float64
	for i, r := range doc.Runs {
		text := strings.TrimSpace(r.Text)
		a.cleaned[i] = textnorm.CleanHeading(text)
		if textnorm.IsNoise(text) || utf8.RuneCountInString(text) < b.cfg.MinChars || furniture[text] {
			continue
		}
		a.qualifies[i] = true
		sizes = append(sizes, r.FontSize)
	}

	a.tierSize = clusterSizes(sizes, b.cfg.SizeTolerance)
	for i, r := range doc.Runs {
		a.styles[i] = style{tier: tierOf(a.tierSize, r.FontSize, b.cfg.SizeTolerance), bold: r.Bold}
	}
	return a
}

// bodyStyle is the style carrying the most characters. Ties go to the less
// prominent style.
func (a *analysis) bodyStyle() (style, bool) {
	chars := make(map[style]int)
	for i, r := range a.doc.Runs {
		if a.qualifies[i] {
			chars[a.styles[i]] += utf8.RuneCountInString(r.Text)
		}
	}
	var best style
	bestChars := -1
	for s, c := range chars {
		if c > bestChars || (c == bestChars && best.moreProminent(s)) {
			best, bestChars = s, c
		}
	}
	return best, bestChars >= 0
}

func (b *Builder) headingShaped(text string) bool {
	if text == "" || utf8.RuneCountInString(text) > b.cfg.MaxHeadingChars {
		return false
	}
	if len(strings.Fields(text)) > b.cfg.MaxHeadingWords {
		return false
	}
	return !textnorm.StartsLower(text)
}

// findTitle returns the run indices forming the TITLE, or nil. The title
// style must belong to the first page's leading runs, sit in the largest
// tier, be markedly larger than the next heading style, and not be reused
// by any heading outside the title group. No heading may come before it.
func (b *Builder) findTitle(a *analysis, body style, headingRuns map[style][]int, evidenced []style) []int {
	if len(evidenced) < 2 {
		return nil
	}
	top := evidenced[0]
	if top.tier != 0 || top.tier >= body.tier {
		return nil
	}
	if a.tierSize[top.tier] < b.cfg.TitleRatio*a.tierSize[evidenced[1].tier] {
		return nil
	}

	firstPage := -1
	var window []int
	for i, r := range a.doc.Runs {
		if !a.qualifies[i] {
			continue
		}
		if firstPage < 0 {
			firstPage = r.Page
		}
		if r.Page != firstPage || len(window) == b.cfg.TitleWindow {
			break
		}
		window = append(window, i)
	}

	var group []int
	for _, i := range window {
		if a.styles[i] == top {
			group = append(group, i)
			continue
		}
		if len(group) > 0 {
			break
		}
	}
	// Continuation lines of a wrapped title may start lower case, so only
	// the first run has to look like a heading.
	if len(group) == 0 || !b.headingShaped(a.cleaned[group[0]]) {
		return nil
	}
	inGroup := make(map[int]bool, len(group))
	for _, i := range group {
		inGroup[i] = true
	}
	for _, i := range headingRuns[top] {
		if !inGroup[i] {
			return nil
		}
	}
	// The title must precede every other heading.
	for _, s := range evidenced[1:] {
		for _, i := range headingRuns[s] {
			if i < group[0] {
				return nil
			}
		}
	}
	return group
}

// clusterSizes groups sizes into tiers, largest first. Each tier is
// represented by its largest member; a size joins the current tier when it is
// within tol of that representative.
func clusterSizes(sizes []float64, tol float64) []float64 {
	sorted := append([]float64(nil), sizes...)
	sort.Sort(sort.Reverse(sort.Float64Slice(sorted)))
	var tiers []float64
	for _, s := range sorted {
		if len(tiers) == 0 || tiers[len(tiers)-1]-s > tol {
			tiers = append(tiers, s)
		}
	}
	return tiers
}

func tierOf(tiers []float64, size, tol float64) int {
	for i, t := range tiers {
		if t-size <= tol {
			return i
		}
	}
	return len(tiers)
}

const furnitureMaxWords = 10

// pageFurniture returns short texts repeated on most pages of a multi-page
// document, such as running headers and footers.
func pageFurniture(doc *doctree.Document) map[string]bool {
	if doc.Pages < 3 {
		return nil
	}
	pagesByText := make(map[string]map[int]bool)
	for _, r := range doc.Runs {
		t := strings.TrimSpace(r.Text)
		if len(strings.Fields(t)) > furnitureMaxWords {
			continue
		}
		if pagesByText[t] == nil {
			pagesByText[t] = make(map[int]bool)
		}
		pagesByText[t][r.Page] = true
	}
	out := make(map[string]bool)
	for t, pages := range pagesByText {
		if len(pages)*2 > doc.Pages {
			out[t] = true
		}
	}
	return out
}
