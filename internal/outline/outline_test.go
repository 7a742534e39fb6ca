package outline

import (
	"io"
	"log/slog"
	"testing"

	"github.com/dgallion1/docsift/internal/doctree"
)

type run struct {
	page int
	text string
	size float64
	bold bool
}

func makeDoc(runs ...run) *doctree.Document {
	doc := &doctree.Document{Name: "test.pdf", Title: "test"}
	for i, r := range runs {
		doc.Runs = append(doc.Runs, doctree.TextRun{
			Page: r.page, Text: r.text, FontSize: r.size, Bold: r.bold, Order: i,
		})
		if r.page > doc.Pages {
			doc.Pages = r.page
		}
	}
	return doc
}

func newTestBuilder() *Builder {
	return NewBuilder(DefaultConfig(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const para = "This paragraph carries enough body text to dominate the character count of the page."

func levelsOf(o *Outline) []string {
	out := make([]string, len(o.Levels))
	for i, l := range o.Levels {
		out[i] = l.String()
	}
	return out
}

func TestBuild_TitleH1H2Body(t *testing.T) {
	doc := makeDoc(
		run{1, "Annual Report", 24, true},
		run{1, "Introduction", 18, true},
		run{1, para, 11, false},
		run{2, "Background", 14, true},
		run{2, para, 11, false},
		run{3, "Results", 18, true},
		run{3, para, 11, false},
	)
	o := newTestBuilder().Build(doc)

	want := []string{"TITLE", "H1", "BODY", "H2", "BODY", "H1", "BODY"}
	got := levelsOf(o)
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("levels = %v, want %v", got, want)
		}
	}
	if o.TitleText() != "Annual Report" {
		t.Errorf("expected title %q, got %q", "Annual Report", o.TitleText())
	}
	if len(o.Nodes) != 3 {
		t.Fatalf("expected 3 outline nodes, got %+v", o.Nodes)
	}
	if n := o.Nodes[1]; n.Level != doctree.LevelH2 || n.Text != "Background" || n.Page != 2 {
		t.Errorf("unexpected node %+v", n)
	}
	if o.LowConfidence {
		t.Errorf("did not expect low confidence: %s", o.Reason)
	}
}

func TestBuild_FlatDocument(t *testing.T) {
	doc := makeDoc(
		run{1, para, 11, false},
		run{1, para, 11, false},
		run{2, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if len(o.Nodes) != 0 || o.Title != nil {
		t.Fatalf("expected empty outline, got title=%v nodes=%+v", o.Title, o.Nodes)
	}
	if !o.LowConfidence {
		t.Error("expected low confidence for a flat document")
	}
	for i, l := range o.Levels {
		if l != doctree.LevelBody {
			t.Errorf("run %d: expected BODY, got %s", i, l)
		}
	}
}

func TestBuild_TwoSizesLargerIsH1(t *testing.T) {
	doc := makeDoc(
		run{1, "Overview", 16, false},
		run{1, para, 11, false},
		run{2, "Details", 16, false},
		run{2, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if o.Title != nil {
		t.Errorf("expected no title with a single heading style, got %q", o.TitleText())
	}
	if len(o.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %+v", o.Nodes)
	}
	for _, n := range o.Nodes {
		if n.Level != doctree.LevelH1 {
			t.Errorf("expected H1, got %s for %q", n.Level, n.Text)
		}
	}
}

func TestBuild_SingleLargeRunIsH1NotTitle(t *testing.T) {
	doc := makeDoc(
		run{1, "Only Heading", 20, true},
		run{1, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if o.Title != nil {
		t.Fatalf("expected no title, got %q", o.TitleText())
	}
	if len(o.Nodes) != 1 || o.Nodes[0].Level != doctree.LevelH1 {
		t.Fatalf("expected one H1, got %+v", o.Nodes)
	}
}

func TestBuild_MoreThanThreeStylesCollapseToH3(t *testing.T) {
	doc := makeDoc(
		run{1, "Part One", 20, true},
		run{1, "Chapter One", 17, true},
		run{1, "Section One", 14.5, true},
		run{1, "Subsection One", 12.5, true},
		run{1, para, 11, false},
		run{2, "Part Two", 20, true},
		run{2, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	want := []doctree.HeadingLevel{doctree.LevelH1, doctree.LevelH2, doctree.LevelH3, doctree.LevelH3, doctree.LevelH1}
	if len(o.Nodes) != len(want) {
		t.Fatalf("expected %d nodes, got %+v", len(want), o.Nodes)
	}
	for i, l := range want {
		if o.Nodes[i].Level != l {
			t.Errorf("node %d (%q): expected %s, got %s", i, o.Nodes[i].Text, l, o.Nodes[i].Level)
		}
	}
	if !o.LowConfidence {
		t.Error("expected low confidence when styles collapse")
	}
}

func TestBuild_BoldOutranksRegularAtSameSize(t *testing.T) {
	doc := makeDoc(
		run{1, "Regular Heading", 14, false},
		run{1, para, 11, false},
		run{1, "Bold Heading", 14, true},
		run{1, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if len(o.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %+v", o.Nodes)
	}
	if o.Nodes[0].Level != doctree.LevelH2 || o.Nodes[1].Level != doctree.LevelH1 {
		t.Errorf("expected bold=H1 regular=H2, got %s/%s", o.Nodes[1].Level, o.Nodes[0].Level)
	}
}

func TestBuild_SizeToleranceMergesTiers(t *testing.T) {
	doc := makeDoc(
		run{1, "First Heading", 16, true},
		run{1, para, 11, false},
		run{1, "Second Heading", 15.7, true},
		run{1, para, 11.2, false},
	)
	o := newTestBuilder().Build(doc)
	if len(o.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %+v", o.Nodes)
	}
	if o.Nodes[0].Level != o.Nodes[1].Level {
		t.Errorf("sizes within tolerance should share a level, got %s and %s", o.Nodes[0].Level, o.Nodes[1].Level)
	}
}

func TestBuild_LevelsAreDocumentLocal(t *testing.T) {
	small := makeDoc(
		run{1, "Small Title", 14, true},
		run{1, "Small Section", 12, true},
		run{1, para, 9, false},
	)
	large := makeDoc(
		run{1, "Large Section", 30, true},
		run{1, para, 18, false},
	)
	b := newTestBuilder()
	so := b.Build(small)
	lo := b.Build(large)
	if so.TitleText() != "Small Title" {
		t.Errorf("expected small doc title, got %q", so.TitleText())
	}
	if len(so.Nodes) != 1 || so.Nodes[0].Level != doctree.LevelH1 {
		t.Errorf("small doc: expected one H1, got %+v", so.Nodes)
	}
	if len(lo.Nodes) != 1 || lo.Nodes[0].Level != doctree.LevelH1 {
		t.Errorf("large doc: expected one H1, got %+v", lo.Nodes)
	}
}

func TestBuild_HeadingShapeRules(t *testing.T) {
	doc := makeDoc(
		run{1, "Valid Heading", 14, true},
		run{1, "continued from the previous page", 14, true},
		run{1, "42", 14, true},
		run{1, para, 11, false},
		run{1, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if len(o.Nodes) != 1 || o.Nodes[0].Text != "Valid Heading" {
		t.Fatalf("expected only the valid heading, got %+v", o.Nodes)
	}
	if o.Levels[1] != doctree.LevelBody || o.Levels[2] != doctree.LevelBody {
		t.Errorf("lowercase and numeric runs should be BODY, got %v", levelsOf(o))
	}
}

func TestBuild_TitleIsUniqueAndFirst(t *testing.T) {
	doc := makeDoc(
		run{1, "Guide to", 26, true},
		run{1, "the South of France", 26, true},
		run{1, "Cities", 18, true},
		run{1, para, 11, false},
		run{2, "Cuisine", 18, true},
		run{2, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if o.TitleText() != "Guide to the South of France" {
		t.Fatalf("expected multi-run title, got %q", o.TitleText())
	}
	titles := 0
	for _, n := range o.Nodes {
		if n.Level == doctree.LevelTitle {
			titles++
		}
	}
	if titles != 0 {
		t.Errorf("title must not appear among outline nodes")
	}
	if o.Nodes[0].Text != "Cities" || o.Nodes[0].Level != doctree.LevelH1 {
		t.Errorf("expected Cities as H1, got %+v", o.Nodes[0])
	}
	if o.Title.Order >= o.Nodes[0].Order {
		t.Errorf("title (order %d) must precede the first heading (order %d)", o.Title.Order, o.Nodes[0].Order)
	}
}

func TestBuild_NoTitleAfterAHeading(t *testing.T) {
	doc := makeDoc(
		run{1, "Chapter One", 14, true},
		run{1, "Big Report Title", 24, true},
		run{1, para, 11, false},
		run{1, "Methods", 14, true},
		run{1, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if o.Title != nil {
		t.Fatalf("a title may not follow a heading, got %q", o.TitleText())
	}
	for i, l := range o.Levels {
		if l == doctree.LevelTitle {
			t.Errorf("run %d labelled TITLE", i)
		}
	}
	if len(o.Nodes) != 3 || o.Nodes[0].Text != "Chapter One" {
		t.Fatalf("expected all three headings as nodes, got %+v", o.Nodes)
	}
	if o.Nodes[1].Level != doctree.LevelH1 || o.Nodes[0].Level != doctree.LevelH2 {
		t.Errorf("expected the larger style as H1, got %s/%s", o.Nodes[1].Level, o.Nodes[0].Level)
	}
}

func TestBuild_TitleSkippedWhenStyleReused(t *testing.T) {
	doc := makeDoc(
		run{1, "Chapter One", 20, true},
		run{1, "Scope", 16, true},
		run{1, para, 11, false},
		run{2, "Chapter Two", 20, true},
		run{2, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if o.Title != nil {
		t.Fatalf("expected no title when the largest style repeats, got %q", o.TitleText())
	}
	if o.Nodes[0].Level != doctree.LevelH1 || o.Nodes[1].Level != doctree.LevelH2 {
		t.Errorf("unexpected levels %+v", o.Nodes)
	}
}

func TestBuild_PageFurnitureIgnored(t *testing.T) {
	doc := makeDoc(
		run{1, "Confidential", 16, true},
		run{1, "Summary", 14, true},
		run{1, para, 11, false},
		run{2, "Confidential", 16, true},
		run{2, para, 11, false},
		run{3, "Confidential", 16, true},
		run{3, para, 11, false},
	)
	o := newTestBuilder().Build(doc)
	if o.Title != nil {
		t.Errorf("running header must not become the title, got %q", o.TitleText())
	}
	if len(o.Nodes) != 1 || o.Nodes[0].Text != "Summary" {
		t.Fatalf("expected only Summary, got %+v", o.Nodes)
	}
}

func TestBuild_EmptyDocument(t *testing.T) {
	o := newTestBuilder().Build(&doctree.Document{Name: "empty.pdf"})
	if len(o.Levels) != 0 || len(o.Nodes) != 0 || o.Title != nil {
		t.Fatalf("expected empty outline, got %+v", o)
	}
}

func TestClusterSizes(t *testing.T) {
	tiers := clusterSizes([]float64{11, 11.3, 14, 13.6, 18, 11}, 0.5)
	want := []float64{18, 14, 11.3}
	if len(tiers) != len(want) {
		t.Fatalf("tiers = %v, want %v", tiers, want)
	}
	for i := range want {
		if tiers[i] != want[i] {
			t.Errorf("tiers = %v, want %v", tiers, want)
		}
	}
	if got := tierOf(tiers, 13.6, 0.5); got != 1 {
		t.Errorf("tierOf(13.6) = %d, want 1", got)
	}
}
