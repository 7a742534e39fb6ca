package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/outline"
	"github.com/dgallion1/docsift/internal/rank"
)

var fixed = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func TestBuild_EmptyResultUsesEmptyArrays(t *testing.T) {
	r := Build(Input{Query: doctree.Query{Persona: "p", JobToBeDone: "j"}, Processed: fixed}, nil)

	var buf bytes.Buffer
	if err := Write(&buf, r, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		`"extracted_sections":[]`,
		`"subsection_analysis":[]`,
		`"input_documents":[]`,
		`"omitted_documents":[]`,
		`"processing_timestamp":"2025-03-01T12:00:00Z"`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %s in %s", want, out)
		}
	}
}

func TestBuild_AlignsSubsections(t *testing.T) {
	results := []rank.Result{
		{
			Section:     doctree.Section{Document: "b.pdf", Heading: doctree.OutlineNode{Text: "Budget Tips", Page: 3}},
			Rank:        1,
			RefinedText: "Share rooms to save money.",
			RefinedPage: 3,
		},
		{
			Section: doctree.Section{Document: "a.pdf", Heading: doctree.OutlineNode{Text: "Overview"}, PageStart: 7},
			Rank:    2,
		},
	}
	in := Input{
		Documents: []string{"a.pdf", "b.pdf"},
		Query:     doctree.Query{Persona: "Travel Planner", JobToBeDone: "Plan a trip"},
		Omitted:   []Omission{{Document: "c.pdf", Reason: "document unreadable"}},
		Processed: fixed,
	}
	r := Build(in, results)

	if len(r.ExtractedSections) != 2 || len(r.SubsectionAnalysis) != 2 {
		t.Fatalf("expected 2 aligned entries, got %d/%d", len(r.ExtractedSections), len(r.SubsectionAnalysis))
	}
	if got := r.ExtractedSections[0]; got != (ExtractedSection{"b.pdf", "Budget Tips", 1, 3}) {
		t.Errorf("unexpected first section %+v", got)
	}
	if got := r.ExtractedSections[1]; got.PageNumber != 7 {
		t.Errorf("expected page start fallback, got %+v", got)
	}
	if got := r.SubsectionAnalysis[0]; got.Document != "b.pdf" || got.RefinedText != "Share rooms to save money." {
		t.Errorf("unexpected first subsection %+v", got)
	}
	if got := r.SubsectionAnalysis[1]; got.RefinedText != "Overview" || got.PageNumber != 7 {
		t.Errorf("expected heading fallback, got %+v", got)
	}
	if r.Metadata.OmittedDocuments[0].Document != "c.pdf" {
		t.Errorf("omission lost: %+v", r.Metadata.OmittedDocuments)
	}
}

func TestBuildOutline(t *testing.T) {
	o := &outline.Outline{
		Title: &doctree.OutlineNode{Level: doctree.LevelTitle, Text: "Guide", Page: 1},
		Nodes: []doctree.OutlineNode{
			{Level: doctree.LevelH1, Text: "Intro", Page: 1},
			{Level: doctree.LevelH3, Text: "Detail", Page: 2},
		},
	}
	var buf bytes.Buffer
	if err := Write(&buf, BuildOutline(o), true); err != nil {
		t.Fatalf("write: %v", err)
	}
	var got OutlineReport
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Title != "Guide" || len(got.Outline) != 2 {
		t.Fatalf("unexpected outline report %+v", got)
	}
	if got.Outline[1] != (OutlineEntry{Level: "H3", Text: "Detail", Page: 2}) {
		t.Errorf("unexpected entry %+v", got.Outline[1])
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented output")
	}
}

func TestBuildOutline_Untitled(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, BuildOutline(&outline.Outline{}), false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if strings.TrimSpace(buf.String()) != `{"title":"","outline":[]}` {
		t.Errorf("unexpected output %s", buf.String())
	}
}
