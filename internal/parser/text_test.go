package parser

import (
	"strings"
	"testing"
)

func TestTextParser_BasicParagraphSplitting(t *testing.T) {
	input := "First paragraph line one.\nFirst paragraph line two.\n\nSecond paragraph.\n\nThird paragraph."
	p := &TextParser{}
	doc, err := p.Parse(strings.NewReader(input), "notes.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if doc.Title != "notes" {
		t.Errorf("expected title %q, got %q", "notes", doc.Title)
	}

	want := []string{
		"First paragraph line one.\nFirst paragraph line two.",
		"Second paragraph.",
		"Third paragraph.",
	}
	if len(doc.Runs) != len(want) {
		t.Fatalf("expected %d runs, got %d", len(want), len(doc.Runs))
	}
	for i, w := range want {
		if doc.Runs[i].Text != w {
			t.Errorf("run[%d]: expected %q, got %q", i, w, doc.Runs[i].Text)
		}
		if doc.Runs[i].FontSize != bodySize {
			t.Errorf("run[%d]: expected uniform body size, got %v", i, doc.Runs[i].FontSize)
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	doc, err := (&TextParser{}).Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Runs) != 0 {
		t.Errorf("expected 0 runs for empty input, got %d", len(doc.Runs))
	}
}

func TestTextParser_MultipleBlankLines(t *testing.T) {
	// Multiple consecutive blank lines should not produce empty paragraphs.
	input := "Para one.\n\n\n\nPara two."
	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "gaps.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(doc.Runs))
	}
}

func TestTextParser_WhitespaceOnlyLines(t *testing.T) {
	input := "Para one.\n   \nPara two."
	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "ws.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(doc.Runs))
	}
}

func TestTextParser_FormFeedStartsNewPage(t *testing.T) {
	input := "Page one text.\n\fPage two text.\nstill page two\n\f\fPage four."
	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "paged.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	wantPages := []int{1, 2, 4}
	if len(doc.Runs) != len(wantPages) {
		t.Fatalf("expected %d runs, got %q", len(wantPages), runTexts(doc))
	}
	for i, p := range wantPages {
		if doc.Runs[i].Page != p {
			t.Errorf("run[%d] %q: expected page %d, got %d", i, doc.Runs[i].Text, p, doc.Runs[i].Page)
		}
	}
	if doc.Pages != 4 {
		t.Errorf("expected 4 pages, got %d", doc.Pages)
	}
}
