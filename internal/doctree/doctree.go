package doctree

import (
	"fmt"
	"strings"
)

// HeadingLevel orders structural roles from most to least prominent.
type HeadingLevel int

const (
	LevelTitle HeadingLevel = iota
	LevelH1
	LevelH2
	LevelH3
	LevelBody
)

func (l HeadingLevel) String() string {
	switch l {
	case LevelTitle:
		return "TITLE"
	case LevelH1:
		return "H1"
	case LevelH2:
		return "H2"
	case LevelH3:
		return "H3"
	default:
		return "BODY"
	}
}

// IsHeading reports whether the level opens a section.
func (l HeadingLevel) IsHeading() bool {
	return l >= LevelH1 && l <= LevelH3
}

// ParseLevel is the inverse of String.
func ParseLevel(s string) (HeadingLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TITLE":
		return LevelTitle, nil
	case "H1":
		return LevelH1, nil
	case "H2":
		return LevelH2, nil
	case "H3":
		return LevelH3, nil
	case "BODY":
		return LevelBody, nil
	}
	return LevelBody, fmt.Errorf("unknown heading level %q", s)
}

// TextRun is a contiguous span of text sharing one style.
type TextRun struct {
	Page      int     // 1-based
	Text      string
	FontSize  float64 // points
	Bold      bool
	BaselineY float64
	Order     int // reading order, strictly increasing within a document
}

// Document is the extractor output for one source file.
type Document struct {
	Name  string // source filename
	Title string // fallback title, usually the filename stem
	Pages int
	Runs  []TextRun
}

// OutlineNode is one heading in a document outline.
type OutlineNode struct {
	Level HeadingLevel
	Text  string
	Page  int
	Order int // Order of the run it came from
}

// Section is a contiguous body span anchored to a heading.
type Section struct {
	ID         string // "<document>#<ordinal>"
	Document   string
	Ordinal    int
	Heading    OutlineNode
	Breadcrumb []string // heading path, outermost first, ending with Heading.Text
	PageStart  int
	PageEnd    int
	Body       string
	Implicit   bool // preamble or whole-document section with no explicit heading
}

// HasBody reports whether the section carries any body text.
func (s *Section) HasBody() bool {
	return strings.TrimSpace(s.Body) != ""
}

// Query is the persona and task a collection is ranked against.
type Query struct {
	Persona     string
	JobToBeDone string
}

// Text combines persona and job into the single string that gets embedded.
// The format is fixed so that identical inputs always embed identically.
func (q Query) Text() string {
	return fmt.Sprintf("Persona: %s\nTask: %s", strings.TrimSpace(q.Persona), strings.TrimSpace(q.JobToBeDone))
}

// Passage is a sentence-packed slice of a section body used for refinement.
type Passage struct {
	ID        string // "<section id>#p<index>"
	SectionID string
	Index     int
	Text      string
}
