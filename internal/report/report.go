// Package report renders ranking results and outlines as JSON documents.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/outline"
	"github.com/dgallion1/docsift/internal/rank"
)

// TimestampFormat is used for processing_timestamp.
const TimestampFormat = time.RFC3339

// Omission records a document that was skipped during a run.
type Omission struct {
	Document string `json:"document"`
	Reason   string `json:"reason"`
}

type Metadata struct {
	InputDocuments      []string   `json:"input_documents"`
	Persona             string     `json:"persona"`
	JobToBeDone         string     `json:"job_to_be_done"`
	ProcessingTimestamp string     `json:"processing_timestamp"`
	OmittedDocuments    []Omission `json:"omitted_documents"`
}

type ExtractedSection struct {
	Document       string `json:"document"`
	SectionTitle   string `json:"section_title"`
	ImportanceRank int    `json:"importance_rank"`
	PageNumber     int    `json:"page_number"`
}

type Subsection struct {
	Document    string `json:"document"`
	RefinedText string `json:"refined_text"`
	PageNumber  int    `json:"page_number"`
}

// Report is the answer for one collection run.
type Report struct {
	Metadata           Metadata           `json:"metadata"`
	ExtractedSections  []ExtractedSection `json:"extracted_sections"`
	SubsectionAnalysis []Subsection       `json:"subsection_analysis"`
}

// Input carries the run-level facts that are not part of the ranking.
type Input struct {
	Documents []string
	Query     doctree.Query
	Omitted   []Omission
	Processed time.Time
}

// Build assembles a report. Subsection entries stay aligned with the
// extracted sections: a section without refined text reports its heading.
func Build(in Input, results []rank.Result) *Report {
	r := &Report{
		Metadata: Metadata{
			InputDocuments:      nonNil(in.Documents),
			Persona:             in.Query.Persona,
			JobToBeDone:         in.Query.JobToBeDone,
			ProcessingTimestamp: in.Processed.UTC().Format(TimestampFormat),
			OmittedDocuments:    in.Omitted,
		},
		ExtractedSections:  make([]ExtractedSection, 0, len(results)),
		SubsectionAnalysis: make([]Subsection, 0, len(results)),
	}
	if r.Metadata.OmittedDocuments == nil {
		r.Metadata.OmittedDocuments = []Omission{}
	}

	for _, res := range results {
		page := rank.Page(&res.Section)
		r.ExtractedSections = append(r.ExtractedSections, ExtractedSection{
			Document:       res.Section.Document,
			SectionTitle:   res.Section.Heading.Text,
			ImportanceRank: res.Rank,
			PageNumber:     page,
		})

		sub := Subsection{
			Document:    res.Section.Document,
			RefinedText: res.RefinedText,
			PageNumber:  res.RefinedPage,
		}
		if sub.RefinedText == "" {
			sub.RefinedText = res.Section.Heading.Text
			sub.PageNumber = page
		}
		r.SubsectionAnalysis = append(r.SubsectionAnalysis, sub)
	}
	return r
}

// OutlineEntry is one heading in an outline report.
type OutlineEntry struct {
	Level string `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

// OutlineReport is the per-document heading structure.
type OutlineReport struct {
	Title   string         `json:"title"`
	Outline []OutlineEntry `json:"outline"`
}

func BuildOutline(o *outline.Outline) *OutlineReport {
	out := &OutlineReport{Title: o.TitleText(), Outline: make([]OutlineEntry, 0, len(o.Nodes))}
	for _, n := range o.Nodes {
		out.Outline = append(out.Outline, OutlineEntry{Level: n.Level.String(), Text: n.Text, Page: n.Page})
	}
	return out
}

// Write encodes v as JSON, indented when pretty is set.
func Write(w io.Writer, v any, pretty bool) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
