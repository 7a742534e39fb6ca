package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Heading styles map to synthetic sizes;
// paragraphs whose runs are all bold are treated as run-in headings.
type DOCXParser struct{}

func (p *DOCXParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read docx: %v", ErrDocumentUnreadable, err)
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: parse docx: %v", ErrDocumentUnreadable, err)
	}

	b := newRunBuilder(filename)
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text, allBold := docxParagraphText(para)
		if text == "" {
			continue
		}
		switch level := docxHeadingLevel(para); {
		case level >= 0:
			b.heading(level, text)
		case allBold:
			b.add(text, bodySize, true)
		default:
			b.body(text)
		}
	}
	return b.finish(), nil
}

// docxHeadingLevel returns 0 for the Title style, 1-6 for HeadingN and -1
// for everything else.
func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return -1
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 0
	}
	if rest, ok := strings.CutPrefix(style, "heading"); ok && len(rest) == 1 && rest[0] >= '1' && rest[0] <= '6' {
		return int(rest[0] - '0')
	}
	return -1
}

func docxParagraphText(para *docx.Paragraph) (string, bool) {
	var buf strings.Builder
	allBold, sawText := true, false
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		var runText strings.Builder
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				runText.WriteString(t.Text)
			}
		}
		if strings.TrimSpace(runText.String()) != "" {
			sawText = true
			if run.RunProperties == nil || run.RunProperties.Bold == nil {
				allBold = false
			}
		}
		buf.WriteString(runText.String())
	}
	return strings.TrimSpace(buf.String()), sawText && allBold
}
