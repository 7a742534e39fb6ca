package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docsift/internal/doctree"
)

// TextParser handles plain text files. Each paragraph becomes one body run;
// a form feed starts a new page.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	b := newRunBuilder(filename)
	var current strings.Builder
	flush := func() {
		if current.Len() > 0 {
			b.body(current.String())
			current.Reset()
		}
	}

	for scanner.Scan() {
		line := scanner.Text()
		for strings.Contains(line, "\f") {
			before, after, _ := strings.Cut(line, "\f")
			if strings.TrimSpace(before) != "" {
				appendLine(&current, before)
			}
			flush()
			b.page++
			line = after
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		appendLine(&current, line)
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: read text: %v", ErrDocumentUnreadable, err)
	}
	return b.finish(), nil
}

func appendLine(sb *strings.Builder, line string) {
	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(line)
}
