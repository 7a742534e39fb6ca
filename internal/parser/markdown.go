package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown files using goldmark.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read markdown: %v", ErrDocumentUnreadable, err)
	}

	md := goldmark.New()
	reader := text.NewReader(src)
	root := md.Parser().Parse(reader)

	b := newRunBuilder(filename)
	for n := root.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			b.heading(node.Level, extractText(node, src))
		case *ast.ThematicBreak:
		case *ast.Paragraph:
			// A paragraph that is nothing but **strong text** is a run-in heading.
			if strong, ok := soleStrong(node); ok {
				b.add(extractText(strong, src), bodySize, true)
				continue
			}
			b.body(extractText(node, src))
		default:
			b.body(extractText(n, src))
		}
	}
	return b.finish(), nil
}

func soleStrong(p *ast.Paragraph) (ast.Node, bool) {
	c := p.FirstChild()
	if c == nil || c.NextSibling() != nil {
		return nil, false
	}
	em, ok := c.(*ast.Emphasis)
	if !ok || em.Level != 2 {
		return nil, false
	}
	return em, true
}

// extractText gets the text content of a goldmark AST node.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && !n.HasChildren() {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		if t, ok := c.(*ast.Text); ok {
			buf.Write(t.Value(src))
			if t.HardLineBreak() || t.SoftLineBreak() {
				buf.WriteByte('\n')
			}
			continue
		}
		if c.Type() == ast.TypeBlock && buf.Len() > 0 {
			buf.WriteByte('\n')
		}
		buf.WriteString(extractText(c, src))
	}
	return strings.TrimSpace(buf.String())
}
