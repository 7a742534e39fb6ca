package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/outline"
	"github.com/dgallion1/docsift/internal/textnorm"
)

// Segment partitions the body runs of doc into sections anchored to the
// headings in ol. A section runs from its heading to the next heading of any
// level. Body text before the first heading goes into an implicit preamble
// section; a document without headings becomes one implicit section titled
// with the document title.
func Segment(doc *doctree.Document, ol *outline.Outline) []doctree.Section {
	title := ol.TitleText()
	if title == "" {
		title = doc.Title
	}

	headings := make(map[int]doctree.OutlineNode, len(ol.Nodes))
	for _, n := range ol.Nodes {
		headings[n.Order] = n
	}

	var (
		sections []doctree.Section
		cur      *doctree.Section
		body     []string
		stack    []doctree.OutlineNode
	)

	closeSection := func() {
		if cur == nil {
			return
		}
		cur.Body = strings.Join(body, "\n\n")
		cur.Ordinal = len(sections)
		cur.ID = fmt.Sprintf("%s#%d", doc.Name, cur.Ordinal)
		sections = append(sections, *cur)
		cur, body = nil, nil
	}

	for i, r := range doc.Runs {
		level := doctree.LevelBody
		if i < len(ol.Levels) {
			level = ol.Levels[i]
		}

		switch {
		case level == doctree.LevelTitle:
			continue

		case level.IsHeading():
			closeSection()
			node, ok := headings[r.Order]
			if !ok {
				node = doctree.OutlineNode{Level: level, Text: textnorm.CleanHeading(r.Text), Page: r.Page, Order: r.Order}
			}
			// Close every open heading at the same or a deeper level, so a
			// jump from H1 to H3 nests the H3 directly under the H1.
			for len(stack) > 0 && stack[len(stack)-1].Level >= node.Level {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, node)
			cur = &doctree.Section{
				Document:   doc.Name,
				Heading:    node,
				Breadcrumb: breadcrumb(stack),
				PageStart:  r.Page,
				PageEnd:    r.Page,
			}

		default:
			if cur == nil {
				cur = &doctree.Section{
					Document:   doc.Name,
					Heading:    doctree.OutlineNode{Level: doctree.LevelTitle, Text: title, Page: r.Page, Order: r.Order},
					Breadcrumb: []string{title},
					PageStart:  r.Page,
					PageEnd:    r.Page,
					Implicit:   true,
				}
			}
			if r.Page > cur.PageEnd {
				cur.PageEnd = r.Page
			}
			if text := textnorm.Collapse(r.Text); text != "" {
				body = append(body, text)
			}
		}
	}
	closeSection()
	return sections
}

func breadcrumb(stack []doctree.OutlineNode) []string {
	out := make([]string, len(stack))
	for i, n := range stack {
		out[i] = n.Text
	}
	return out
}
