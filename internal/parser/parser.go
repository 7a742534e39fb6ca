package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docsift/internal/doctree"
	"github.com/dgallion1/docsift/internal/textnorm"
)

// ErrDocumentUnreadable is wrapped by every extraction failure: corrupt or
// encrypted files, unsupported formats, files with no extractable text.
var ErrDocumentUnreadable = errors.New("document unreadable")

// Parser converts raw document bytes into ordered text runs.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Document, error)
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// Options tune the extractors that have knobs.
type Options struct {
	FallbackPdftotext bool
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported file extension %q", ErrDocumentUnreadable, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Synthetic point sizes for formats that declare heading levels instead of
// typography. They go through the same outline inference as PDFs.
const (
	bodySize = 11.0
)

func headingSize(level int) float64 {
	switch level {
	case 0: // explicit title style
		return 24
	case 1:
		return 20
	case 2:
		return 17
	case 3:
		return 14.5
	default:
		return 12.5
	}
}

// runBuilder appends runs with increasing order indices.
type runBuilder struct {
	doc  *doctree.Document
	page int
}

func newRunBuilder(filename string) *runBuilder {
	return &runBuilder{
		doc:  &doctree.Document{Name: filename, Title: stem(filename)},
		page: 1,
	}
}

func (b *runBuilder) add(text string, size float64, bold bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b.doc.Runs = append(b.doc.Runs, doctree.TextRun{
		Page:     b.page,
		Text:     textnorm.Ligatures(text),
		FontSize: size,
		Bold:     bold,
		Order:    len(b.doc.Runs),
	})
}

func (b *runBuilder) heading(level int, text string) {
	b.add(text, headingSize(level), true)
}

func (b *runBuilder) body(text string) {
	b.add(text, bodySize, false)
}

func (b *runBuilder) finish() *doctree.Document {
	b.doc.Pages = b.page
	return b.doc
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
