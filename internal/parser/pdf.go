package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"sort"
	"strings"

	"github.com/dgallion1/docsift/internal/doctree"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser handles PDF files. It reads glyph positions and font metrics
// with the Go library and, when enabled, falls back to pdftotext. The
// fallback loses typography, so its documents come out flat.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Parse(r io.Reader, filename string) (*doctree.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read pdf: %v", ErrDocumentUnreadable, err)
	}

	doc, err := extractPDFRuns(data, filename)
	if err == nil && len(doc.Runs) > 0 {
		return doc, nil
	}
	if err == nil {
		err = errors.New("no extractable text")
	}
	if p.FallbackPdftotext {
		if fallback, ferr := extractPdftotext(data, filename); ferr == nil && len(fallback.Runs) > 0 {
			return fallback, nil
		}
	}
	return nil, fmt.Errorf("%w: %s: %v", ErrDocumentUnreadable, filename, err)
}

func extractPDFRuns(data []byte, filename string) (doc *doctree.Document, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			doc, err = nil, fmt.Errorf("pdf reader: %v", rec)
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}

	doc = &doctree.Document{Name: filename, Title: stem(filename), Pages: reader.NumPage()}
	if t := strings.TrimSpace(reader.Trailer().Key("Info").Key("Title").Text()); t != "" {
		doc.Title = t
	}
	for i := 1; i <= doc.Pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := pageContent(page)
		if err != nil {
			continue
		}
		doc.Runs = append(doc.Runs, assembleRuns(i, content.Text, len(doc.Runs))...)
	}
	return doc, nil
}

func pageContent(page pdflib.Page) (c pdflib.Content, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("page content: %v", rec)
		}
	}()
	return page.Content(), nil
}

// Layout thresholds, expressed as fractions of the font size.
const (
	baselineTolerance = 0.4
	wordGapRatio      = 0.15
	lineGapRatio      = 1.6
	runSizeTolerance  = 0.25 // points
)

type segment struct {
	text      string
	size      float64
	bold      bool
	y         float64
	firstInLn bool
	lastInLn  bool
}

// assembleRuns turns the glyphs of one page into style-homogeneous runs in
// reading order: glyphs are grouped into lines by baseline, lines are split
// where the font size changes, and consecutive lines of the same style are
// merged into one run.
func assembleRuns(page int, glyphs []pdflib.Text, startOrder int) []doctree.TextRun {
	var segs []segment
	for _, line := range groupLines(glyphs) {
		segs = append(segs, splitLine(line)...)
	}

	var runs []doctree.TextRun
	var prev *segment
	for i := range segs {
		s := &segs[i]
		if prev != nil && len(runs) > 0 && mergeable(prev, s) {
			last := &runs[len(runs)-1]
			last.Text = strings.TrimSpace(last.Text + " " + s.text)
			prev = s
			continue
		}
		runs = append(runs, doctree.TextRun{
			Page:      page,
			Text:      s.text,
			FontSize:  math.Round(s.size*100) / 100,
			Bold:      s.bold,
			BaselineY: s.y,
			Order:     startOrder + len(runs),
		})
		prev = s
	}
	return runs
}

func mergeable(prev, cur *segment) bool {
	if !prev.lastInLn || !cur.firstInLn {
		return false
	}
	if prev.bold != cur.bold || math.Abs(prev.size-cur.size) > runSizeTolerance {
		return false
	}
	gap := prev.y - cur.y
	return gap > 0 && gap <= lineGapRatio*cur.size
}

func groupLines(glyphs []pdflib.Text) [][]pdflib.Text {
	gs := make([]pdflib.Text, 0, len(glyphs))
	for _, g := range glyphs {
		if g.S != "" && g.FontSize > 0 {
			gs = append(gs, g)
		}
	}
	// PDF user space has its origin at the bottom left.
	sort.SliceStable(gs, func(i, j int) bool { return gs[i].Y > gs[j].Y })

	var lines [][]pdflib.Text
	var cur []pdflib.Text
	var curY float64
	for _, g := range gs {
		if len(cur) > 0 && curY-g.Y > baselineTolerance*g.FontSize {
			lines = append(lines, cur)
			cur = nil
		}
		if len(cur) == 0 {
			curY = g.Y
		}
		cur = append(cur, g)
	}
	if len(cur) > 0 {
		lines = append(lines, cur)
	}
	for _, ln := range lines {
		sort.SliceStable(ln, func(i, j int) bool { return ln[i].X < ln[j].X })
	}
	return lines
}

func splitLine(line []pdflib.Text) []segment {
	var segs []segment
	var buf strings.Builder
	var boldChars, chars int
	var start, prev pdflib.Text

	flush := func() {
		text := strings.Join(strings.Fields(buf.String()), " ")
		if text != "" {
			segs = append(segs, segment{
				text: text,
				size: start.FontSize,
				bold: boldChars*2 > chars,
				y:    start.Y,
			})
		}
		buf.Reset()
		boldChars, chars = 0, 0
	}

	for i, g := range line {
		switch {
		case i == 0:
			start = g
		case math.Abs(g.FontSize-start.FontSize) > runSizeTolerance:
			flush()
			start = g
		default:
			gap := g.X - (prev.X + prev.W)
			if gap > wordGapRatio*g.FontSize && !strings.HasSuffix(buf.String(), " ") && !strings.HasPrefix(g.S, " ") {
				buf.WriteByte(' ')
			}
		}
		buf.WriteString(g.S)
		n := len([]rune(strings.TrimSpace(g.S)))
		chars += n
		if isBoldFont(g.Font) {
			boldChars += n
		}
		prev = g
	}
	flush()

	if len(segs) > 0 {
		segs[0].firstInLn = true
		segs[len(segs)-1].lastInLn = true
	}
	return segs
}

func isBoldFont(name string) bool {
	n := strings.ToLower(name)
	for _, k := range []string{"bold", "black", "heavy", "demi"} {
		if strings.Contains(n, k) {
			return true
		}
	}
	return false
}

func extractPdftotext(data []byte, filename string) (*doctree.Document, error) {
	tmp, err := os.CreateTemp("", "docsift-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmpPath, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	// pdftotext separates pages with form feeds, which TextParser understands.
	doc, err := (&TextParser{}).Parse(bytes.NewReader(out), filename)
	if err != nil {
		return nil, err
	}
	doc.Title = stem(filename)
	return doc, nil
}
