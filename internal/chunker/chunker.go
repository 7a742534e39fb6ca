package chunker

import (
	"fmt"
	"strings"

	"github.com/dgallion1/docsift/internal/doctree"
)

// Config controls passage splitting for subsection analysis.
type Config struct {
	PassageSize    int // Target passage size in tokens.
	PassageOverlap int // Overlap between consecutive passages in tokens.
	MinPassage     int // Passages below this are dropped unless nothing else remains.
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		PassageSize:    120,
		PassageOverlap: 0,
		MinPassage:     8,
	}
}

// Passages splits the body of sec into sentence-packed passages.
func Passages(sec *doctree.Section, cfg Config) []doctree.Passage {
	if cfg.PassageSize <= 0 {
		cfg.PassageSize = 120
	}
	if cfg.PassageOverlap < 0 {
		cfg.PassageOverlap = 0
	}
	if !sec.HasBody() {
		return nil
	}

	parts := splitText(sec.Body, cfg.PassageSize, cfg.PassageOverlap)
	kept := parts[:0:0]
	for _, p := range parts {
		if EstimateTokens(p) >= cfg.MinPassage {
			kept = append(kept, p)
		}
	}
	if len(kept) == 0 {
		kept = parts
	}

	out := make([]doctree.Passage, len(kept))
	for i, p := range kept {
		out[i] = doctree.Passage{
			ID:        fmt.Sprintf("%s#p%d", sec.ID, i),
			SectionID: sec.ID,
			Index:     i,
			Text:      p,
		}
	}
	return out
}

// splitText breaks text into chunks of approximately targetTokens, with overlap.
func splitText(text string, targetTokens, overlapTokens int) []string {
	// Split by paragraphs first.
	paragraphs := splitByParagraphs(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, para := range paragraphs {
		paraTokens := EstimateTokens(para)

		// If a single paragraph exceeds the target, split it further.
		if paraTokens > targetTokens {
			if currentTokens > 0 {
				result = append(result, current.String())
				current.Reset()
				currentTokens = 0
			}
			subParts := splitBySentences(para, targetTokens, overlapTokens)
			result = append(result, subParts...)
			continue
		}

		if currentTokens+paraTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())

			// Start next chunk with overlap from end of current.
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
		currentTokens += paraTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitByParagraphs splits on double-newlines.
func splitByParagraphs(text string) []string {
	parts := strings.Split(text, "\n\n")
	var result []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentences breaks a large paragraph into sentence-based chunks.
func splitBySentences(text string, targetTokens, overlapTokens int) []string {
	sentences := splitSentences(text)

	var result []string
	var current strings.Builder
	currentTokens := 0

	for _, sent := range sentences {
		sentTokens := EstimateTokens(sent)

		if currentTokens+sentTokens > targetTokens && currentTokens > 0 {
			result = append(result, current.String())
			overlap := getOverlapText(current.String(), overlapTokens)
			current.Reset()
			currentTokens = 0
			if overlap != "" {
				current.WriteString(overlap)
				currentTokens = EstimateTokens(overlap)
			}
		}

		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sent)
		currentTokens += sentTokens
	}

	if currentTokens > 0 {
		result = append(result, current.String())
	}

	return result
}

// splitSentences does basic sentence splitting.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	for i, r := range text {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') && i+1 < len(text) && text[i+1] == ' ' {
			sentences = append(sentences, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		sentences = append(sentences, s)
	}

	return sentences
}

// getOverlapText extracts the last N tokens worth of text for overlap.
func getOverlapText(text string, targetTokens int) string {
	words := strings.Fields(text)
	// Approximate: 1.33 tokens per word.
	targetWords := int(float64(targetTokens) / 1.33)
	if targetWords <= 0 || len(words) <= targetWords {
		return ""
	}
	return strings.Join(words[len(words)-targetWords:], " ")
}
