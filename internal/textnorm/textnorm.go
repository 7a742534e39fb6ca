// Package textnorm normalises text pulled out of documents before it is
// classified, segmented or reported.
package textnorm

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var punctReplacer = strings.NewReplacer(
	"‘", "'",
	"’", "'",
	"“", `"`,
	"”", `"`,
	"–", "-",
	"—", "-",
	"…", "...",
	" ", " ",
)

var ligatureReplacer = strings.NewReplacer(
	"ﬀ", "ff",
	"ﬁ", "fi",
	"ﬂ", "fl",
	"ﬃ", "ffi",
	"ﬄ", "ffl",
	"ﬅ", "ft",
	"ﬆ", "st",
)

var (
	reBacktick      = regexp.MustCompile("`([^`]+)`")
	reBold          = regexp.MustCompile(`_?\*\*(.*?)\*\*_?`)
	reItalic        = regexp.MustCompile(`\*([^*]+)\*`)
	reUnderscore    = regexp.MustCompile(`\b_([^_]+)_\b`)
	reHashes        = regexp.MustCompile(`#+`)
	reLeaderNum     = regexp.MustCompile(`\s*[.\-_ ]{3,}\s*\d+$`)
	reRepeatedPunct = regexp.MustCompile(`[.\-,"=]{2,}`)
	rePageOf        = regexp.MustCompile(`(?i)^page\s+\d+(\s+of\s+\d+)?$`)
)

// ASCIIPunct replaces typographic punctuation with ASCII equivalents.
func ASCIIPunct(s string) string {
	return punctReplacer.Replace(s)
}

// Ligatures expands single-codepoint ligatures.
func Ligatures(s string) string {
	return ligatureReplacer.Replace(s)
}

// Collapse trims s and squeezes every whitespace run to a single space.
func Collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanHeading prepares heading text for an outline: markup and dot leaders
// are removed, along with a trailing page number.
func CleanHeading(s string) string {
	s = Ligatures(ASCIIPunct(s))
	s = reBacktick.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "`", "")
	s = reBold.ReplaceAllString(s, "$1")
	// TOC entries: "Introduction ........ 4"
	if t := reLeaderNum.ReplaceAllString(s, ""); strings.TrimSpace(t) != "" {
		s = t
	}
	s = reRepeatedPunct.ReplaceAllString(s, " ")
	return Collapse(s)
}

// CleanPassage prepares body text for the report.
func CleanPassage(s string) string {
	s = Ligatures(ASCIIPunct(s))
	s = strings.ReplaceAll(s, `•`, "-")
	s = strings.ReplaceAll(s, "•", "-")
	s = strings.ReplaceAll(s, "-.", "-")
	s = reHashes.ReplaceAllString(s, "")
	s = reBacktick.ReplaceAllString(s, "$1")
	s = reBold.ReplaceAllString(s, "$1")
	s = reItalic.ReplaceAllString(s, "$1")
	s = reUnderscore.ReplaceAllString(s, "$1")
	s = Collapse(s)
	return capitalizeFirst(s)
}

// IsNoise reports whether a line carries no heading or body content:
// bare page numbers, "Page 3 of 10" footers, punctuation-only rules.
func IsNoise(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return true
	}
	if rePageOf.MatchString(s) {
		return true
	}
	for _, r := range s {
		if unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// StartsLower reports whether the first letter of s is lower case.
func StartsLower(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return unicode.IsLower(r)
		}
		if !unicode.IsSpace(r) && !unicode.IsPunct(r) {
			return false
		}
	}
	return false
}

// Snippet truncates s to at most max runes, cutting at the last sentence
// end when there is one.
func Snippet(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)[:max]
	cut := string(r)
	if i := strings.LastIndex(cut, ". "); i > 0 {
		return cut[:i+1]
	}
	if i := strings.LastIndexByte(cut, ' '); i > 0 {
		return cut[:i]
	}
	return cut
}

func capitalizeFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || !unicode.IsLower(r) {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
