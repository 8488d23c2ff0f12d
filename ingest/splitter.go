package ingest

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	paragraphSep  = regexp.MustCompile(`\n\s*\n+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// SplitParagraphs splits text on runs of one or more blank lines, trims each
// paragraph, and drops empties. Input is NFC-normalized first so that
// composed and decomposed forms of the same text chunk identically.
func SplitParagraphs(text string) []string {
	text = strings.TrimSpace(norm.NFC.String(text))
	if text == "" {
		return nil
	}
	parts := paragraphSep.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// SplitSentences normalizes internal whitespace to single spaces, then splits
// after a sentence-terminal punctuation mark (. ! ?) followed by whitespace.
// This is a heuristic, not a sentence boundary detector: it will under- and
// over-split around abbreviations, which is accepted.
func SplitSentences(paragraph string) []string {
	paragraph = whitespaceRun.ReplaceAllString(strings.TrimSpace(paragraph), " ")
	if paragraph == "" {
		return nil
	}
	var sentences []string
	start := 0
	for i := 0; i < len(paragraph)-1; i++ {
		c := paragraph[i]
		if (c == '.' || c == '!' || c == '?') && paragraph[i+1] == ' ' {
			if s := strings.TrimSpace(paragraph[start : i+1]); s != "" {
				sentences = append(sentences, s)
			}
			start = i + 2
		}
	}
	if s := strings.TrimSpace(paragraph[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
