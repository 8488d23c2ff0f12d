// Package token counts tokens for chunk-size budgeting.
//
// The default counter uses the cl100k_base subword encoding via
// tiktoken-go. Counting is deterministic and pure; it is used only to bound
// chunk sizes, never to alter text.
package token

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// encodingName is the one fixed encoding used everywhere chunk size is bounded.
const encodingName = "cl100k_base"

// Counter reports the token count of a text. Count("") is 0.
type Counter interface {
	Count(text string) int
}

// CounterFunc adapts a function to the Counter interface.
type CounterFunc func(text string) int

func (f CounterFunc) Count(text string) int { return f(text) }

// Tiktoken counts tokens with the cl100k_base BPE encoding.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

var _ Counter = (*Tiktoken)(nil)

// NewCounter loads the cl100k_base encoding. Loading may fetch the BPE
// vocabulary on first use; callers that must not fail can fall back to
// Heuristic.
func NewCounter() (*Tiktoken, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", encodingName, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Heuristic approximates token counts as ceil(runes / 4), the usual
// English-text ratio. Used when the BPE vocabulary is unavailable and in
// tests that need predictable counts.
type Heuristic struct{}

var _ Counter = Heuristic{}

// Count approximates the token count of text.
func (Heuristic) Count(text string) int {
	if text == "" {
		return 0
	}
	return (utf8.RuneCountInString(text) + 3) / 4
}
