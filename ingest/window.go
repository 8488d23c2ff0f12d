package ingest

import (
	"iter"
	"strings"

	"github.com/prasetya/groundrag/token"
)

// Chunker splits text into chunks suitable for embedding.
type Chunker interface {
	Chunk(text string) []string
}

// ChunkerOption configures a WindowChunker.
type ChunkerOption func(*chunkerConfig)

type chunkerConfig struct {
	maxTokens     int
	overlapTokens int
	counter       token.Counter
}

func defaultChunkerConfig() chunkerConfig {
	return chunkerConfig{maxTokens: 800, overlapTokens: 100, counter: token.Heuristic{}}
}

// WithMaxTokens sets the token budget per window.
func WithMaxTokens(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.maxTokens = n }
}

// WithOverlapTokens sets the approximate token overlap between consecutive
// windows. Overlap is computed in whole-sentence units, so it is a target,
// not an exact bound.
func WithOverlapTokens(n int) ChunkerOption {
	return func(c *chunkerConfig) { c.overlapTokens = n }
}

// WithCounter sets the token counter. Default is the rune heuristic;
// production callers pass token.NewCounter().
func WithCounter(c token.Counter) ChunkerOption {
	return func(cfg *chunkerConfig) { cfg.counter = c }
}

// WindowChunker groups sentences into overlapping windows bounded by a token
// budget, then joins each window with single spaces.
type WindowChunker struct {
	cfg chunkerConfig
}

var _ Chunker = (*WindowChunker)(nil)

// NewWindowChunker creates a WindowChunker with the given options.
func NewWindowChunker(opts ...ChunkerOption) *WindowChunker {
	cfg := defaultChunkerConfig()
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.maxTokens < 1 {
		cfg.maxTokens = 1
	}
	if cfg.overlapTokens < 0 {
		cfg.overlapTokens = 0
	}
	return &WindowChunker{cfg: cfg}
}

// Windows lazily yields overlapping sentence windows. Each window is a
// contiguous sentence run joined by single spaces, with token count at most
// the budget, except a window holding a single over-long sentence, which is
// emitted intact so the cursor always advances.
//
// The sequence is finite and single-use.
func (w *WindowChunker) Windows(sentences []string) iter.Seq[string] {
	return func(yield func(string) bool) {
		n := len(sentences)
		if n == 0 {
			return
		}
		counts := make([]int, n)
		for i, s := range sentences {
			counts[i] = w.cfg.counter.Count(s)
		}

		start := 0
		for start < n {
			// Greedily accumulate sentences, stopping before the budget is
			// exceeded. An empty run always accepts its first sentence, even
			// over budget.
			total := 0
			i := start
			for i < n {
				if i > start && total+counts[i] > w.cfg.maxTokens {
					break
				}
				total += counts[i]
				i++
			}

			if !yield(strings.Join(sentences[start:i], " ")) {
				return
			}
			if i >= n {
				return
			}

			// Walk backward through the run until the overlap budget is met;
			// j+1 is the index of the first overlapping sentence within the
			// run. Advancing by at least one sentence guarantees progress
			// even when the overlap covers the whole run.
			back := 0
			j := i - start - 1
			for j >= 0 && back < w.cfg.overlapTokens {
				back += counts[start+j]
				j--
			}
			start += max(j+1, 1)
		}
	}
}

// Chunk runs the full paragraph → sentence → window pipeline and collects
// every window, in paragraph order, into one flat slice.
func (w *WindowChunker) Chunk(text string) []string {
	var chunks []string
	for _, para := range SplitParagraphs(text) {
		for c := range w.Windows(SplitSentences(para)) {
			chunks = append(chunks, c)
		}
	}
	return chunks
}
