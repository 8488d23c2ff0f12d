package groundrag

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// EmbeddingProvider abstracts text embedding.
type EmbeddingProvider interface {
	// Embed returns embedding vectors for the given texts, one per input,
	// in order. Implementations must support batches up to the Indexer's
	// configured batch size.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the embedding vector size.
	Dimensions() int
	// Name returns the provider name, used in errors and logs.
	Name() string
}

// modelDimensions maps known embedding model names to their vector size.
// Collections are created with the dimensionality of the configured model.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// defaultDimensions is assumed for models not in the table.
const defaultDimensions = 1536

// EmbeddingDimensions returns the vector size for a model name, accepting
// provider-namespaced variants like "openai/text-embedding-3-large".
func EmbeddingDimensions(model string) int {
	if d, ok := modelDimensions[model]; ok {
		return d
	}
	if i := lastSlash(model); i >= 0 {
		if d, ok := modelDimensions[model[i+1:]]; ok {
			return d
		}
	}
	return defaultDimensions
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// FallbackEmbedding tries an ordered list of providers until one succeeds.
// The indexing path configures the chain as primary model → namespaced
// variant → smaller model, so a batch only fails after every adapter has
// been tried. Safe for concurrent use.
type FallbackEmbedding struct {
	providers []EmbeddingProvider
	logger    *slog.Logger

	mu       sync.Mutex
	lastUsed string
}

var _ EmbeddingProvider = (*FallbackEmbedding)(nil)

// NewFallbackEmbedding creates a chain over the given providers, tried in
// order. At least one provider is required.
func NewFallbackEmbedding(providers ...EmbeddingProvider) *FallbackEmbedding {
	if len(providers) == 0 {
		panic("groundrag: NewFallbackEmbedding requires at least one provider")
	}
	return &FallbackEmbedding{providers: providers}
}

// SetLogger attaches a logger for fallback warnings. Nil disables logging.
func (f *FallbackEmbedding) SetLogger(l *slog.Logger) { f.logger = l }

// Embed tries each provider in order and returns the first success,
// recording which provider served the call. When all fail, the returned
// error wraps the last failure.
func (f *FallbackEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for _, p := range f.providers {
		vecs, err := p.Embed(ctx, texts)
		if err == nil {
			f.mu.Lock()
			f.lastUsed = p.Name()
			f.mu.Unlock()
			return vecs, nil
		}
		lastErr = err
		if f.logger != nil {
			f.logger.Warn("embedding provider failed, trying next",
				"provider", p.Name(), "error", err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, &ErrEmbedding{
		Provider: f.providers[len(f.providers)-1].Name(),
		Message:  fmt.Sprintf("all %d providers failed: %v", len(f.providers), lastErr),
		Status:   statusOf(lastErr),
	}
}

// Dimensions returns the primary provider's vector size. Fallback providers
// are expected to produce vectors of the same dimensionality; mixing sizes
// within one collection is a configuration error.
func (f *FallbackEmbedding) Dimensions() int { return f.providers[0].Dimensions() }

// Name returns "fallback".
func (f *FallbackEmbedding) Name() string { return "fallback" }

// LastUsed returns the name of the provider that served the most recent
// successful Embed call, or "" before the first success.
func (f *FallbackEmbedding) LastUsed() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastUsed
}
