// Package openai implements groundrag.EmbeddingProvider over the OpenAI
// embeddings API, or any OpenAI-compatible endpoint via a base-URL override
// (OpenRouter, Azure-style gateways, local servers).
//
// Routed providers sometimes require namespaced model names such as
// "openai/text-embedding-3-large"; construct one Embedding per variant and
// chain them with groundrag.NewFallbackEmbedding.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	groundrag "github.com/prasetya/groundrag"
)

// Option configures an Embedding.
type Option func(*Embedding)

// WithBaseURL points the client at an OpenAI-compatible endpoint,
// e.g. "https://openrouter.ai/api/v1".
func WithBaseURL(url string) Option {
	return func(e *Embedding) { e.baseURL = url }
}

// WithDimensions overrides the vector size reported for the model.
// Defaults to the known-model table (1536 for unknown models).
func WithDimensions(dim int) Option {
	return func(e *Embedding) { e.dims = dim }
}

// WithTimeout bounds each API call. Default 60s.
func WithTimeout(d time.Duration) Option {
	return func(e *Embedding) { e.timeout = d }
}

// Embedding calls the embeddings endpoint for one model.
type Embedding struct {
	client  *openai.Client
	model   string
	baseURL string
	dims    int
	timeout time.Duration
}

var _ groundrag.EmbeddingProvider = (*Embedding)(nil)

// NewEmbedding creates an embedding provider for the given model.
func NewEmbedding(apiKey, model string, opts ...Option) *Embedding {
	e := &Embedding{
		model:   model,
		dims:    groundrag.EmbeddingDimensions(model),
		timeout: 60 * time.Second,
	}
	for _, o := range opts {
		o(e)
	}
	cfg := openai.DefaultConfig(apiKey)
	if e.baseURL != "" {
		cfg.BaseURL = e.baseURL
	}
	e.client = openai.NewClientWithConfig(cfg)
	return e
}

// Embed returns one vector per input text, in order.
func (e *Embedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: texts,
	})
	if err != nil {
		return nil, &groundrag.ErrEmbedding{
			Provider: e.Name(),
			Message:  err.Error(),
			Status:   apiStatus(err),
		}
	}
	if len(resp.Data) != len(texts) {
		return nil, &groundrag.ErrEmbedding{
			Provider: e.Name(),
			Message:  fmt.Sprintf("got %d embeddings for %d texts", len(resp.Data), len(texts)),
		}
	}
	vectors := make([][]float32, len(resp.Data))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, &groundrag.ErrEmbedding{
				Provider: e.Name(),
				Message:  fmt.Sprintf("embedding index %d out of range", d.Index),
			}
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// Dimensions returns the vector size for the configured model.
func (e *Embedding) Dimensions() int { return e.dims }

// Name identifies the provider and model, e.g. "openai/text-embedding-3-large".
func (e *Embedding) Name() string {
	if strings.Contains(e.model, "/") {
		return e.model
	}
	return "openai/" + e.model
}

// apiStatus extracts the HTTP status code from a go-openai error, or 0.
func apiStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}

// NewChain builds the standard fallback chain for a primary model:
// the model as configured, its "openai/"-namespaced variant when routing
// through a gateway that requires namespacing, and finally a smaller
// embedding model. Variants that would duplicate the primary are skipped.
func NewChain(apiKey, model string, namespaced bool, opts ...Option) *groundrag.FallbackEmbedding {
	providers := []groundrag.EmbeddingProvider{NewEmbedding(apiKey, model, opts...)}

	if namespaced && !strings.Contains(model, "/") && strings.HasPrefix(model, "text-embedding") {
		providers = append(providers, NewEmbedding(apiKey, "openai/"+model, opts...))
	}

	// Last resort: a smaller embedding model. Its vectors may not match the
	// collection's dimensionality, in which case the store rejects them and
	// the caller sees the ordinary failure path.
	const small = "text-embedding-3-small"
	if model != small && model != "openai/"+small {
		fallbackModel := small
		if namespaced {
			fallbackModel = "openai/" + small
		}
		providers = append(providers, NewEmbedding(apiKey, fallbackModel, opts...))
	}

	return groundrag.NewFallbackEmbedding(providers...)
}
