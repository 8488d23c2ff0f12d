package groundrag

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// retryEmbedding wraps an EmbeddingProvider and retries transient HTTP errors
// (status 429 Too Many Requests and 503 Service Unavailable) with exponential
// backoff.
type retryEmbedding struct {
	inner       EmbeddingProvider
	maxAttempts int
	baseDelay   time.Duration
	timeout     time.Duration // overall timeout across all attempts; 0 = no limit
	logger      *slog.Logger
}

// RetryOption configures WithEmbeddingRetry.
type RetryOption func(*retryEmbedding)

// RetryMaxAttempts sets the maximum number of attempts (default: 3).
func RetryMaxAttempts(n int) RetryOption {
	return func(r *retryEmbedding) { r.maxAttempts = n }
}

// RetryBaseDelay sets the initial backoff delay before the second attempt
// (default: 1s). Each subsequent delay doubles.
func RetryBaseDelay(d time.Duration) RetryOption {
	return func(r *retryEmbedding) { r.baseDelay = d }
}

// RetryTimeout sets the overall timeout for the entire retry sequence. The
// zero value (default) disables the timeout.
func RetryTimeout(d time.Duration) RetryOption {
	return func(r *retryEmbedding) { r.timeout = d }
}

// RetryLogger sets the structured logger for retry events. Retries log at
// WARN and final failures at ERROR. Nil disables logging.
func RetryLogger(l *slog.Logger) RetryOption {
	return func(r *retryEmbedding) { r.logger = l }
}

// WithEmbeddingRetry wraps p with automatic retry on transient HTTP errors.
// Retries use exponential backoff with jitter. Compose under a fallback
// chain so each provider gets its retries before the chain moves on:
//
//	emb := groundrag.NewFallbackEmbedding(
//		groundrag.WithEmbeddingRetry(primary),
//		groundrag.WithEmbeddingRetry(small),
//	)
func WithEmbeddingRetry(p EmbeddingProvider, opts ...RetryOption) EmbeddingProvider {
	r := &retryEmbedding{
		inner:       p,
		maxAttempts: 3,
		baseDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *retryEmbedding) Name() string    { return r.inner.Name() }
func (r *retryEmbedding) Dimensions() int { return r.inner.Dimensions() }

// Embed implements EmbeddingProvider with retry.
func (r *retryEmbedding) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if r.timeout > 0 {
		deadline := time.Now().Add(r.timeout)
		if existing, ok := ctx.Deadline(); !ok || deadline.Before(existing) {
			var cancel context.CancelFunc
			ctx, cancel = context.WithDeadline(ctx, deadline)
			defer cancel()
		}
	}

	var last error
	for i := 0; i < r.maxAttempts; i++ {
		vecs, err := r.inner.Embed(ctx, texts)
		if err == nil || !isTransient(err) {
			return vecs, err
		}
		last = err
		if r.logger != nil {
			r.logger.Warn("retrying transient embedding error",
				"provider", r.inner.Name(),
				"status", statusOf(err),
				"attempt", i+1,
				"max_attempts", r.maxAttempts)
		}
		if i < r.maxAttempts-1 {
			timer := time.NewTimer(retryBackoff(r.baseDelay, i))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
	}
	if r.logger != nil {
		r.logger.Error("all retry attempts exhausted",
			"provider", r.inner.Name(),
			"attempts", r.maxAttempts,
			"error", last)
	}
	return nil, last
}

// isTransient reports whether err is a retryable HTTP failure (429 or 503).
func isTransient(err error) bool {
	s := statusOf(err)
	return s == 429 || s == 503
}

// statusOf extracts the HTTP status code from an ErrHTTP or ErrEmbedding, or 0.
func statusOf(err error) int {
	var httpErr *ErrHTTP
	if errors.As(err, &httpErr) {
		return httpErr.Status
	}
	var embErr *ErrEmbedding
	if errors.As(err, &embErr) {
		return embErr.Status
	}
	return 0
}

// retryBackoff returns the delay for retry i (0-indexed).
// Exponential: base * 2^i, plus up to 50% random jitter.
func retryBackoff(base time.Duration, i int) time.Duration {
	exp := base * (1 << i)
	jitter := time.Duration(rand.Int63n(int64(exp)/2 + 1))
	return exp + jitter
}

var _ EmbeddingProvider = (*retryEmbedding)(nil)
