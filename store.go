package groundrag

import "context"

// VectorStore abstracts a vector collection with payload-filtered access.
// Implementations: store/qdrant (REST), store/postgres (pgvector),
// store/memory (brute-force, for tests and local runs).
//
// All methods must honor context cancellation; callers bound every call with
// a timeout and treat a timeout as the call's ordinary failure path.
type VectorStore interface {
	// EnsureCollection creates the collection with the given vector
	// dimensionality and cosine distance if it does not exist yet.
	EnsureCollection(ctx context.Context, dim int) error

	// Upsert writes records keyed by their deterministic IDs. Re-upserting
	// the same IDs overwrites, never duplicates.
	Upsert(ctx context.Context, records []Record) error

	// Search returns up to limit candidates ranked by cosine similarity.
	Search(ctx context.Context, vector []float32, limit int) ([]ScoredRecord, error)

	// FetchBySource returns up to limit records whose source name matches,
	// bypassing similarity ranking. Used for presence and quota repair.
	FetchBySource(ctx context.Context, sourceName string, limit int) ([]ScoredRecord, error)

	// Ping probes connectivity. Callers may use it to fall back between
	// configured and localhost endpoints.
	Ping(ctx context.Context) error

	// Close releases the underlying connection, if any.
	Close() error
}
