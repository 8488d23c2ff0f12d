// Package memory implements groundrag.VectorStore with brute-force cosine
// search over an in-process map. Intended for tests and small local corpora.
package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	groundrag "github.com/prasetya/groundrag"
)

// Store is an in-memory VectorStore. Safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	dim     int
	records []groundrag.Record
	byID    map[string]int
}

var _ groundrag.VectorStore = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{byID: map[string]int{}}
}

// EnsureCollection records the vector dimensionality.
func (s *Store) EnsureCollection(_ context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dim = dim
	return nil
}

// Upsert inserts or overwrites records by ID, preserving first-insertion
// order for existing IDs.
func (s *Store) Upsert(_ context.Context, records []groundrag.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if i, ok := s.byID[r.ID]; ok {
			s.records[i] = r
			continue
		}
		s.byID[r.ID] = len(s.records)
		s.records = append(s.records, r)
	}
	return nil
}

// Search ranks all records by cosine similarity to vector.
func (s *Store) Search(_ context.Context, vector []float32, limit int) ([]groundrag.ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	scored := make([]groundrag.ScoredRecord, 0, len(s.records))
	for _, r := range s.records {
		scored = append(scored, groundrag.ScoredRecord{
			Payload: r.Payload,
			Score:   cosineSimilarity(vector, r.Vector),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// FetchBySource returns records whose payload source name (or full source)
// matches, in insertion order.
func (s *Store) FetchBySource(_ context.Context, sourceName string, limit int) ([]groundrag.ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []groundrag.ScoredRecord
	for _, r := range s.records {
		if r.Payload.SourceName != sourceName && r.Payload.Source != sourceName {
			continue
		}
		out = append(out, groundrag.ScoredRecord{Payload: r.Payload})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
