// Package postgres implements groundrag.VectorStore using PostgreSQL with
// pgvector for native cosine similarity search.
//
// The Store accepts an externally-owned *pgxpool.Pool via constructor
// injection. The caller creates and closes the pool.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	groundrag "github.com/prasetya/groundrag"
)

// Store is a pgvector-backed VectorStore. One table per collection.
type Store struct {
	pool  *pgxpool.Pool
	table string
}

var _ groundrag.VectorStore = (*Store)(nil)

// New creates a Store over an existing pool. table names the collection;
// it must be a valid identifier (it is interpolated into DDL).
func New(pool *pgxpool.Pool, table string) *Store {
	return &Store{pool: pool, table: table}
}

// EnsureCollection creates the pgvector extension, the collection table, and
// an HNSW cosine index if they do not exist.
func (s *Store) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			file_path text NOT NULL,
			source_name text NOT NULL,
			source_type text NOT NULL DEFAULT 'text',
			chunk_index int NOT NULL,
			content text NOT NULL,
			n_tokens int NOT NULL DEFAULT 0,
			meta jsonb
		)`, s.table, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx
			ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_source_name_idx
			ON %s (source_name, chunk_index)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure collection: %w", err)
		}
	}
	return nil
}

// Upsert inserts records, overwriting rows with the same ID.
func (s *Store) Upsert(ctx context.Context, records []groundrag.Record) error {
	sql := fmt.Sprintf(`INSERT INTO %s
		(id, embedding, file_path, source_name, source_type, chunk_index, content, n_tokens, meta)
		VALUES ($1, $2::vector, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			file_path = EXCLUDED.file_path,
			source_name = EXCLUDED.source_name,
			source_type = EXCLUDED.source_type,
			chunk_index = EXCLUDED.chunk_index,
			content = EXCLUDED.content,
			n_tokens = EXCLUDED.n_tokens,
			meta = EXCLUDED.meta`, s.table)

	for _, r := range records {
		var meta []byte
		if len(r.Payload.Meta) > 0 {
			var err error
			meta, err = json.Marshal(r.Payload.Meta)
			if err != nil {
				return fmt.Errorf("marshal meta: %w", err)
			}
		}
		_, err := s.pool.Exec(ctx, sql,
			r.ID, vectorLiteral(r.Vector),
			r.Payload.Source, r.Payload.SourceName, r.Payload.SourceType,
			r.Payload.ChunkIndex, r.Payload.Text, r.Payload.TokenCount, meta)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", r.ID, err)
		}
	}
	return nil
}

// Search returns up to limit rows ranked by cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]groundrag.ScoredRecord, error) {
	sql := fmt.Sprintf(`SELECT file_path, source_name, source_type, chunk_index,
			content, n_tokens, meta,
			1 - (embedding <=> $1::vector) AS score
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, sql, vectorLiteral(vector), limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var out []groundrag.ScoredRecord
	for rows.Next() {
		var (
			p    groundrag.Payload
			meta []byte
			sc   groundrag.ScoredRecord
		)
		if err := rows.Scan(&p.Source, &p.SourceName, &p.SourceType, &p.ChunkIndex,
			&p.Text, &p.TokenCount, &meta, &sc.Score); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal meta: %w", err)
			}
		}
		sc.Payload = p
		out = append(out, sc)
	}
	return out, rows.Err()
}

// FetchBySource returns up to limit rows for a source name, in chunk order.
func (s *Store) FetchBySource(ctx context.Context, sourceName string, limit int) ([]groundrag.ScoredRecord, error) {
	sql := fmt.Sprintf(`SELECT file_path, source_name, source_type, chunk_index,
			content, n_tokens, meta
		FROM %s
		WHERE source_name = $1 OR file_path = $1
		ORDER BY chunk_index
		LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, sql, sourceName, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch by source: %w", err)
	}
	defer rows.Close()

	var out []groundrag.ScoredRecord
	for rows.Next() {
		var (
			p    groundrag.Payload
			meta []byte
		)
		if err := rows.Scan(&p.Source, &p.SourceName, &p.SourceType, &p.ChunkIndex,
			&p.Text, &p.TokenCount, &meta); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &p.Meta); err != nil {
				return nil, fmt.Errorf("unmarshal meta: %w", err)
			}
		}
		out = append(out, groundrag.ScoredRecord{Payload: p})
	}
	return out, rows.Err()
}

// Ping checks pool connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close is a no-op: the pool is externally owned.
func (s *Store) Close() error { return nil }

// vectorLiteral renders a pgvector input literal, e.g. "[0.1,0.2,0.3]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, f := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
