// Package qdrant implements groundrag.VectorStore over the Qdrant REST API.
//
// The client is deliberately minimal: ensure-collection with cosine
// distance, upsert, similarity search, and a filtered scroll used for
// presence/quota repair fetches. All requests are bounded by the configured
// HTTP timeout.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	groundrag "github.com/prasetya/groundrag"
)

// Config holds connection settings for a Qdrant collection.
type Config struct {
	URL        string // e.g. "http://localhost:6333"
	APIKey     string
	Collection string
	Timeout    time.Duration // default 15s
}

// Store is a Qdrant-backed VectorStore.
type Store struct {
	cfg    Config
	client *http.Client
}

var _ groundrag.VectorStore = (*Store)(nil)

// New creates a Store for the configured collection.
func New(cfg Config) *Store {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Store{cfg: cfg, client: &http.Client{Timeout: timeout}}
}

// EnsureCollection creates the collection with cosine distance if missing.
func (s *Store) EnsureCollection(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("invalid dimension %d", dim)
	}
	// Probe first: re-creating an existing collection is a conflict.
	err := s.do(ctx, http.MethodGet, "/collections/"+s.cfg.Collection, nil, nil)
	if err == nil {
		return nil
	}
	body := map[string]any{
		"vectors": map[string]any{
			"size":     dim,
			"distance": "Cosine",
		},
	}
	return s.do(ctx, http.MethodPut, "/collections/"+s.cfg.Collection, body, nil)
}

// Upsert writes points keyed by their deterministic IDs.
func (s *Store) Upsert(ctx context.Context, records []groundrag.Record) error {
	points := make([]map[string]any, len(records))
	for i, r := range records {
		points[i] = map[string]any{
			"id":      r.ID,
			"vector":  r.Vector,
			"payload": r.Payload,
		}
	}
	body := map[string]any{"points": points}
	return s.do(ctx, http.MethodPut, "/collections/"+s.cfg.Collection+"/points?wait=true", body, nil)
}

// Search returns up to limit candidates ranked by cosine similarity.
func (s *Store) Search(ctx context.Context, vector []float32, limit int) ([]groundrag.ScoredRecord, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32           `json:"score"`
			Payload groundrag.Payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+s.cfg.Collection+"/points/search", body, &resp); err != nil {
		return nil, err
	}
	out := make([]groundrag.ScoredRecord, len(resp.Result))
	for i, r := range resp.Result {
		out[i] = groundrag.ScoredRecord{Payload: r.Payload, Score: r.Score}
	}
	return out, nil
}

// FetchBySource scrolls up to limit points whose source_name payload field
// matches, bypassing similarity ranking.
func (s *Store) FetchBySource(ctx context.Context, sourceName string, limit int) ([]groundrag.ScoredRecord, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"filter": map[string]any{
			"must": []map[string]any{
				{"key": "source_name", "match": map[string]any{"value": sourceName}},
			},
		},
	}
	var resp struct {
		Result struct {
			Points []struct {
				Payload groundrag.Payload `json:"payload"`
			} `json:"points"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+s.cfg.Collection+"/points/scroll", body, &resp); err != nil {
		return nil, err
	}
	out := make([]groundrag.ScoredRecord, len(resp.Result.Points))
	for i, p := range resp.Result.Points {
		out[i] = groundrag.ScoredRecord{Payload: p.Payload}
	}
	return out, nil
}

// Ping lists collections as a lightweight connectivity probe.
func (s *Store) Ping(ctx context.Context) error {
	return s.do(ctx, http.MethodGet, "/collections", nil, nil)
}

// Close is a no-op; the HTTP client holds no persistent connections worth
// tracking.
func (s *Store) Close() error { return nil }

// do issues one JSON request and decodes the response into out when non-nil.
func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, s.cfg.URL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &groundrag.ErrHTTP{Status: resp.StatusCode, Body: string(data)}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
