package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	groundrag "github.com/prasetya/groundrag"
)

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

func embeddingsResponse(vectors ...[]float32) string {
	type datum struct {
		Object    string    `json:"object"`
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	}
	data := make([]datum, len(vectors))
	for i, v := range vectors {
		data[i] = datum{Object: "embedding", Index: i, Embedding: v}
	}
	out, _ := json.Marshal(map[string]any{"object": "list", "data": data})
	return string(out)
}

func TestEmbed(t *testing.T) {
	var got embeddingsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(embeddingsResponse([]float32{0.1, 0.2}, []float32{0.3, 0.4})))
	}))
	defer srv.Close()

	e := NewEmbedding("key", "text-embedding-3-small", WithBaseURL(srv.URL))
	vecs, err := e.Embed(context.Background(), []string{"alpha", "beta"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if got.Model != "text-embedding-3-small" || len(got.Input) != 2 {
		t.Errorf("request = %+v", got)
	}
	if len(vecs) != 2 || vecs[0][0] != 0.1 || vecs[1][1] != 0.4 {
		t.Errorf("vectors = %v", vecs)
	}
}

func TestEmbedOrdersByIndex(t *testing.T) {
	// The API may return data out of order; vectors must land by index.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"object": "list", "data": [
			{"object": "embedding", "index": 1, "embedding": [2]},
			{"object": "embedding", "index": 0, "embedding": [1]}
		]}`))
	}))
	defer srv.Close()

	e := NewEmbedding("key", "text-embedding-3-small", WithBaseURL(srv.URL))
	vecs, err := e.Embed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	if vecs[0][0] != 1 || vecs[1][0] != 2 {
		t.Errorf("vectors not ordered by index: %v", vecs)
	}
}

func TestEmbedCountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(embeddingsResponse([]float32{1})))
	}))
	defer srv.Close()

	e := NewEmbedding("key", "text-embedding-3-small", WithBaseURL(srv.URL))
	_, err := e.Embed(context.Background(), []string{"a", "b"})
	var embErr *groundrag.ErrEmbedding
	if !errors.As(err, &embErr) {
		t.Fatalf("error type = %T (%v)", err, err)
	}
}

func TestEmbedAPIErrorWrapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"message": "rate limited"}}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewEmbedding("key", "text-embedding-3-small", WithBaseURL(srv.URL))
	_, err := e.Embed(context.Background(), []string{"a"})
	var embErr *groundrag.ErrEmbedding
	if !errors.As(err, &embErr) {
		t.Fatalf("error type = %T (%v)", err, err)
	}
	if embErr.Provider != "openai/text-embedding-3-small" {
		t.Errorf("provider = %q", embErr.Provider)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	e := NewEmbedding("key", "text-embedding-3-small", WithBaseURL("http://unreachable.invalid"))
	vecs, err := e.Embed(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("empty input must short-circuit: %v, %v", vecs, err)
	}
}

func TestName(t *testing.T) {
	if got := NewEmbedding("k", "text-embedding-3-large").Name(); got != "openai/text-embedding-3-large" {
		t.Errorf("Name = %q", got)
	}
	if got := NewEmbedding("k", "openai/text-embedding-3-large").Name(); got != "openai/text-embedding-3-large" {
		t.Errorf("Name = %q", got)
	}
}

func TestDimensionsFromModelTable(t *testing.T) {
	if got := NewEmbedding("k", "text-embedding-3-large").Dimensions(); got != 3072 {
		t.Errorf("Dimensions = %d", got)
	}
	if got := NewEmbedding("k", "text-embedding-3-large", WithDimensions(256)).Dimensions(); got != 256 {
		t.Errorf("Dimensions override = %d", got)
	}
}

func TestNewChainVariants(t *testing.T) {
	// Namespaced routing adds the "openai/" variant and the small fallback.
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingsRequest
		json.NewDecoder(r.Body).Decode(&req)
		models = append(models, req.Model)
		http.Error(w, "no", http.StatusBadGateway)
	}))
	defer srv.Close()

	chain := NewChain("key", "text-embedding-3-large", true, WithBaseURL(srv.URL))
	if _, err := chain.Embed(context.Background(), []string{"x"}); err == nil {
		t.Fatal("expected failure when every variant fails")
	}

	want := []string{
		"text-embedding-3-large",
		"openai/text-embedding-3-large",
		"openai/text-embedding-3-small",
	}
	if len(models) != len(want) {
		t.Fatalf("tried models %v, want %v", models, want)
	}
	for i := range want {
		if models[i] != want[i] {
			t.Errorf("variant %d = %q, want %q", i, models[i], want[i])
		}
	}
}

func TestNewChainWithoutNamespacing(t *testing.T) {
	var models []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingsRequest
		json.NewDecoder(r.Body).Decode(&req)
		models = append(models, req.Model)
		http.Error(w, "no", http.StatusBadGateway)
	}))
	defer srv.Close()

	chain := NewChain("key", "text-embedding-3-large", false, WithBaseURL(srv.URL))
	chain.Embed(context.Background(), []string{"x"})

	want := []string{"text-embedding-3-large", "text-embedding-3-small"}
	if len(models) != len(want) || models[0] != want[0] || models[1] != want[1] {
		t.Errorf("tried models %v, want %v", models, want)
	}
}
