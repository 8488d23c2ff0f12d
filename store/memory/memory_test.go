package memory

import (
	"context"
	"testing"

	groundrag "github.com/prasetya/groundrag"
)

func rec(source string, index int, text string, vector []float32) groundrag.Record {
	return groundrag.Record{
		ID:     groundrag.RecordID(source, index),
		Vector: vector,
		Payload: groundrag.Payload{
			Source:     source,
			SourceName: groundrag.ShortName(source),
			ChunkIndex: index,
			Text:       text,
		},
	}
}

func TestUpsertOverwritesByID(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Upsert(ctx, []groundrag.Record{rec("a.txt", 0, "old", []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}
	if err := s.Upsert(ctx, []groundrag.Record{rec("a.txt", 0, "new", []float32{1, 0})}); err != nil {
		t.Fatal(err)
	}
	if s.Len() != 1 {
		t.Fatalf("Len = %d, want 1 after re-upsert", s.Len())
	}

	hits, err := s.Search(ctx, []float32{1, 0}, 1)
	if err != nil {
		t.Fatal(err)
	}
	if hits[0].Payload.Text != "new" {
		t.Errorf("text = %q, want overwritten value", hits[0].Payload.Text)
	}
}

func TestSearchRanksByCosine(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.Upsert(ctx, []groundrag.Record{
		rec("a.txt", 0, "orthogonal", []float32{0, 1}),
		rec("a.txt", 1, "aligned", []float32{1, 0}),
		rec("a.txt", 2, "diagonal", []float32{1, 1}),
	})
	if err != nil {
		t.Fatal(err)
	}

	hits, err := s.Search(ctx, []float32{1, 0}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Fatalf("got %d hits", len(hits))
	}
	if hits[0].Payload.Text != "aligned" {
		t.Errorf("top hit = %q", hits[0].Payload.Text)
	}
	if hits[0].Score <= hits[1].Score {
		t.Errorf("scores not descending: %v", []float32{hits[0].Score, hits[1].Score})
	}
}

func TestFetchBySourceMatchesShortAndFullName(t *testing.T) {
	s := New()
	ctx := context.Background()
	err := s.Upsert(ctx, []groundrag.Record{
		rec("docs/a.txt", 0, "first", []float32{1}),
		rec("docs/a.txt", 1, "second", []float32{1}),
		rec("docs/b.txt", 0, "other", []float32{1}),
	})
	if err != nil {
		t.Fatal(err)
	}

	byShort, err := s.FetchBySource(ctx, "a.txt", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(byShort) != 2 || byShort[0].Payload.Text != "first" {
		t.Errorf("short-name fetch = %+v", byShort)
	}

	byFull, err := s.FetchBySource(ctx, "docs/a.txt", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(byFull) != 1 {
		t.Errorf("limit ignored: %d records", len(byFull))
	}

	none, err := s.FetchBySource(ctx, "missing.txt", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(none) != 0 {
		t.Errorf("unexpected records for unknown source: %+v", none)
	}
}
