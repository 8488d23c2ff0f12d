package groundrag

import (
	"encoding/json"
	"testing"
)

func TestPayloadMarshalFlattensMeta(t *testing.T) {
	p := Payload{
		Source:     "data/trips.csv",
		SourceName: "trips.csv",
		SourceType: SourceTypeTable,
		ChunkIndex: 2,
		Text:       "name=Bali, days=4",
		TokenCount: 7,
		Meta:       map[string]string{"row_name": "Bali", "row_days": "4"},
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("round-trip: %v", err)
	}
	if raw["file_path"] != "data/trips.csv" || raw["source_name"] != "trips.csv" {
		t.Errorf("wire fields = %v", raw)
	}
	if raw["row_name"] != "Bali" || raw["row_days"] != "4" {
		t.Errorf("meta not flattened to top level: %v", raw)
	}
	if _, nested := raw["Meta"]; nested {
		t.Error("meta leaked as a nested object")
	}
}

func TestPayloadUnmarshalCollectsExtras(t *testing.T) {
	data := []byte(`{
		"file_path": "data/trips.csv",
		"source_name": "trips.csv",
		"source_type": "table",
		"chunk_index": 2,
		"text": "name=Bali",
		"n_tokens": 3,
		"row_name": "Bali",
		"score": 0.9
	}`)
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.Source != "data/trips.csv" || p.ChunkIndex != 2 || p.TokenCount != 3 {
		t.Errorf("fixed fields = %+v", p)
	}
	if p.Meta["row_name"] != "Bali" {
		t.Errorf("extra string field not collected: %v", p.Meta)
	}
	if _, ok := p.Meta["score"]; ok {
		t.Errorf("non-string extra collected: %v", p.Meta)
	}
}

func TestPayloadUnmarshalBackfillsSourceFields(t *testing.T) {
	var p Payload
	if err := json.Unmarshal([]byte(`{"source_name": "a.txt", "text": "x"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.Source != "a.txt" {
		t.Errorf("Source not backfilled: %+v", p)
	}

	p = Payload{}
	if err := json.Unmarshal([]byte(`{"file_path": "docs/a.txt", "text": "x"}`), &p); err != nil {
		t.Fatal(err)
	}
	if p.SourceName != "a.txt" {
		t.Errorf("SourceName not backfilled: %+v", p)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	in := Payload{
		Source:     "docs/a.txt",
		SourceName: "a.txt",
		SourceType: SourceTypeText,
		ChunkIndex: 5,
		Text:       "alpha",
		TokenCount: 1,
		Meta:       map[string]string{"row_trip_name": "Bali Escape"},
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatal(err)
	}
	var out Payload
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Source != in.Source || out.ChunkIndex != in.ChunkIndex || out.Text != in.Text {
		t.Errorf("round trip changed fields: %+v", out)
	}
	if out.Meta["row_trip_name"] != "Bali Escape" {
		t.Errorf("round trip lost meta: %v", out.Meta)
	}
}

func TestEmbeddingDimensions(t *testing.T) {
	cases := []struct {
		model string
		want  int
	}{
		{"text-embedding-3-small", 1536},
		{"text-embedding-3-large", 3072},
		{"text-embedding-ada-002", 1536},
		{"openai/text-embedding-3-large", 3072},
		{"some-unknown-model", 1536},
	}
	for _, c := range cases {
		if got := EmbeddingDimensions(c.model); got != c.want {
			t.Errorf("EmbeddingDimensions(%q) = %d, want %d", c.model, got, c.want)
		}
	}
}
