package ingest

import (
	"strings"
	"testing"
)

func TestBuilderTextFile(t *testing.T) {
	b := NewBuilder()
	chunks, err := b.File("docs/a.txt", []byte("First sentence. Second sentence.\n\nNew paragraph."))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("no chunks")
	}
	for i, c := range chunks {
		if c.Source != "docs/a.txt" {
			t.Errorf("chunk %d source = %q", i, c.Source)
		}
		if c.ChunkIndex != i {
			t.Errorf("chunk %d has index %d, numbering must be flat per file", i, c.ChunkIndex)
		}
		if c.Metadata != nil {
			t.Errorf("text chunk %d carries metadata %v", i, c.Metadata)
		}
	}
}

func TestBuilderCSVRows(t *testing.T) {
	csvData := "Trip Name,Days,Price\nBali Escape,4,900\nKyoto Walk,6,1400\n"
	b := NewBuilder()
	chunks, err := b.File("data/trips.csv", []byte(csvData))
	if err != nil {
		t.Fatalf("File: %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("got %d chunks, want one per row", len(chunks))
	}

	first := chunks[0]
	if first.Text != "Trip Name=Bali Escape, Days=4, Price=900" {
		t.Errorf("row text = %q", first.Text)
	}
	if first.Metadata["row_trip_name"] != "Bali Escape" {
		t.Errorf("row metadata = %v", first.Metadata)
	}
	if first.Metadata["row_days"] != "4" || first.Metadata["row_price"] != "900" {
		t.Errorf("row metadata = %v", first.Metadata)
	}
	if chunks[1].ChunkIndex != 1 {
		t.Errorf("second row index = %d", chunks[1].ChunkIndex)
	}
}

func TestBuilderCSVSkipsEmptyCells(t *testing.T) {
	csvData := "name,notes\nBali,\n"
	b := NewBuilder()
	chunks, err := b.File("t.csv", []byte(csvData))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 {
		t.Fatalf("got %d chunks", len(chunks))
	}
	if strings.Contains(chunks[0].Text, "notes") {
		t.Errorf("empty cell rendered: %q", chunks[0].Text)
	}
	if _, ok := chunks[0].Metadata["row_notes"]; ok {
		t.Errorf("empty cell in metadata: %v", chunks[0].Metadata)
	}
}

func TestBuilderCSVWithBOM(t *testing.T) {
	csvData := "\xef\xbb\xbfname\nBali\n"
	b := NewBuilder()
	chunks, err := b.File("t.csv", []byte(csvData))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 1 || chunks[0].Text != "name=Bali" {
		t.Errorf("chunks = %+v", chunks)
	}
}

func TestBuilderMalformedCSVFallsBackToText(t *testing.T) {
	// Unbalanced quoting makes the CSV reader fail; the file must still be
	// ingested as plain text.
	bad := "name,days\n\"unterminated,4\nplain trailing text here."
	b := NewBuilder()
	chunks, err := b.File("bad.csv", []byte(bad))
	if err != nil {
		t.Fatalf("fallback must not error: %v", err)
	}
	if len(chunks) == 0 {
		t.Fatal("fallback produced no chunks")
	}
	for _, c := range chunks {
		if c.Metadata != nil {
			t.Errorf("fallback chunk carries row metadata: %v", c.Metadata)
		}
	}
}

func TestBuilderEmptyCSV(t *testing.T) {
	b := NewBuilder()
	chunks, err := b.File("empty.csv", []byte(""))
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != 0 {
		t.Errorf("got %d chunks from empty file", len(chunks))
	}
}

func TestBuilderMarkdown(t *testing.T) {
	md := "# Title\n\nSome **bold** body text.\n\n- item one\n- item two\n"
	b := NewBuilder()
	chunks, err := b.File("readme.md", []byte(md))
	if err != nil {
		t.Fatal(err)
	}
	joined := ""
	for _, c := range chunks {
		joined += c.Text + "\n"
	}
	if !strings.Contains(joined, "bold") || strings.Contains(joined, "**") {
		t.Errorf("markdown markup not stripped:\n%s", joined)
	}
}

func TestMetaKey(t *testing.T) {
	cases := []struct{ in, want string }{
		{"Trip Name", "trip_name"},
		{"Price (USD)", "price_usd"},
		{"days", "days"},
		{"  A  B  ", "a_b"},
	}
	for _, c := range cases {
		if got := metaKey(c.in); got != c.want {
			t.Errorf("metaKey(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
