package groundrag

import (
	"testing"

	"github.com/google/uuid"
)

func TestRecordIDDeterministic(t *testing.T) {
	a := RecordID("docs/a.txt", 0)
	b := RecordID("docs/a.txt", 0)
	if a != b {
		t.Errorf("same identity produced different IDs: %q vs %q", a, b)
	}
	if a == RecordID("docs/a.txt", 1) {
		t.Error("different chunk index produced the same ID")
	}
	if a == RecordID("docs/b.txt", 0) {
		t.Error("different source produced the same ID")
	}
}

func TestRecordIDIsUUID(t *testing.T) {
	id := RecordID("data/trips.csv", 3)
	parsed, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("not a UUID: %q", id)
	}
	if parsed.Version() != 5 {
		t.Errorf("version = %d, want 5", parsed.Version())
	}
}

func TestRecordIDSeparatorUnambiguous(t *testing.T) {
	if RecordID("a:1", 2) == RecordID("a", 1) {
		t.Error("seed strings collide across source/index boundary")
	}
}

func TestShortName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"docs/a.txt", "a.txt"},
		{"a.txt", "a.txt"},
		{"deep/nested/path/b.csv", "b.csv"},
		{"", ""},
	}
	for _, c := range cases {
		if got := ShortName(c.in); got != c.want {
			t.Errorf("ShortName(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
