package groundrag

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Chunk is one retrieval-sized unit of a source document: a bounded span of
// text, or a single tabular row. (Source, ChunkIndex) is globally unique and
// stable across re-runs, so the derived record ID is idempotent.
type Chunk struct {
	Source     string            `json:"source"`
	ChunkIndex int               `json:"chunk_index"`
	Text       string            `json:"text"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Source types stored in record payloads.
const (
	SourceTypeText  = "text"
	SourceTypeTable = "table"
)

// Payload is the metadata stored alongside each vector. Meta holds flattened
// row fields for tabular sources (keys prefixed "row_"); it is flattened into
// the top-level JSON object on marshal so stores can filter on the fields
// directly.
type Payload struct {
	Source     string // full source identifier, e.g. relative file path
	SourceName string // short name, e.g. base file name
	SourceType string // SourceTypeText or SourceTypeTable
	ChunkIndex int
	Text       string
	TokenCount int
	Meta       map[string]string
}

// Record is an indexed point: deterministic ID, embedding vector, payload.
// Records are immutable after indexing except through a full re-index.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// ScoredRecord is a similarity-search candidate. Ephemeral, never persisted.
type ScoredRecord struct {
	Payload Payload
	Score   float32
}

// CoverageReport maps each indexed source to its emitted chunk count.
// The retrieval caller uses it to surface "no content indexed" before
// issuing a query.
type CoverageReport struct {
	GeneratedAt string         `json:"generated_at"`
	Model       string         `json:"model"`
	ByFile      map[string]int `json:"by_file"`
	TotalChunks int            `json:"total_chunks"`
}

// payloadJSON is the wire shape of the fixed payload fields.
type payloadJSON struct {
	Source     string `json:"file_path"`
	SourceName string `json:"source_name"`
	SourceType string `json:"source_type,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Text       string `json:"text"`
	TokenCount int    `json:"n_tokens,omitempty"`
}

// MarshalJSON flattens Meta entries into the top-level object.
func (p Payload) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(payloadJSON{
		Source:     p.Source,
		SourceName: p.SourceName,
		SourceType: p.SourceType,
		ChunkIndex: p.ChunkIndex,
		Text:       p.Text,
		TokenCount: p.TokenCount,
	})
	if err != nil {
		return nil, err
	}
	if len(p.Meta) == 0 {
		return base, nil
	}
	var b strings.Builder
	b.Write(base[:len(base)-1]) // drop closing brace
	keys := make([]string, 0, len(p.Meta))
	for k := range p.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(p.Meta[k])
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(&b, ",%s:%s", kb, vb)
	}
	b.WriteByte('}')
	return []byte(b.String()), nil
}

// UnmarshalJSON collects unknown string fields back into Meta.
func (p *Payload) UnmarshalJSON(data []byte) error {
	var fixed payloadJSON
	if err := json.Unmarshal(data, &fixed); err != nil {
		return err
	}
	p.Source = fixed.Source
	p.SourceName = fixed.SourceName
	p.SourceType = fixed.SourceType
	p.ChunkIndex = fixed.ChunkIndex
	p.Text = fixed.Text
	p.TokenCount = fixed.TokenCount

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	known := map[string]bool{
		"file_path": true, "source_name": true, "source_type": true,
		"chunk_index": true, "text": true, "n_tokens": true,
	}
	p.Meta = nil
	for k, v := range raw {
		if known[k] {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			continue // non-string extras are not ours
		}
		if p.Meta == nil {
			p.Meta = map[string]string{}
		}
		p.Meta[k] = s
	}

	// Older records carry only one of the two source fields.
	if p.Source == "" {
		p.Source = p.SourceName
	}
	if p.SourceName == "" {
		p.SourceName = ShortName(p.Source)
	}
	return nil
}
