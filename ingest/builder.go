package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	groundrag "github.com/prasetya/groundrag"
)

// Builder turns one source file into its ordered chunk sequence.
//
// Free-text sources go through extraction, then the paragraph → sentence →
// window pipeline, re-numbered as one flat per-file sequence. Tabular (CSV)
// sources bypass text chunking: each row becomes exactly one chunk whose text
// is a flattened key=value record and whose metadata carries the same fields
// under "row_"-prefixed keys for structured filtering. A CSV that fails to
// parse falls back to the free-text path.
type Builder struct {
	chunker    *WindowChunker
	extractors map[ContentType]Extractor
	logger     *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithChunker replaces the default window chunker.
func WithChunker(c *WindowChunker) BuilderOption {
	return func(b *Builder) { b.chunker = c }
}

// WithExtractor registers or replaces the extractor for a content type.
func WithExtractor(ct ContentType, e Extractor) BuilderOption {
	return func(b *Builder) { b.extractors[ct] = e }
}

// WithLogger attaches a logger for fallback warnings. Nil disables logging.
func WithLogger(l *slog.Logger) BuilderOption {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder with extractors for plain text, markdown,
// HTML, and PDF registered.
func NewBuilder(opts ...BuilderOption) *Builder {
	b := &Builder{
		chunker: NewWindowChunker(),
		extractors: map[ContentType]Extractor{
			TypePlainText: PlainTextExtractor{},
			TypeMarkdown:  MarkdownExtractor{},
			TypeHTML:      HTMLExtractor{},
			TypePDF:       PDFExtractor{},
		},
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// File builds the chunk sequence for one source file. source is the stable
// source identifier (typically the path relative to the corpus root); the
// content type is detected from its extension.
func (b *Builder) File(source string, content []byte) ([]groundrag.Chunk, error) {
	ct := ContentTypeFromExtension(filepath.Ext(source))
	if ct == TypeCSV {
		chunks, err := b.rowChunks(source, content)
		if err == nil {
			return chunks, nil
		}
		if b.logger != nil {
			b.logger.Warn("csv parse failed, falling back to text chunking",
				"source", source, "error", err)
		}
		ct = TypePlainText
	}
	return b.textChunks(source, content, ct)
}

// textChunks runs the free-text path: extract, window-chunk per paragraph,
// number flat.
func (b *Builder) textChunks(source string, content []byte, ct ContentType) ([]groundrag.Chunk, error) {
	extractor, ok := b.extractors[ct]
	if !ok {
		extractor = PlainTextExtractor{}
	}
	text, err := extractor.Extract(content)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", ct, err)
	}
	var chunks []groundrag.Chunk
	for _, t := range b.chunker.Chunk(text) {
		chunks = append(chunks, groundrag.Chunk{
			Source:     source,
			ChunkIndex: len(chunks),
			Text:       t,
		})
	}
	return chunks, nil
}

// rowChunks runs the tabular path: one chunk per CSV row.
func (b *Builder) rowChunks(source string, content []byte) ([]groundrag.Chunk, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(content))
	r.TrimLeadingSpace = true

	headers, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read headers: %w", err)
	}

	var chunks []groundrag.Chunk
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		var fields []string
		meta := map[string]string{}
		for i, val := range row {
			if i >= len(headers) {
				break
			}
			val = strings.TrimSpace(val)
			if val == "" {
				continue
			}
			header := strings.TrimSpace(headers[i])
			fields = append(fields, fmt.Sprintf("%s=%s", header, val))
			meta["row_"+metaKey(header)] = val
		}
		if len(fields) == 0 {
			continue
		}
		chunks = append(chunks, groundrag.Chunk{
			Source:     source,
			ChunkIndex: len(chunks),
			Text:       strings.Join(fields, ", "),
			Metadata:   meta,
		})
	}
	return chunks, nil
}

// metaKey lowercases a CSV header and squashes non-alphanumerics to
// underscores, so "Trip Name" filters as row_trip_name.
func metaKey(header string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(header) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
