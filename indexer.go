package groundrag

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/prasetya/groundrag/token"
)

// ChunkBuilder turns one source file into its ordered chunk sequence.
// ingest.Builder is the standard implementation.
type ChunkBuilder interface {
	File(source string, content []byte) ([]Chunk, error)
}

// indexableExtensions are the file types discovered under a corpus root.
var indexableExtensions = map[string]bool{
	".txt": true, ".md": true, ".mdx": true,
	".csv": true, ".pdf": true, ".html": true, ".htm": true,
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithBatchSize sets the embed/upsert batch size. Default 64.
func WithBatchSize(n int) IndexerOption {
	return func(ix *Indexer) { ix.batchSize = n }
}

// WithReportPath sets where the JSON coverage report is written after
// indexing. Empty disables the report file.
func WithReportPath(path string) IndexerOption {
	return func(ix *Indexer) { ix.reportPath = path }
}

// WithIndexerTracer attaches a Tracer for index spans.
func WithIndexerTracer(t Tracer) IndexerOption {
	return func(ix *Indexer) { ix.tracer = t }
}

// WithIndexerLogger attaches a logger. Nil disables logging.
func WithIndexerLogger(l *slog.Logger) IndexerOption {
	return func(ix *Indexer) { ix.logger = l }
}

// Indexer walks a corpus root, chunks every discovered source file, embeds
// chunk texts in batches, and upserts deterministic-ID records into the
// vector store. Re-running over an unchanged corpus is idempotent.
type Indexer struct {
	store      VectorStore
	embedding  EmbeddingProvider
	builder    ChunkBuilder
	counter    token.Counter
	batchSize  int
	reportPath string
	tracer     Tracer
	logger     *slog.Logger
}

// NewIndexer creates an Indexer. builder is typically ingest.NewBuilder();
// counter is used to record per-chunk token counts in payloads.
func NewIndexer(store VectorStore, emb EmbeddingProvider, builder ChunkBuilder, counter token.Counter, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		store:     store,
		embedding: emb,
		builder:   builder,
		counter:   counter,
		batchSize: 64,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// Index builds and upserts the whole corpus under root, returning the
// coverage report. The collection is created first if missing, sized to the
// embedding provider's dimensionality.
//
// A batch whose embedding fails after every fallback provider aborts the
// run: indexing is never silently partial at the batch level.
func (ix *Indexer) Index(ctx context.Context, root string) (CoverageReport, error) {
	if ix.tracer != nil {
		var span Span
		ctx, span = ix.tracer.Start(ctx, "index", StringAttr("corpus", root))
		defer span.End()
	}

	report := CoverageReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Model:       ix.embedding.Name(),
		ByFile:      map[string]int{},
	}

	if err := ix.store.EnsureCollection(ctx, ix.embedding.Dimensions()); err != nil {
		return report, fmt.Errorf("ensure collection: %w", err)
	}

	chunks, byFile, err := ix.buildCorpus(root)
	if err != nil {
		return report, err
	}
	report.ByFile = byFile
	report.TotalChunks = len(chunks)

	for i := 0; i < len(chunks); i += ix.batchSize {
		end := min(i+ix.batchSize, len(chunks))
		if err := ix.upsertBatch(ctx, chunks[i:end]); err != nil {
			return report, fmt.Errorf("batch %d-%d: %w", i, end, err)
		}
		if ix.logger != nil {
			ix.logger.Info("upserted chunks", "done", end, "total", len(chunks))
		}
	}

	if ix.reportPath != "" {
		if err := writeCoverageReport(ix.reportPath, report); err != nil {
			return report, fmt.Errorf("write coverage report: %w", err)
		}
	}
	return report, nil
}

// buildCorpus discovers source files and builds their chunks in a stable
// (sorted path) order.
func (ix *Indexer) buildCorpus(root string) ([]Chunk, map[string]int, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if indexableExtensions[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("walk corpus: %w", err)
	}
	sort.Strings(files)

	var all []Chunk
	byFile := map[string]int{}
	for _, path := range files {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		source, err := filepath.Rel(root, path)
		if err != nil {
			source = path
		}
		source = filepath.ToSlash(source)

		chunks, err := ix.builder.File(source, content)
		if err != nil {
			return nil, nil, fmt.Errorf("chunk %s: %w", source, err)
		}
		byFile[source] = len(chunks)
		all = append(all, chunks...)
	}
	return all, byFile, nil
}

// upsertBatch embeds one batch of chunks and upserts the resulting records.
func (ix *Indexer) upsertBatch(ctx context.Context, batch []Chunk) error {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	vectors, err := ix.embedding.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("embed: got %d vectors for %d texts", len(vectors), len(batch))
	}

	records := make([]Record, len(batch))
	for i, c := range batch {
		sourceType := SourceTypeText
		if len(c.Metadata) > 0 {
			sourceType = SourceTypeTable
		}
		records[i] = Record{
			ID:     RecordID(c.Source, c.ChunkIndex),
			Vector: vectors[i],
			Payload: Payload{
				Source:     c.Source,
				SourceName: ShortName(c.Source),
				SourceType: sourceType,
				ChunkIndex: c.ChunkIndex,
				Text:       c.Text,
				TokenCount: ix.counter.Count(c.Text),
				Meta:       c.Metadata,
			},
		}
	}
	if err := ix.store.Upsert(ctx, records); err != nil {
		return fmt.Errorf("upsert: %w", err)
	}
	return nil
}

func writeCoverageReport(path string, report CoverageReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, append(data, '\n'), 0o644)
}

// LoadCoverageReport reads a coverage report written by Index. Callers use
// it to detect a "no content indexed" condition before issuing a query.
func LoadCoverageReport(path string) (CoverageReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CoverageReport{}, err
	}
	var report CoverageReport
	if err := json.Unmarshal(data, &report); err != nil {
		return CoverageReport{}, fmt.Errorf("parse coverage report: %w", err)
	}
	return report, nil
}
