package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	groundrag "github.com/prasetya/groundrag"
	"github.com/prasetya/groundrag/fetch"
	"github.com/prasetya/groundrag/ingest"
	"github.com/prasetya/groundrag/internal/config"
	"github.com/prasetya/groundrag/observer"
	"github.com/prasetya/groundrag/provider/openai"
	"github.com/prasetya/groundrag/store/memory"
	"github.com/prasetya/groundrag/store/postgres"
	"github.com/prasetya/groundrag/store/qdrant"
	"github.com/prasetya/groundrag/token"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx := context.Background()
	switch os.Args[1] {
	case "index":
		runIndex(ctx, os.Args[2:])
	case "retrieve":
		runRetrieve(ctx, os.Args[2:])
	case "fetch":
		runFetch(ctx, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: groundrag <command> [flags]

commands:
  index      chunk, embed, and upsert the corpus into the vector store
  retrieve   print the annotated context for a query
  fetch      download a URL into the corpus directory`)
}

func runIndex(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to groundrag.toml")
	root := fs.String("root", "", "corpus root (overrides config)")
	fs.Parse(args)

	// 1. Load config
	cfg := config.Load(*cfgPath)
	if *root != "" {
		cfg.Corpus.Root = *root
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// 2. Observability
	tracer, shutdown := setupObserver(ctx, cfg, logger)
	defer shutdown(ctx)

	// 3. Embedding chain + store
	emb := buildEmbedding(cfg)
	store := buildStore(ctx, cfg, emb.Dimensions(), logger)
	defer store.Close()

	// 4. Token counter: exact when the BPE vocabulary loads, heuristic otherwise
	counter := buildCounter(logger)

	// 5. Chunking pipeline
	builder := ingest.NewBuilder(
		ingest.WithChunker(ingest.NewWindowChunker(
			ingest.WithMaxTokens(cfg.Chunking.MaxTokensPerChunk),
			ingest.WithOverlapTokens(cfg.Chunking.OverlapTokens),
			ingest.WithCounter(counter),
		)),
		ingest.WithLogger(logger),
	)

	// 6. Index
	ix := groundrag.NewIndexer(store, emb, builder, counter,
		groundrag.WithReportPath(cfg.Corpus.ReportPath),
		groundrag.WithIndexerTracer(tracer),
		groundrag.WithIndexerLogger(logger),
	)
	report, err := ix.Index(ctx, cfg.Corpus.Root)
	if err != nil {
		log.Fatalf("index: %v", err)
	}
	fmt.Printf("indexed %d chunks from %d files (model %s)\n",
		report.TotalChunks, len(report.ByFile), report.Model)
}

func runRetrieve(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to groundrag.toml")
	topK := fs.Int("k", 0, "similarity candidates to keep (overrides config)")
	keyword := fs.String("keyword", "", "keyword filter for similarity candidates")
	persona := fs.String("persona", "", "persona hint passed through to generation")
	fs.Parse(args)

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		log.Fatal("retrieve: query required")
	}

	// 1. Load config
	cfg := config.Load(*cfgPath)
	if *topK <= 0 {
		*topK = cfg.Retrieval.TopK
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	// 2. Observability
	tracer, shutdown := setupObserver(ctx, cfg, logger)
	defer shutdown(ctx)

	// 3. Warn when the index looks empty
	if report, err := groundrag.LoadCoverageReport(cfg.Corpus.ReportPath); err == nil && report.TotalChunks == 0 {
		logger.Warn("coverage report shows zero indexed chunks", "path", cfg.Corpus.ReportPath)
	}

	// 4. Embedding chain + store
	emb := buildEmbedding(cfg)
	store := buildStore(ctx, cfg, emb.Dimensions(), logger)
	defer store.Close()

	// 5. Retrieve
	retriever := groundrag.NewCoverageRetriever(store, emb,
		groundrag.WithRequiredSources(cfg.Retrieval.RequiredSources...),
		groundrag.WithSourceQuotas(cfg.Retrieval.SourceQuotas),
		groundrag.WithRetrieverTracer(tracer),
		groundrag.WithRetrieverLogger(logger),
	)
	out, err := retriever.Retrieve(ctx, query, *topK,
		groundrag.WithKeyword(*keyword),
		groundrag.WithPersona(*persona),
	)
	if err != nil {
		log.Fatalf("retrieve: %v", err)
	}
	fmt.Println(out)
}

func runFetch(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	cfgPath := fs.String("config", "", "path to groundrag.toml")
	name := fs.String("name", "", "base filename (default: derived from URL)")
	fs.Parse(args)

	if fs.NArg() < 1 {
		log.Fatal("fetch: url required")
	}
	cfg := config.Load(*cfgPath)

	f := fetch.New(cfg.Corpus.Root)
	res, err := f.Fetch(ctx, fs.Arg(0), *name)
	if err != nil {
		log.Fatalf("fetch: %v", err)
	}
	fmt.Printf("saved %s (sha256 %s)\n", res.Path, res.SHA256)
}

// buildEmbedding constructs the fallback embedding chain from config, with
// retry on rate limiting around the whole chain.
func buildEmbedding(cfg config.Config) groundrag.EmbeddingProvider {
	var opts []openai.Option
	if cfg.Embedding.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Embedding.BaseURL))
	}
	chain := openai.NewChain(cfg.Embedding.APIKey, cfg.Embedding.Model, cfg.Embedding.Namespaced, opts...)
	return groundrag.WithEmbeddingRetry(chain)
}

// buildStore constructs the configured vector store backend. A qdrant backend
// that fails its liveness probe degrades to the in-memory store so retrieval
// still runs (empty, all required sources Missing) instead of crashing.
func buildStore(ctx context.Context, cfg config.Config, dim int, logger *slog.Logger) groundrag.VectorStore {
	switch cfg.Store.Backend {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			log.Fatalf("postgres: %v", err)
		}
		return postgres.New(pool, cfg.Store.Collection)
	case "memory":
		return memory.New()
	default:
		store := qdrant.New(qdrant.Config{
			URL:        cfg.Store.QdrantURL,
			APIKey:     cfg.Store.QdrantKey,
			Collection: cfg.Store.Collection,
		})
		if err := store.Ping(ctx); err != nil {
			logger.Warn("qdrant unreachable, using in-memory store",
				"url", cfg.Store.QdrantURL, "error", err)
			return memory.New()
		}
		return store
	}
}

// buildCounter returns the exact BPE counter, or the rune heuristic when the
// vocabulary cannot be loaded.
func buildCounter(logger *slog.Logger) token.Counter {
	counter, err := token.NewCounter()
	if err != nil {
		logger.Warn("tiktoken unavailable, using heuristic token counter", "error", err)
		return token.Heuristic{}
	}
	return counter
}

// setupObserver initializes tracing when enabled. The returned shutdown is
// always safe to call.
func setupObserver(ctx context.Context, cfg config.Config, logger *slog.Logger) (groundrag.Tracer, func(context.Context) error) {
	noop := func(context.Context) error { return nil }
	if !cfg.Observer.Enabled {
		return nil, noop
	}
	shutdown, err := observer.Init(ctx)
	if err != nil {
		logger.Warn("tracing init failed", "error", err)
		return nil, noop
	}
	return observer.NewTracer(), shutdown
}
