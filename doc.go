// Package groundrag builds retrieval context with explicit source-coverage
// guarantees.
//
// It ingests text and tabular documents, splits them into token-bounded
// overlapping chunks, embeds and indexes them in a vector store, and at query
// time combines semantic similarity search with presence and quota repair so
// that every configured source contributes to the rendered context regardless
// of its similarity rank.
//
// # Core Interfaces
//
// The root package defines the contracts that all components implement:
//
//   - [EmbeddingProvider]: text-to-vector embedding
//   - [VectorStore]: vector collection with payload-filtered fetch
//   - [Tracer]: optional span-based tracing (the observer package provides
//     an OTEL-backed implementation)
//
// and the two orchestrators built on them:
//
//   - [Indexer]: turns a corpus into chunked, embedded, stored records and a coverage report
//   - [CoverageRetriever]: answers a query with a repaired, deduplicated,
//     annotated context string with a presence summary
//
// Chunking lives in the ingest package, token counting in the token package,
// store backends under store/, and embedding adapters under provider/.
//
// # Quick Start
//
//	emb := openai.NewEmbedding(apiKey, "text-embedding-3-large")
//	vs := qdrant.New(qdrant.Config{URL: "http://localhost:6333", Collection: "docs"})
//
//	counter, _ := token.NewCounter()
//	builder := ingest.NewBuilder(ingest.WithChunker(
//		ingest.NewWindowChunker(ingest.WithCounter(counter))))
//	ix := groundrag.NewIndexer(vs, emb, builder, counter)
//	report, err := ix.Index(ctx, "data/source")
//
//	ret := groundrag.NewCoverageRetriever(vs, emb,
//		groundrag.WithRequiredSources("playbook.txt", "costs.csv"),
//		groundrag.WithSourceQuotas(map[string]int{"costs.csv": 2}),
//	)
//	out, err := ret.Retrieve(ctx, "how much did the trip cost?", 8)
package groundrag
