package groundrag

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// minCandidatePool is the floor for the similarity-search over-fetch: enough
// candidates must survive keyword filtering and deduplication to fill topK.
const minCandidatePool = 24

// RetrieverOption configures a CoverageRetriever.
type RetrieverOption func(*retrieverConfig)

type retrieverConfig struct {
	required            []string
	quotas              map[string]int
	overfetchMultiplier int
	tracer              Tracer
	logger              *slog.Logger
}

// WithRequiredSources sets the sources (by short name) that must contribute
// at least one chunk to every rendered context, regardless of similarity
// rank. Missing sources are reported in the presence summary, never faked.
func WithRequiredSources(names ...string) RetrieverOption {
	return func(c *retrieverConfig) { c.required = append(c.required, names...) }
}

// WithSourceQuotas sets per-source minimum chunk counts (by short name),
// enforced independently of similarity rank.
func WithSourceQuotas(quotas map[string]int) RetrieverOption {
	return func(c *retrieverConfig) {
		if c.quotas == nil {
			c.quotas = map[string]int{}
		}
		for k, v := range quotas {
			c.quotas[k] = v
		}
	}
}

// WithOverfetchMultiplier sets the multiplier for the similarity-search
// candidate pool: the retriever fetches max(topK*multiplier, 24) candidates.
// Default 3.
func WithOverfetchMultiplier(n int) RetrieverOption {
	return func(c *retrieverConfig) { c.overfetchMultiplier = n }
}

// WithRetrieverTracer attaches a Tracer for retrieve spans.
func WithRetrieverTracer(t Tracer) RetrieverOption {
	return func(c *retrieverConfig) { c.tracer = t }
}

// WithRetrieverLogger attaches a logger. Nil disables logging.
func WithRetrieverLogger(l *slog.Logger) RetrieverOption {
	return func(c *retrieverConfig) { c.logger = l }
}

// QueryOption configures a single Retrieve call.
type QueryOption func(*queryConfig)

type queryConfig struct {
	keyword string
	persona string
}

// WithKeyword filters similarity candidates to those mentioning the keyword
// (case-insensitively) in their text, a "trip"-tagged metadata field, or
// their source path. Repair fetches are not filtered; coverage wins.
func WithKeyword(k string) QueryOption {
	return func(c *queryConfig) { c.keyword = k }
}

// WithPersona records a persona for downstream generation. Persona never
// filters retrieval; it only biases the generation step.
func WithPersona(p string) QueryOption {
	return func(c *queryConfig) { c.persona = p }
}

// CoverageRetriever renders an annotated context block for a query by
// combining similarity search with presence and quota repair against a
// configured set of sources.
//
// Each Retrieve call owns its own candidate and coverage state, so
// concurrent calls need no coordination beyond a store and provider that are
// safe for concurrent reads.
type CoverageRetriever struct {
	store     VectorStore
	embedding EmbeddingProvider
	cfg       retrieverConfig
}

// NewCoverageRetriever creates a retriever over the given store and
// embedding provider.
func NewCoverageRetriever(store VectorStore, emb EmbeddingProvider, opts ...RetrieverOption) *CoverageRetriever {
	cfg := retrieverConfig{overfetchMultiplier: 3}
	for _, o := range opts {
		o(&cfg)
	}
	return &CoverageRetriever{store: store, embedding: emb, cfg: cfg}
}

// coverageState accumulates one retrieval's annotated blocks with
// append-time deduplication by (source short name, chunk index). Because a
// duplicate never increments counts, quotas are counted post-dedup: a quota
// is only satisfied by records that survive in the final output.
type coverageState struct {
	dedup  map[recordKey]bool
	seen   map[string]bool
	counts map[string]int
	blocks []string
}

type recordKey struct {
	source string
	index  int
}

func newCoverageState() *coverageState {
	return &coverageState{
		dedup:  map[recordKey]bool{},
		seen:   map[string]bool{},
		counts: map[string]int{},
	}
}

// add renders and records one candidate. It reports whether the candidate
// was kept (non-empty and not a duplicate).
func (s *coverageState) add(p Payload) bool {
	if p.Text == "" {
		return false
	}
	source := p.Source
	if source == "" {
		source = p.SourceName
	}
	short := ShortName(source)
	if short == "" {
		short = "unknown"
	}
	key := recordKey{short, p.ChunkIndex}
	if s.dedup[key] {
		return false
	}
	s.dedup[key] = true
	s.seen[short] = true
	s.counts[short]++
	s.blocks = append(s.blocks, fmt.Sprintf("SOURCE: %s\n%s", source, p.Text))
	return true
}

// Retrieve embeds the query, gathers an over-fetched candidate pool, repairs
// presence and quota gaps with metadata-only fetches, deduplicates, and
// returns the presence summary plus annotated blocks.
//
// Failures that only reduce context quality degrade softly: an embedding
// failure yields an empty context, a failed repair fetch leaves its source
// marked Missing. Callers must treat "no context" as a valid outcome.
func (r *CoverageRetriever) Retrieve(ctx context.Context, query string, topK int, opts ...QueryOption) (string, error) {
	var qc queryConfig
	for _, o := range opts {
		o(&qc)
	}
	if r.cfg.tracer != nil {
		var span Span
		ctx, span = r.cfg.tracer.Start(ctx, "retrieve",
			IntAttr("top_k", topK),
			StringAttr("keyword", qc.keyword),
			StringAttr("persona", qc.persona))
		defer span.End()
	}

	vec, err := r.embedQuery(ctx, query)
	if err != nil {
		// No vector, no similarity search. The contract is "always return
		// something usable", and for a dead embedding path that is the
		// empty context.
		if r.cfg.logger != nil {
			r.cfg.logger.Warn("query embedding failed, returning empty context", "error", err)
		}
		return "", nil
	}

	pool := max(topK*r.cfg.overfetchMultiplier, minCandidatePool)
	hits, err := r.store.Search(ctx, vec, pool)
	if err != nil {
		// Repair fetches below may still produce coverage.
		if r.cfg.logger != nil {
			r.cfg.logger.Warn("similarity search failed, relying on repair fetches", "error", err)
		}
		hits = nil
	}

	state := newCoverageState()
	for _, h := range hits {
		if !matchesKeyword(h.Payload, qc.keyword) {
			continue
		}
		state.add(h.Payload)
	}

	r.repairPresence(ctx, state)
	r.repairQuotas(ctx, state)

	var b strings.Builder
	b.WriteString(r.presenceSummary(state))
	for _, block := range state.blocks {
		b.WriteString("\n\n")
		b.WriteString(block)
	}
	return b.String(), nil
}

// embedQuery returns the query vector, or an error when no provider in the
// chain can embed it.
func (r *CoverageRetriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	vecs, err := r.embedding.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vecs[0], nil
}

// repairPresence fetches one record for every required source the candidate
// pool missed. A failed fetch is swallowed: the source stays Missing in the
// summary, which is the caller-visible signal of partial coverage.
func (r *CoverageRetriever) repairPresence(ctx context.Context, state *coverageState) {
	for _, name := range r.cfg.required {
		if state.seen[name] {
			continue
		}
		recs, err := r.store.FetchBySource(ctx, name, 1)
		if err != nil {
			if r.cfg.logger != nil {
				r.cfg.logger.Warn("presence repair fetch failed", "source", name, "error", err)
			}
			continue
		}
		for _, rec := range recs {
			state.add(rec.Payload)
		}
	}
}

// repairQuotas tops up sources below their configured minimum. The fetch
// asks for the full quota rather than just the deficit so that records
// already collected by similarity search don't mask still-unseen ones.
func (r *CoverageRetriever) repairQuotas(ctx context.Context, state *coverageState) {
	names := make([]string, 0, len(r.cfg.quotas))
	for name := range r.cfg.quotas {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		quota := r.cfg.quotas[name]
		if state.counts[name] >= quota {
			continue
		}
		recs, err := r.store.FetchBySource(ctx, name, quota)
		if err != nil {
			if r.cfg.logger != nil {
				r.cfg.logger.Warn("quota repair fetch failed", "source", name, "error", err)
			}
			continue
		}
		for _, rec := range recs {
			if state.counts[name] >= quota {
				break
			}
			state.add(rec.Payload)
		}
	}
}

// presenceSummary renders the required-source header, e.g.
// "Context sources presence: a.txt=Present, b.csv=Missing".
func (r *CoverageRetriever) presenceSummary(state *coverageState) string {
	names := append([]string(nil), r.cfg.required...)
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		status := "Missing"
		if state.seen[name] {
			status = "Present"
		}
		parts[i] = name + "=" + status
	}
	return "Context sources presence: " + strings.Join(parts, ", ")
}

// matchesKeyword reports whether a candidate passes the keyword filter: the
// keyword appears case-insensitively in its text, a "trip"-tagged metadata
// field, or its source path. An empty keyword passes everything.
func matchesKeyword(p Payload, keyword string) bool {
	if keyword == "" {
		return true
	}
	k := strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(p.Text), k) {
		return true
	}
	if strings.Contains(strings.ToLower(p.Source), k) ||
		strings.Contains(strings.ToLower(p.SourceName), k) {
		return true
	}
	for key, val := range p.Meta {
		if strings.Contains(key, "trip") && strings.Contains(strings.ToLower(val), k) {
			return true
		}
	}
	return false
}
