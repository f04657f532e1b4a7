// Package retrieval answers ranked queries over the index. Three scoped
// sub-searches (fulltext, vector, meta) run concurrently and are fused by
// two-stage reciprocal rank fusion, then usage and graph-proximity boosts
// apply, highlight snippets are extracted, and an optional rerank model
// refines the final ordering.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quillforge/lodestone/graph"
	"github.com/quillforge/lodestone/normalize"
	"github.com/quillforge/lodestone/provider"
	"github.com/quillforge/lodestone/store"
)

// Config holds the ranking tunables. Zero fields fall back to defaults.
type Config struct {
	TopK          int     `json:"top_k"`
	RRFK          float64 `json:"rrf_k"`           // rank smoothing constant
	ContentWeight float64 `json:"content_weight"`  // fulltext/vector stage weight
	MetaWeight    float64 `json:"meta_weight"`     // per-source weight in the final stage
	FreqBoost     float64 `json:"freq_boost"`      // multiplier on ln(1+opens)
	RecencyBoost  float64 `json:"recency_boost"`   // bonus for a just-opened document
	RecencyDecay  float64 `json:"recency_decay"`   // bonus lost per day since last open
	GraphBoost    float64 `json:"graph_boost"`     // bonus within GraphHops of the active document
	GraphHops     int     `json:"graph_hops"`
	RerankWeight  float64 `json:"rerank_weight"`   // rerank share of the combined score
	CacheSize     int     `json:"cache_size"`      // query cache entries, 0 disables
}

// DefaultConfig returns the standard ranking constants.
func DefaultConfig() Config {
	return Config{
		TopK:          20,
		RRFK:          60,
		ContentWeight: 1,
		MetaWeight:    1,
		FreqBoost:     0.15,
		RecencyBoost:  0.3,
		RecencyDecay:  0.01,
		GraphBoost:    0.2,
		GraphHops:     2,
		RerankWeight:  0.3,
		CacheSize:     128,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.TopK <= 0 {
		c.TopK = d.TopK
	}
	if c.RRFK <= 0 {
		c.RRFK = d.RRFK
	}
	if c.ContentWeight <= 0 {
		c.ContentWeight = d.ContentWeight
	}
	if c.MetaWeight <= 0 {
		c.MetaWeight = d.MetaWeight
	}
	if c.GraphHops <= 0 {
		c.GraphHops = d.GraphHops
	}
	if c.RerankWeight <= 0 {
		c.RerankWeight = d.RerankWeight
	}
	return c
}

// Options scope and size a single search.
type Options struct {
	Scope      store.Scope
	TopK       int
	ActivePath string // current document; seeds the graph-proximity boost
}

// Span marks a highlighted byte range within a snippet.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Result is one ranked document hit.
type Result struct {
	DocID     string   `json:"doc_id"`
	Path      string   `json:"path"`
	Title     string   `json:"title"`
	ChunkID   int64    `json:"chunk_id,omitempty"` // best matching chunk, 0 for meta-only hits
	Score     float64  `json:"score"`
	Snippet   string   `json:"snippet,omitempty"`
	Spans     []Span   `json:"spans,omitempty"`
	Sources   []string `json:"sources"`
	OpenCount int64    `json:"open_count,omitempty"`

	content string // raw text of the best chunk, for snippets and rerank
}

// Trace records the breakdown of one search.
type Trace struct {
	FulltextHits int   `json:"fulltext_hits"`
	VectorHits   int   `json:"vector_hits"`
	MetaHits     int   `json:"meta_hits"`
	Fused        int   `json:"fused"`
	Reranked     bool  `json:"reranked"`
	Cached       bool  `json:"cached"`
	ElapsedMs    int64 `json:"elapsed_ms"`
}

// Engine performs hybrid retrieval over the store.
type Engine struct {
	store    *store.Store
	graph    *graph.Graph
	embedder provider.Embedder
	reranker provider.Reranker
	cfg      Config
	cache    *queryCache
}

// New creates a retrieval engine. embedder and reranker may be nil: without
// an embedder the vector lane is skipped, without a reranker the boosted
// ordering stands.
func New(s *store.Store, g *graph.Graph, embedder provider.Embedder, reranker provider.Reranker, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		store:    s,
		graph:    g,
		embedder: embedder,
		reranker: reranker,
		cfg:      cfg,
		cache:    newQueryCache(cfg.CacheSize),
	}
}

// Invalidate drops all cached query results. The owning engine calls this
// after every index write, so cached scores never outlive the rows they
// were computed from.
func (e *Engine) Invalidate() {
	e.cache.invalidate()
}

// Search runs the full retrieval pipeline and returns up to topK ranked
// results with highlight snippets.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, *Trace, error) {
	start := time.Now()
	trace := &Trace{}

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, trace, nil
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = e.cfg.TopK
	}

	if results, ok := e.cache.get(query, opts.Scope, topK, opts.ActivePath); ok {
		trace.Cached = true
		trace.Fused = len(results)
		trace.ElapsedMs = time.Since(start).Milliseconds()
		return results, trace, nil
	}

	keywords := normalize.Keywords(query)

	// Sub-searches fetch more than topK so fusion has real candidate pools
	// to rank against each other.
	subLimit := topK * 3
	if subLimit < 30 {
		subLimit = 30
	}

	type subResult struct {
		hits []store.SearchHit
		err  error
	}
	ftCh := make(chan subResult, 1)
	vecCh := make(chan subResult, 1)
	metaCh := make(chan subResult, 1)

	go func() {
		hits, err := e.store.SearchFulltext(ctx, keywords, opts.Scope, subLimit)
		ftCh <- subResult{hits, err}
	}()
	go func() {
		hits, err := e.store.SearchMeta(ctx, keywords, opts.Scope, subLimit)
		metaCh <- subResult{hits, err}
	}()
	go func() {
		hits, err := e.vectorSearch(ctx, query, opts.Scope, subLimit)
		vecCh <- subResult{hits, err}
	}()

	ft := <-ftCh
	vec := <-vecCh
	meta := <-metaCh

	if ft.err != nil {
		slog.Warn("retrieval: fulltext search failed", "error", ft.err)
	}
	if meta.err != nil {
		slog.Warn("retrieval: meta search failed", "error", meta.err)
	}
	if vec.err != nil {
		// Provider trouble degrades to lexical-only retrieval.
		slog.Warn("retrieval: vector search unavailable", "error", vec.err)
	}

	trace.FulltextHits = len(ft.hits)
	trace.VectorHits = len(vec.hits)
	trace.MetaHits = len(meta.hits)

	results := fuseRRF(ft.hits, vec.hits, meta.hits,
		e.cfg.RRFK, e.cfg.ContentWeight, e.cfg.MetaWeight, topK)

	if len(results) == 0 {
		if ft.err != nil {
			return nil, trace, fmt.Errorf("fulltext search: %w", ft.err)
		}
		if meta.err != nil {
			return nil, trace, fmt.Errorf("meta search: %w", meta.err)
		}
		if vec.err != nil {
			return nil, trace, fmt.Errorf("vector search: %w", vec.err)
		}
		trace.ElapsedMs = time.Since(start).Milliseconds()
		return nil, trace, nil
	}

	e.applyBoosts(ctx, results, opts.ActivePath)
	e.attachSnippets(results, query)
	trace.Reranked = e.rerank(ctx, query, results)

	trace.Fused = len(results)
	trace.ElapsedMs = time.Since(start).Milliseconds()

	slog.Debug("retrieval: search complete",
		"fulltext", trace.FulltextHits, "vector", trace.VectorHits,
		"meta", trace.MetaHits, "fused", trace.Fused,
		"reranked", trace.Reranked,
		"elapsed", time.Since(start).Round(time.Millisecond))

	e.cache.put(query, opts.Scope, topK, opts.ActivePath, results)
	return results, trace, nil
}

// vectorSearch embeds the query and runs the nearest-neighbor lane. With no
// embedder configured it contributes nothing.
func (e *Engine) vectorSearch(ctx context.Context, query string, scope store.Scope, limit int) ([]store.SearchHit, error) {
	if e.embedder == nil {
		return nil, nil
	}
	vecs, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return nil, nil
	}
	return e.store.SearchVector(ctx, vecs[0], scope, limit)
}

func (e *Engine) attachSnippets(results []Result, query string) {
	for i := range results {
		if results[i].content == "" {
			continue
		}
		results[i].Snippet, results[i].Spans = Snippet(results[i].content, query)
	}
}
