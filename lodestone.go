// Package lodestone is a local-first hybrid search and knowledge-indexing
// engine for a directory of notes. It chunks and embeds documents into an
// embedded SQLite index, extracts a link/tag graph, answers ranked queries
// by fusing fulltext, vector, and metadata lanes, and keeps the index
// current through debounced live updates and mtime/hash reconciliation.
package lodestone

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/quillforge/lodestone/graph"
	"github.com/quillforge/lodestone/index"
	"github.com/quillforge/lodestone/normalize"
	"github.com/quillforge/lodestone/parser"
	"github.com/quillforge/lodestone/provider"
	"github.com/quillforge/lodestone/retrieval"
	"github.com/quillforge/lodestone/source"
	"github.com/quillforge/lodestone/store"
)

// Engine is the main entry point for the search engine.
type Engine interface {
	// Search returns ranked results for a query, with a trace of how the
	// lanes contributed. An empty result set is an answer, not an error.
	Search(ctx context.Context, query string, opts ...SearchOption) ([]retrieval.Result, *retrieval.Trace, error)

	// IndexAll rebuilds the index from a full scan of the source.
	IndexAll(ctx context.Context) (*index.Summary, error)

	// CheckChanges reconciles the index against the source: new and edited
	// documents are reindexed, vanished ones deleted, mtime-only touches
	// refreshed in place.
	CheckChanges(ctx context.Context) (*index.CheckResult, error)

	// DeleteDocuments removes documents and every trace of them: chunks,
	// embeddings, statistics, and document graph nodes.
	DeleteDocuments(ctx context.Context, paths []string) error

	// RecordOpen notes that a document was opened in the host application,
	// feeding the frequency and recency boosts.
	RecordOpen(ctx context.Context, path string) error

	// Listener returns the debounced change listener, for hosts that
	// deliver their own change events instead of using Watch.
	Listener() *index.Listener

	// Watch streams filesystem change events into the listener until ctx
	// is cancelled. Returns ErrWatchUnsupported when the configured source
	// cannot watch.
	Watch(ctx context.Context) error

	// Status reports index readiness and row counts.
	Status(ctx context.Context) (*Status, error)

	// Store returns the underlying store for diagnostic access (e.g. eval
	// ground-truth checks).
	Store() *store.Store

	// Close stops the listener and releases the database. Pending listener
	// events are dropped; the next CheckChanges picks them up.
	Close() error
}

// Status reports the state of the index.
type Status struct {
	BuiltAt    string `json:"built_at,omitempty"` // RFC 3339 end of the last full build
	Ready      bool   `json:"ready"`              // at least one full build completed
	Documents  int    `json:"documents"`
	Chunks     int    `json:"chunks"`
	Embeddings int    `json:"embeddings"`
	GraphNodes int    `json:"graph_nodes"`
	GraphEdges int    `json:"graph_edges"`
	DBPath     string `json:"db_path"`
}

// SearchOption narrows or sizes a single search.
type SearchOption func(*retrieval.Options)

// WithTopK caps the number of results.
func WithTopK(n int) SearchOption {
	return func(o *retrieval.Options) { o.TopK = n }
}

// WithPath restricts results to a single document.
func WithPath(path string) SearchOption {
	return func(o *retrieval.Options) { o.Scope.Path = path }
}

// WithFolder restricts results to a folder and everything under it.
func WithFolder(folder string) SearchOption {
	return func(o *retrieval.Options) { o.Scope.Folder = folder }
}

// WithAllow restricts results to the given document ids.
func WithAllow(docIDs ...string) SearchOption {
	return func(o *retrieval.Options) { o.Scope.AllowIDs = append(o.Scope.AllowIDs, docIDs...) }
}

// WithDeny excludes the given document ids.
func WithDeny(docIDs ...string) SearchOption {
	return func(o *retrieval.Options) { o.Scope.DenyIDs = append(o.Scope.DenyIDs, docIDs...) }
}

// WithActivePath names the document the user is viewing; results within its
// graph neighbourhood are boosted.
func WithActivePath(path string) SearchOption {
	return func(o *retrieval.Options) { o.ActivePath = path }
}

// Option overrides a collaborator during construction.
type Option func(*options)

type options struct {
	logger      *slog.Logger
	source      source.Source
	embedder    provider.Embedder
	hasEmbedder bool
	reranker    provider.Reranker
	hasReranker bool
}

// WithLogger routes the engine's own log records through l.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithSource replaces the vault directory source with a custom document
// source.
func WithSource(src source.Source) Option {
	return func(o *options) { o.source = src }
}

// WithEmbedder replaces the configured embedding provider. A nil embedder
// disables the vector lane.
func WithEmbedder(e provider.Embedder) Option {
	return func(o *options) { o.embedder = e; o.hasEmbedder = true }
}

// WithReranker replaces the configured rerank provider. A nil reranker
// leaves the boosted ordering as is.
func WithReranker(r provider.Reranker) Option {
	return func(o *options) { o.reranker = r; o.hasReranker = true }
}

// engine is the concrete implementation of Engine.
type engine struct {
	cfg       Config
	log       *slog.Logger
	dbPath    string
	store     *store.Store
	source    source.Source
	graph     *graph.Graph
	retriever *retrieval.Engine
	indexer   *index.Indexer
	listener  *index.Listener
}

// New creates a lodestone engine with the given configuration.
func New(cfg Config, opts ...Option) (Engine, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if log == nil {
		log = slog.Default()
	}

	// Apply defaults for zero values
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = 768
	}

	src := o.source
	if src == nil {
		if cfg.Vault == "" {
			return nil, fmt.Errorf("%w: vault directory not set", ErrInvalidConfig)
		}
		var err error
		src, err = source.NewDir(cfg.Vault, parser.NewRegistry())
		if err != nil {
			return nil, fmt.Errorf("opening vault: %w", err)
		}
	}

	embedder := o.embedder
	if !o.hasEmbedder {
		var err error
		embedder, err = provider.NewEmbedder(provider.Config{
			Provider: cfg.Embedding.Provider,
			Model:    cfg.Embedding.Model,
			BaseURL:  cfg.Embedding.BaseURL,
			APIKey:   cfg.Embedding.APIKey,
			Dim:      cfg.EmbeddingDim,
			RPS:      cfg.Embedding.RPS,
		})
		if err != nil {
			return nil, fmt.Errorf("creating embedding provider: %w", err)
		}
	}

	reranker := o.reranker
	if !o.hasReranker {
		var err error
		reranker, err = provider.NewReranker(provider.Config{
			Provider:    cfg.Rerank.Provider,
			RerankModel: cfg.Rerank.Model,
			BaseURL:     cfg.Rerank.BaseURL,
			APIKey:      cfg.Rerank.APIKey,
			RPS:         cfg.Rerank.RPS,
		})
		if err != nil {
			return nil, fmt.Errorf("creating rerank provider: %w", err)
		}
	}

	// Open store
	dbPath := cfg.resolveDBPath()
	s, err := store.New(dbPath, cfg.EmbeddingDim)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if cfg.Search.CoverageFulltext > 0 || cfg.Search.CoverageMeta > 0 {
		s.SetCoverageBoost(cfg.Search.CoverageFulltext, cfg.Search.CoverageMeta)
	}

	g := graph.New(s)

	retriever := retrieval.New(s, g, embedder, reranker, retrieval.Config{
		TopK:          cfg.Search.TopK,
		RRFK:          cfg.Search.RRFK,
		ContentWeight: cfg.Search.ContentWeight,
		MetaWeight:    cfg.Search.MetaWeight,
		FreqBoost:     cfg.Search.FreqBoost,
		RecencyBoost:  cfg.Search.RecencyBoost,
		RecencyDecay:  cfg.Search.RecencyDecay,
		GraphBoost:    cfg.Search.GraphBoost,
		GraphHops:     cfg.Search.GraphHops,
		RerankWeight:  cfg.Search.RerankWeight,
		CacheSize:     cfg.Search.CacheSize,
	})

	indexer := index.New(src, s, embedder, index.Config{
		MaxChunkSize:    cfg.Indexing.MaxChunkSize,
		ChunkOverlap:    cfg.Indexing.ChunkOverlap,
		MinDocumentSize: cfg.Indexing.MinDocumentSize,
		EmbeddingModel:  cfg.Embedding.Model,
		Workers:         cfg.Indexing.Workers,
	})

	// Every index write goes through the listener or the engine methods,
	// and both invalidate the query cache, so cached scores never outlive
	// the rows they came from.
	listener := index.NewListener(indexer, cfg.debounce(), retriever.Invalidate)

	return &engine{
		cfg:       cfg,
		log:       log,
		dbPath:    dbPath,
		store:     s,
		source:    src,
		graph:     g,
		retriever: retriever,
		indexer:   indexer,
		listener:  listener,
	}, nil
}

// Search runs a scoped hybrid search.
func (e *engine) Search(ctx context.Context, query string, opts ...SearchOption) ([]retrieval.Result, *retrieval.Trace, error) {
	var o retrieval.Options
	for _, opt := range opts {
		opt(&o)
	}
	return e.retriever.Search(ctx, query, o)
}

// IndexAll rebuilds the index from a full scan.
func (e *engine) IndexAll(ctx context.Context) (*index.Summary, error) {
	summary, err := e.indexer.IndexAll(ctx)
	// Even a failed or cancelled run has usually committed documents.
	e.retriever.Invalidate()
	return summary, err
}

// CheckChanges reconciles the index against the source.
func (e *engine) CheckChanges(ctx context.Context) (*index.CheckResult, error) {
	result, err := e.indexer.CheckChanges(ctx)
	if err != nil {
		e.retriever.Invalidate()
		return nil, err
	}
	if result.Changed > 0 || result.Deleted > 0 {
		e.retriever.Invalidate()
	}
	return result, nil
}

// DeleteDocuments removes the documents at the given corpus-relative paths.
func (e *engine) DeleteDocuments(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := e.indexer.DeleteDocuments(ctx, paths); err != nil {
		return err
	}
	e.retriever.Invalidate()
	return nil
}

// RecordOpen registers that the document at path was opened.
func (e *engine) RecordOpen(ctx context.Context, path string) error {
	id := normalize.Fold(path)
	if _, err := e.store.GetDocMeta(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: %s", ErrDocumentNotFound, path)
		}
		return err
	}
	if err := e.store.RecordOpen(ctx, id); err != nil {
		return err
	}
	// Open counts feed the frequency boost, so cached orderings are stale.
	e.retriever.Invalidate()
	return nil
}

// Listener returns the debounced change listener.
func (e *engine) Listener() *index.Listener {
	return e.listener
}

// Watch streams source change events into the listener.
func (e *engine) Watch(ctx context.Context) error {
	w, ok := e.source.(source.Watcher)
	if !ok {
		return ErrWatchUnsupported
	}
	e.log.Info("watching for changes", "vault", e.cfg.Vault)
	return w.Watch(ctx, e.listener)
}

// Status reports index readiness and row counts.
func (e *engine) Status(ctx context.Context) (*Status, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	builtAt, err := e.store.GetState(ctx, index.StateIndexBuiltAt)
	if err != nil {
		return nil, err
	}
	return &Status{
		BuiltAt:    builtAt,
		Ready:      builtAt != "",
		Documents:  stats.Documents,
		Chunks:     stats.Chunks,
		Embeddings: stats.Embeddings,
		GraphNodes: stats.GraphNodes,
		GraphEdges: stats.GraphEdges,
		DBPath:     e.dbPath,
	}, nil
}

// Store returns the underlying store.
func (e *engine) Store() *store.Store {
	return e.store
}

// Close shuts down the engine.
func (e *engine) Close() error {
	e.listener.Close()
	return e.store.Close()
}
