// Package index drives the document lifecycle. It turns source documents
// into chunks, embeddings, and graph relations, persists each document in
// one transaction, and keeps the index current through full rebuilds,
// change reconciliation, and a debounced live-update listener.
package index

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/quillforge/lodestone/chunker"
	"github.com/quillforge/lodestone/graph"
	"github.com/quillforge/lodestone/normalize"
	"github.com/quillforge/lodestone/provider"
	"github.com/quillforge/lodestone/source"
	"github.com/quillforge/lodestone/store"
)

// embedBatchSize bounds one provider call during indexing.
const embedBatchSize = 32

// StateIndexBuiltAt is the index_state key recording the last completed
// full build, RFC 3339.
const StateIndexBuiltAt = "index_built_at"

// Config holds the indexing tunables.
type Config struct {
	MaxChunkSize    int    `json:"max_chunk_size"`
	ChunkOverlap    int    `json:"chunk_overlap"`
	MinDocumentSize int    `json:"min_document_size"`
	EmbeddingModel  string `json:"embedding_model"` // label recorded with vectors
	Workers         int    `json:"workers"`         // bulk indexing pool size
}

// Indexer owns the write path of the index.
type Indexer struct {
	source   source.Source
	store    *store.Store
	embedder provider.Embedder
	chunker  *chunker.Chunker
	model    string
	workers  int
}

// New creates an Indexer. A nil embedder indexes without vectors; the
// fulltext and meta lanes still work.
func New(src source.Source, st *store.Store, emb provider.Embedder, cfg Config) *Indexer {
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU() / 2
		if workers < 1 {
			workers = 1
		}
	}
	return &Indexer{
		source:   src,
		store:    st,
		embedder: emb,
		chunker: chunker.New(chunker.Config{
			MaxChunkSize:    cfg.MaxChunkSize,
			ChunkOverlap:    cfg.ChunkOverlap,
			MinDocumentSize: cfg.MinDocumentSize,
		}),
		model:   cfg.EmbeddingModel,
		workers: workers,
	}
}

// IndexDocument chunks, embeds, and persists one document atomically:
// meta, chunks, fulltext rows, embeddings, and graph footprint move
// together or not at all. Embedding failure is not fatal; the document is
// indexed without vectors and the fulltext lane carries it.
func (x *Indexer) IndexDocument(ctx context.Context, doc *source.Document, paths *PathSet) error {
	title, rels := Extract(doc.Path, doc.Content, paths)

	chunks := x.chunker.Split(doc.Content)
	vectors := x.embedChunks(ctx, doc.Path, chunks)

	tags, _ := json.Marshal(rels.Tags)
	meta := store.DocMeta{
		ID:          normalize.Fold(doc.Path),
		Path:        doc.Path,
		Type:        doc.Type,
		Title:       title,
		Mtime:       doc.Mtime,
		Size:        doc.Size,
		ContentHash: doc.ContentHash,
		Tags:        string(tags),
	}

	storeChunks := make([]store.Chunk, len(chunks))
	for i, c := range chunks {
		storeChunks[i] = store.Chunk{
			Index:       c.Index,
			Title:       title,
			Mtime:       doc.Mtime,
			Content:     c.Content,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
		}
	}

	nodes, edges := graph.Build(meta, rels)
	if err := x.store.ReplaceDocument(ctx, meta, storeChunks, vectors, x.model, nodes, edges); err != nil {
		return fmt.Errorf("indexing %s: %w", doc.Path, err)
	}
	return nil
}

// embedChunks generates one vector per chunk, batched. A failed batch
// retries per text so one poisonous chunk cannot strip its siblings of
// vectors; total failure returns nil and indexing proceeds without
// embeddings.
func (x *Indexer) embedChunks(ctx context.Context, path string, chunks []chunker.Chunk) [][]float32 {
	if x.embedder == nil || len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}

	vectors := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		vecs, err := x.embedder.Embed(ctx, batch)
		if err == nil && len(vecs) == len(batch) {
			copy(vectors[start:], vecs)
			continue
		}
		slog.Warn("index: batch embedding failed, retrying per chunk",
			"path", path, "batch", start/embedBatchSize, "error", err)

		for i := range batch {
			one, err := x.embedder.Embed(ctx, batch[i:i+1])
			if err != nil || len(one) != 1 {
				slog.Warn("index: chunk embedding failed, proceeding without",
					"path", path, "chunk", start+i, "error", err)
				continue
			}
			vectors[start+i] = one[0]
		}
	}
	return vectors
}

// DeleteDocuments removes documents from the index by path: meta, chunks,
// fulltext rows, embeddings, statistics, and the document graph node and
// its edges. Tag, link, and category nodes stay.
func (x *Indexer) DeleteDocuments(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	if err := x.store.DeleteDocuments(ctx, paths); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}
	return nil
}

// Summary reports one bulk indexing run.
type Summary struct {
	Scanned int           `json:"scanned"`
	Indexed int           `json:"indexed"`
	Failed  int           `json:"failed"`
	Elapsed time.Duration `json:"elapsed"`
}

// IndexAll scans the source and indexes every document through a worker
// pool. Each document is its own transaction; one document failing is
// logged and skipped while its siblings proceed. Cancelling ctx stops the
// run between documents.
func (x *Indexer) IndexAll(ctx context.Context) (*Summary, error) {
	start := time.Now()

	files, err := x.source.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning source: %w", err)
	}
	paths := NewPathSet(filePaths(files))

	pool, err := ants.NewPool(x.workers)
	if err != nil {
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		indexed atomic.Int64
		failed  atomic.Int64
	)
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			break
		}
		f := f
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			if err := x.indexPath(ctx, f.Path, paths); err != nil {
				failed.Add(1)
				slog.Warn("index: document skipped", "path", f.Path, "error", err)
				return
			}
			indexed.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			failed.Add(1)
			slog.Warn("index: submitting document failed", "path", f.Path, "error", submitErr)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := x.store.SetState(ctx, StateIndexBuiltAt, time.Now().UTC().Format(time.RFC3339)); err != nil {
		slog.Warn("index: recording build completion failed", "error", err)
	}

	summary := &Summary{
		Scanned: len(files),
		Indexed: int(indexed.Load()),
		Failed:  int(failed.Load()),
		Elapsed: time.Since(start),
	}
	slog.Info("index: full build complete",
		"scanned", summary.Scanned, "indexed", summary.Indexed,
		"failed", summary.Failed, "elapsed", summary.Elapsed.Round(time.Millisecond))
	return summary, nil
}

// indexPath loads one document from the source and indexes it.
func (x *Indexer) indexPath(ctx context.Context, path string, paths *PathSet) error {
	doc, err := x.source.Read(ctx, path)
	if err != nil {
		return err
	}
	return x.IndexDocument(ctx, doc, paths)
}

func filePaths(files []source.FileInfo) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}
