package index

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/quillforge/lodestone/source"
	"github.com/quillforge/lodestone/store"
)

// checkBatchSize bounds one metadata lookup during reconciliation.
const checkBatchSize = 200

// CheckResult reports one reconciliation run.
type CheckResult struct {
	Scanned int           `json:"scanned"`
	Changed int           `json:"changed"` // reindexed after a content change
	Deleted int           `json:"deleted"`
	Touched int           `json:"touched"` // mtime moved, content identical
	Elapsed time.Duration `json:"elapsed"`
}

// CheckChanges reconciles the index with the source. The scan stays
// metadata-only: content is loaded and hashed only for paths that are
// unindexed or whose mtime moved, and reindexed only when the hash really
// differs, so sync tools that rewrite timestamps cost one read instead of
// one reindex. Documents that vanished from the source are deleted.
// Deletions and reindexing run concurrently; their individual failures are
// logged, not propagated.
func (x *Indexer) CheckChanges(ctx context.Context) (*CheckResult, error) {
	start := time.Now()

	files, err := x.source.Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanning source: %w", err)
	}
	paths := NewPathSet(filePaths(files))

	indexed, err := x.store.ListIndexedPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing indexed paths: %w", err)
	}
	onDisk := make(map[string]bool, len(files))
	for _, f := range files {
		onDisk[f.Path] = true
	}
	var deleted []string
	for _, p := range indexed {
		if !onDisk[p] {
			deleted = append(deleted, p)
		}
	}

	// Metadata pass: batched mtime compare against the stored rows.
	known := make(map[string]store.DocMeta, len(files))
	var maybe []source.FileInfo
	for batchStart := 0; batchStart < len(files); batchStart += checkBatchSize {
		end := batchStart + checkBatchSize
		if end > len(files) {
			end = len(files)
		}
		batch := files[batchStart:end]
		metas, err := x.store.MetaByPaths(ctx, filePaths(batch))
		if err != nil {
			return nil, fmt.Errorf("loading indexed metadata: %w", err)
		}
		for _, f := range batch {
			meta, ok := metas[f.Path]
			if !ok || meta.Mtime != f.Mtime {
				maybe = append(maybe, f)
				if ok {
					known[f.Path] = meta
				}
			}
		}
	}

	// Content pass: hash the maybe-changed set.
	var (
		docs    []*source.Document
		touched int
	)
	for _, f := range maybe {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := x.source.Read(ctx, f.Path)
		if err != nil {
			slog.Warn("index: reading changed document failed", "path", f.Path, "error", err)
			continue
		}
		if meta, ok := known[f.Path]; ok && meta.ContentHash == doc.ContentHash {
			// Timestamp-only touch. Refresh the stored mtime so the next
			// check skips the read.
			touched++
			meta.Mtime = f.Mtime
			meta.Size = f.Size
			if err := x.store.UpsertDocMeta(ctx, meta); err != nil {
				slog.Warn("index: refreshing mtime failed", "path", f.Path, "error", err)
			}
			continue
		}
		docs = append(docs, doc)
	}

	var changed int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(deleted) == 0 {
			return nil
		}
		if err := x.DeleteDocuments(gctx, deleted); err != nil {
			slog.Warn("index: removing deleted documents failed",
				"count", len(deleted), "error", err)
		}
		return nil
	})
	g.Go(func() error {
		for _, doc := range docs {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := x.IndexDocument(gctx, doc, paths); err != nil {
				slog.Warn("index: document skipped", "path", doc.Path, "error", err)
				continue
			}
			changed++
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &CheckResult{
		Scanned: len(files),
		Changed: changed,
		Deleted: len(deleted),
		Touched: touched,
		Elapsed: time.Since(start),
	}
	slog.Info("index: reconciliation complete",
		"scanned", result.Scanned, "changed", result.Changed,
		"deleted", result.Deleted, "touched", result.Touched,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	return result, nil
}
