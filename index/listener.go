package index

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultDebounce is the listener's coalescing window.
const DefaultDebounce = 800 * time.Millisecond

// Listener turns live change notifications into index updates. Events
// accumulate in pending upsert/delete sets under a single debounce timer,
// so an editor hammering one file costs one reindex. A rename arrives as
// FileRemoved for the old name plus FileChanged for the new one; the last
// event per path wins, keeping the two sets disjoint.
type Listener struct {
	idx      *Indexer
	debounce time.Duration
	onFlush  func()

	mu      sync.Mutex
	upserts map[string]struct{}
	deletes map[string]struct{}
	timer   *time.Timer
	closed  bool
}

// NewListener creates a Listener flushing through the indexer. onFlush,
// if non-nil, runs after every completed flush; the owning engine uses it
// to drop cached query results.
func NewListener(idx *Indexer, debounce time.Duration, onFlush func()) *Listener {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Listener{
		idx:      idx,
		debounce: debounce,
		onFlush:  onFlush,
		upserts:  make(map[string]struct{}),
		deletes:  make(map[string]struct{}),
	}
}

// FileChanged implements source.ChangeListener.
func (l *Listener) FileChanged(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.upserts[path] = struct{}{}
	delete(l.deletes, path)
	l.reschedule()
}

// FileRemoved implements source.ChangeListener.
func (l *Listener) FileRemoved(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.deletes[path] = struct{}{}
	delete(l.upserts, path)
	l.reschedule()
}

// reschedule restarts the debounce window. Callers hold mu.
func (l *Listener) reschedule() {
	if l.timer != nil {
		l.timer.Stop()
	}
	l.timer = time.AfterFunc(l.debounce, func() {
		l.Flush(context.Background())
	})
}

// Pending reports the sizes of the unflushed sets.
func (l *Listener) Pending() (upserts, deletes int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.upserts), len(l.deletes)
}

// Flush synchronously indexes and deletes everything pending. The pending
// sets are swapped out and the timer cleared before any work runs, so
// events arriving during the flush open a fresh debounce window instead of
// being lost. Deletions and upserts touch disjoint paths and run
// concurrently; per-path failures are logged and skipped.
func (l *Listener) Flush(ctx context.Context) {
	l.mu.Lock()
	upserts := setToSlice(l.upserts)
	deletes := setToSlice(l.deletes)
	l.upserts = make(map[string]struct{})
	l.deletes = make(map[string]struct{})
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
	l.mu.Unlock()

	if len(upserts) == 0 && len(deletes) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if len(deletes) == 0 {
			return nil
		}
		if err := l.idx.DeleteDocuments(gctx, deletes); err != nil {
			slog.Warn("index: flushing deletions failed",
				"count", len(deletes), "error", err)
		}
		return nil
	})
	g.Go(func() error {
		if len(upserts) == 0 {
			return nil
		}
		paths, err := l.pathSet(gctx, upserts)
		if err != nil {
			slog.Warn("index: loading corpus paths failed", "error", err)
		}
		for _, p := range upserts {
			if err := gctx.Err(); err != nil {
				return err
			}
			doc, err := l.idx.source.Read(gctx, p)
			if err != nil {
				// Gone again before the flush reached it, or unreadable.
				slog.Warn("index: reading changed document failed", "path", p, "error", err)
				continue
			}
			if err := l.idx.IndexDocument(gctx, doc, paths); err != nil {
				slog.Warn("index: document skipped", "path", p, "error", err)
			}
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		slog.Warn("index: flush interrupted", "error", err)
		return
	}

	slog.Debug("index: flushed changes", "upserts", len(upserts), "deletes", len(deletes))
	if l.onFlush != nil {
		l.onFlush()
	}
}

// pathSet builds the link resolver from the indexed corpus plus the paths
// about to join it.
func (l *Listener) pathSet(ctx context.Context, adding []string) (*PathSet, error) {
	indexed, err := l.idx.store.ListIndexedPaths(ctx)
	if err != nil {
		return NewPathSet(adding), err
	}
	ps := NewPathSet(indexed)
	for _, p := range adding {
		ps.Add(p)
	}
	return ps, nil
}

// Close stops the pending timer without flushing. Anything unflushed is
// picked up by the next reconciliation.
func (l *Listener) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
