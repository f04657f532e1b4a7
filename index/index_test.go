package index

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/quillforge/lodestone/graph"
	"github.com/quillforge/lodestone/provider"
	"github.com/quillforge/lodestone/source"
	"github.com/quillforge/lodestone/store"
)

const testDim = 32

func newTestIndexer(t *testing.T, embedder provider.Embedder) (*Indexer, *store.Store, string) {
	t.Helper()
	root := t.TempDir()
	st, err := store.New(filepath.Join(t.TempDir(), "index.db"), testDim)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	src, err := source.NewDir(root, nil)
	if err != nil {
		t.Fatalf("source.NewDir: %v", err)
	}
	idx := New(src, st, embedder, Config{Workers: 2, EmbeddingModel: "local"})
	return idx, st, root
}

func writeVaultFile(t *testing.T, root, rel, content string) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

// bumpMtime moves a file's mtime forward so change detection sees it.
func bumpMtime(t *testing.T, root, rel string, d time.Duration) {
	t.Helper()
	abs := filepath.Join(root, filepath.FromSlash(rel))
	when := time.Now().Add(d)
	if err := os.Chtimes(abs, when, when); err != nil {
		t.Fatalf("chtimes %s: %v", rel, err)
	}
}

func indexedPaths(t *testing.T, st *store.Store) []string {
	t.Helper()
	paths, err := st.ListIndexedPaths(context.Background())
	if err != nil {
		t.Fatalf("ListIndexedPaths: %v", err)
	}
	sort.Strings(paths)
	return paths
}

func TestIndexAll(t *testing.T) {
	idx, st, root := newTestIndexer(t, provider.NewLocal(testDim))
	writeVaultFile(t, root, "notes/a.md", "# Alpha\n\nLinks to [[b]] with #focus tag.")
	writeVaultFile(t, root, "notes/b.md", "# Beta\n\nPlain content here.")
	writeVaultFile(t, root, "c.txt", "top level text file")

	summary, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatalf("IndexAll: %v", err)
	}
	if summary.Scanned != 3 || summary.Indexed != 3 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	want := []string{"c.txt", "notes/a.md", "notes/b.md"}
	if got := indexedPaths(t, st); len(got) != 3 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] {
		t.Fatalf("indexed paths = %v, want %v", got, want)
	}

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Documents != 3 || stats.Chunks < 3 || stats.Embeddings < 3 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.GraphNodes == 0 || stats.GraphEdges == 0 {
		t.Errorf("graph not populated: %+v", stats)
	}

	builtAt, err := st.GetState(context.Background(), StateIndexBuiltAt)
	if err != nil || builtAt == "" {
		t.Errorf("index_built_at = %q, %v", builtAt, err)
	}

	// The wiki link and tag became graph relations.
	related, err := graph.New(st).RelatedPaths(context.Background(), "notes/a.md", 1)
	if err != nil {
		t.Fatalf("RelatedPaths: %v", err)
	}
	if len(related) != 1 || related[0] != "notes/b.md" {
		t.Errorf("related = %v, want [notes/b.md]", related)
	}
}

func TestIndexAllIdempotent(t *testing.T) {
	idx, st, root := newTestIndexer(t, nil)
	writeVaultFile(t, root, "a.md", "# A\n\nsome content")
	writeVaultFile(t, root, "b.md", "# B\n\nother content")

	for i := 0; i < 2; i++ {
		if _, err := idx.IndexAll(context.Background()); err != nil {
			t.Fatalf("IndexAll #%d: %v", i+1, err)
		}
	}

	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Documents != 2 || stats.Chunks != 2 {
		t.Errorf("reindex accreted rows: %+v", stats)
	}
}

func TestIndexAllSkipsUnreadable(t *testing.T) {
	idx, st, root := newTestIndexer(t, nil)
	writeVaultFile(t, root, "good.md", "# Good\n\nfine content")
	writeVaultFile(t, root, "broken.pdf", "not actually a pdf")

	summary, err := idx.IndexAll(context.Background())
	if err != nil {
		t.Fatalf("IndexAll: %v", err)
	}
	if summary.Indexed != 1 || summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if got := indexedPaths(t, st); len(got) != 1 || got[0] != "good.md" {
		t.Errorf("indexed paths = %v", got)
	}
}

func TestIndexAllWithoutEmbedder(t *testing.T) {
	idx, st, root := newTestIndexer(t, nil)
	writeVaultFile(t, root, "a.md", "content without vectors")

	if _, err := idx.IndexAll(context.Background()); err != nil {
		t.Fatalf("IndexAll: %v", err)
	}
	stats, err := st.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Documents != 1 || stats.Embeddings != 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestIndexAllCancelled(t *testing.T) {
	idx, _, root := newTestIndexer(t, nil)
	writeVaultFile(t, root, "a.md", "content")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := idx.IndexAll(ctx); err == nil {
		t.Error("IndexAll with a cancelled context succeeded")
	}
}

func TestDeleteDocuments(t *testing.T) {
	idx, st, root := newTestIndexer(t, nil)
	writeVaultFile(t, root, "keep.md", "# Keep")
	writeVaultFile(t, root, "drop.md", "# Drop")
	if _, err := idx.IndexAll(context.Background()); err != nil {
		t.Fatalf("IndexAll: %v", err)
	}

	if err := idx.DeleteDocuments(context.Background(), []string{"drop.md"}); err != nil {
		t.Fatalf("DeleteDocuments: %v", err)
	}
	if got := indexedPaths(t, st); len(got) != 1 || got[0] != "keep.md" {
		t.Errorf("indexed paths = %v, want [keep.md]", got)
	}
	if err := idx.DeleteDocuments(context.Background(), nil); err != nil {
		t.Errorf("DeleteDocuments(nil) = %v", err)
	}
}

func TestCheckChanges(t *testing.T) {
	idx, st, root := newTestIndexer(t, nil)
	ctx := context.Background()
	writeVaultFile(t, root, "a.md", "# A\n\noriginal words")
	writeVaultFile(t, root, "b.md", "# B\n\nstable words")
	if _, err := idx.IndexAll(ctx); err != nil {
		t.Fatalf("IndexAll: %v", err)
	}

	// Nothing moved: a no-op run.
	res, err := idx.CheckChanges(ctx)
	if err != nil {
		t.Fatalf("CheckChanges: %v", err)
	}
	if res.Changed != 0 || res.Deleted != 0 || res.Touched != 0 {
		t.Fatalf("clean check = %+v", res)
	}

	// Edit one, add one, remove one.
	writeVaultFile(t, root, "a.md", "# A\n\nrewritten words")
	bumpMtime(t, root, "a.md", 2*time.Second)
	writeVaultFile(t, root, "c.md", "# C\n\nbrand new")
	if err := os.Remove(filepath.Join(root, "b.md")); err != nil {
		t.Fatalf("remove: %v", err)
	}

	res, err = idx.CheckChanges(ctx)
	if err != nil {
		t.Fatalf("CheckChanges: %v", err)
	}
	if res.Changed != 2 || res.Deleted != 1 {
		t.Fatalf("check after edits = %+v", res)
	}
	if got := indexedPaths(t, st); len(got) != 2 || got[0] != "a.md" || got[1] != "c.md" {
		t.Fatalf("indexed paths = %v, want [a.md c.md]", got)
	}

	// Timestamp-only touch: one read, no reindex, and the refreshed mtime
	// makes the following check fully clean.
	bumpMtime(t, root, "a.md", 4*time.Second)
	res, err = idx.CheckChanges(ctx)
	if err != nil {
		t.Fatalf("CheckChanges: %v", err)
	}
	if res.Changed != 0 || res.Touched != 1 {
		t.Fatalf("check after touch = %+v", res)
	}

	res, err = idx.CheckChanges(ctx)
	if err != nil {
		t.Fatalf("CheckChanges: %v", err)
	}
	if res.Changed != 0 || res.Touched != 0 || res.Deleted != 0 {
		t.Fatalf("check after refresh = %+v", res)
	}
}
