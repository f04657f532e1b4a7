package retrieval

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/quillforge/lodestone/graph"
	"github.com/quillforge/lodestone/normalize"
	"github.com/quillforge/lodestone/provider"
	"github.com/quillforge/lodestone/store"
)

const testDim = 32

type fakeReranker struct {
	fn func(query string, docs []string) ([]float64, error)
}

func (f *fakeReranker) Rerank(_ context.Context, query string, docs []string) ([]float64, error) {
	return f.fn(query, docs)
}

// favorLast scores documents by their incoming position, so the last one
// normalizes to 1.0 and visibly flips a near-tie.
func favorLast(_ string, docs []string) ([]float64, error) {
	scores := make([]float64, len(docs))
	for i := range scores {
		scores[i] = float64(i)
	}
	return scores, nil
}

func newTestEngine(t *testing.T, embedder provider.Embedder, reranker provider.Reranker) (*Engine, *store.Store) {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "index.db"), testDim)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s, graph.New(s), embedder, reranker, DefaultConfig()), s
}

func indexDoc(t *testing.T, s *store.Store, path, title, content string, rels graph.Rels) {
	t.Helper()
	ctx := context.Background()
	vecs, err := provider.NewLocal(testDim).Embed(ctx, []string{content})
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	doc := store.DocMeta{
		ID:    normalize.Fold(path),
		Path:  path,
		Type:  "markdown",
		Title: title,
	}
	chunks := []store.Chunk{{Title: title, Content: content}}
	nodes, edges := graph.Build(doc, rels)
	if err := s.ReplaceDocument(ctx, doc, chunks, vecs, "local", nodes, edges); err != nil {
		t.Fatalf("ReplaceDocument(%s): %v", path, err)
	}
}

func TestSearchFindsKeyword(t *testing.T) {
	e, s := newTestEngine(t, provider.NewLocal(testDim), nil)
	indexDoc(t, s, "notes/go.md", "Go Patterns",
		"A goroutine communicates over a channel instead of sharing memory.", graph.Rels{})
	indexDoc(t, s, "notes/cooking.md", "Pasta",
		"Boil the water before salting it generously.", graph.Rels{})
	indexDoc(t, s, "notes/travel.md", "Packing",
		"Rolling clothes saves more space than folding.", graph.Rels{})

	results, trace, err := e.Search(context.Background(), "goroutine channel", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results")
	}
	top := results[0]
	if top.Path != "notes/go.md" {
		t.Fatalf("top result = %s, want notes/go.md", top.Path)
	}
	if top.Title != "Go Patterns" {
		t.Errorf("title = %q", top.Title)
	}
	if top.DocID != normalize.Fold("notes/go.md") {
		t.Errorf("doc id = %q", top.DocID)
	}
	if !strings.Contains(top.Snippet, "goroutine") {
		t.Errorf("snippet %q does not show the match", top.Snippet)
	}
	hasSource := false
	for _, src := range top.Sources {
		if src == "fulltext" {
			hasSource = true
		}
	}
	if !hasSource {
		t.Errorf("sources = %v, want fulltext among them", top.Sources)
	}
	if trace.FulltextHits == 0 {
		t.Errorf("trace fulltext hits = 0")
	}
	if trace.VectorHits == 0 {
		t.Errorf("trace vector hits = 0 with an embedder configured")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	results, trace, err := e.Search(context.Background(), "   ", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %v, want none", results)
	}
	if trace == nil {
		t.Error("nil trace")
	}
}

func TestSearchNilEmbedderDegrades(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	indexDoc(t, s, "a.md", "A", "ledger reconciliation steps", graph.Rels{})

	results, trace, err := e.Search(context.Background(), "ledger", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
	if trace.VectorHits != 0 {
		t.Errorf("vector hits = %d without an embedder", trace.VectorHits)
	}
}

func TestSearchFolderScope(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	indexDoc(t, s, "work/standup.md", "Standup", "meeting notes from Monday", graph.Rels{})
	indexDoc(t, s, "personal/diary.md", "Diary", "meeting a friend for coffee", graph.Rels{})

	results, _, err := e.Search(context.Background(), "meeting",
		Options{Scope: store.Scope{Folder: "work"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results in scope")
	}
	for _, r := range results {
		if !strings.HasPrefix(r.Path, "work/") {
			t.Errorf("out-of-scope result %s", r.Path)
		}
	}
}

func TestSearchDenyScope(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	indexDoc(t, s, "a.md", "A", "shared keyword runway", graph.Rels{})
	indexDoc(t, s, "b.md", "B", "shared keyword runway", graph.Rels{})

	results, _, err := e.Search(context.Background(), "runway",
		Options{Scope: store.Scope{DenyIDs: []string{normalize.Fold("a.md")}}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, r := range results {
		if r.Path == "a.md" {
			t.Fatal("denied document came back")
		}
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1", len(results))
	}
}

func TestSearchMetaFilenameMatch(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	indexDoc(t, s, "projects/zanzibar.md", "Trip Plan",
		"Checklist for the ferry and the spice farm tour.", graph.Rels{})
	indexDoc(t, s, "projects/other.md", "Other",
		"Unrelated material entirely.", graph.Rels{})

	results, _, err := e.Search(context.Background(), "zanzibar", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("filename match not found")
	}
	top := results[0]
	if top.Path != "projects/zanzibar.md" {
		t.Fatalf("top result = %s", top.Path)
	}
	if top.ChunkID != 0 {
		t.Errorf("ChunkID = %d, want 0 for a meta-only hit", top.ChunkID)
	}
	hasMeta := false
	for _, src := range top.Sources {
		if src == "meta" {
			hasMeta = true
		}
	}
	if !hasMeta {
		t.Errorf("sources = %v, want meta among them", top.Sources)
	}
}

func TestSearchFrequencyBoost(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()
	indexDoc(t, s, "first.md", "First", "sprint retrospective talking points", graph.Rels{})
	indexDoc(t, s, "second.md", "Second", "sprint retrospective talking points", graph.Rels{})

	secondID := normalize.Fold("second.md")
	for i := 0; i < 3; i++ {
		if err := s.RecordOpen(ctx, secondID); err != nil {
			t.Fatalf("RecordOpen: %v", err)
		}
	}
	e.Invalidate()

	results, _, err := e.Search(ctx, "retrospective", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Path != "second.md" {
		t.Fatalf("top result = %s, want the frequently opened second.md", results[0].Path)
	}
	if results[0].OpenCount != 3 {
		t.Errorf("open count = %d, want 3", results[0].OpenCount)
	}
}

func TestSearchGraphProximityBoost(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	indexDoc(t, s, "hub.md", "Hub", "index of ongoing efforts",
		graph.Rels{DocPaths: []string{"work/target.md"}})
	indexDoc(t, s, "work/decoy.md", "Decoy", "quarterly budget numbers", graph.Rels{})
	indexDoc(t, s, "work/target.md", "Target", "quarterly budget numbers", graph.Rels{})

	// Without an active document the two candidates stay in insertion order.
	results, _, err := e.Search(context.Background(), "budget", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}

	// With hub.md active, its linked neighbor outranks the decoy.
	results, _, err = e.Search(context.Background(), "budget",
		Options{ActivePath: "hub.md"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if results[0].Path != "work/target.md" {
		t.Fatalf("top result = %s, want the graph neighbor work/target.md", results[0].Path)
	}
}

func TestSearchRerankFlipsNearTie(t *testing.T) {
	e, s := newTestEngine(t, nil, &fakeReranker{fn: favorLast})
	indexDoc(t, s, "one.md", "One", "migration checklist draft", graph.Rels{})
	indexDoc(t, s, "two.md", "Two", "migration checklist draft", graph.Rels{})

	results, trace, err := e.Search(context.Background(), "migration", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !trace.Reranked {
		t.Fatal("trace.Reranked = false")
	}
	if len(results) != 2 || results[0].Path != "two.md" {
		t.Fatalf("results = %v, want two.md promoted", docIDs(results))
	}
}

func TestSearchRerankFailureKeepsOrder(t *testing.T) {
	failing := &fakeReranker{fn: func(string, []string) ([]float64, error) {
		return nil, errors.New("model offline")
	}}
	e, s := newTestEngine(t, nil, failing)
	indexDoc(t, s, "one.md", "One", "migration checklist draft", graph.Rels{})
	indexDoc(t, s, "two.md", "Two", "migration checklist draft", graph.Rels{})

	results, trace, err := e.Search(context.Background(), "migration", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if trace.Reranked {
		t.Error("trace.Reranked = true despite the failure")
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
}

func TestSearchCaching(t *testing.T) {
	e, s := newTestEngine(t, nil, nil)
	ctx := context.Background()
	indexDoc(t, s, "a.md", "A", "cached answer material", graph.Rels{})

	first, trace1, err := e.Search(ctx, "cached answer", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if trace1.Cached {
		t.Fatal("first search reported a cache hit")
	}

	second, trace2, err := e.Search(ctx, "cached answer", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !trace2.Cached {
		t.Fatal("second search missed the cache")
	}
	if len(second) != len(first) || second[0].Path != first[0].Path {
		t.Fatalf("cached results differ: %v vs %v", docIDs(second), docIDs(first))
	}

	// Mutating a returned slice must not poison the cache.
	second[0].Score = -1
	again, _, err := e.Search(ctx, "cached answer", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if again[0].Score == -1 {
		t.Fatal("caller mutation leaked into the cache")
	}

	// A different topK is a different request.
	_, traceK, err := e.Search(ctx, "cached answer", Options{TopK: 5})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if traceK.Cached {
		t.Error("different topK reused the cached entry")
	}

	e.Invalidate()
	_, trace3, err := e.Search(ctx, "cached answer", Options{})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if trace3.Cached {
		t.Fatal("invalidated entry still served")
	}
}

func TestSearchCacheDisabled(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "index.db"), testDim)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	cfg := DefaultConfig()
	cfg.CacheSize = -1
	e := New(s, graph.New(s), nil, nil, cfg)
	indexDoc(t, s, "a.md", "A", "plain material", graph.Rels{})

	for i := 0; i < 2; i++ {
		_, trace, err := e.Search(context.Background(), "plain", Options{})
		if err != nil {
			t.Fatalf("Search: %v", err)
		}
		if trace.Cached {
			t.Fatal("cache hit with caching disabled")
		}
	}
}
