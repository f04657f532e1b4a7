package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath, 4) // dim=4 for test vectors
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleMeta(path string) DocMeta {
	return DocMeta{
		ID:          path,
		Path:        path,
		Type:        "markdown",
		Title:       strings.TrimSuffix(filepath.Base(path), ".md"),
		Mtime:       1700000000000,
		Size:        64,
		ContentHash: "abc123",
		Tags:        `["notes"]`,
	}
}

// indexDoc writes a single-chunk document through ReplaceDocument, with an
// optional embedding vector and a document graph node.
func indexDoc(t *testing.T, s *Store, path, content string, vec []float32) {
	t.Helper()
	doc := sampleMeta(path)
	chunks := []Chunk{{
		DocID:       path,
		Index:       0,
		Title:       doc.Title,
		Mtime:       doc.Mtime,
		Content:     content,
		StartOffset: 0,
		EndOffset:   len(content),
	}}
	var vectors [][]float32
	if vec != nil {
		vectors = [][]float32{vec}
	}
	nodes := []GraphNode{{ID: path, Type: "document", Label: path}}
	if err := s.ReplaceDocument(context.Background(), doc, chunks, vectors, "test-model", nodes, nil); err != nil {
		t.Fatalf("indexing %s: %v", path, err)
	}
}

// ---------------------------------------------------------------------------
// Schema / construction
// ---------------------------------------------------------------------------

func TestNew(t *testing.T) {
	s := newTestStore(t)
	if s.EmbeddingDim() != 4 {
		t.Fatalf("expected embedding dim 4, got %d", s.EmbeddingDim())
	}
	if s.DB() == nil {
		t.Fatal("expected non-nil *sql.DB")
	}
}

func TestNewCreatesParentDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sub", "dir")
	dbPath := filepath.Join(dir, "test.db")
	s, err := New(dbPath, 4)
	if err != nil {
		t.Fatalf("creating store in nested dir: %v", err)
	}
	s.Close()
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	// New already migrated; a second run must be a no-op.
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("re-running migrations: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Document metadata
// ---------------------------------------------------------------------------

func TestUpsertAndGetDocMeta(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleMeta("notes/alpha.md")
	if err := s.UpsertDocMeta(ctx, doc); err != nil {
		t.Fatalf("upserting: %v", err)
	}

	got, err := s.GetDocMeta(ctx, "notes/alpha.md")
	if err != nil {
		t.Fatalf("getting: %v", err)
	}
	if got.Path != doc.Path {
		t.Errorf("path: got %q, want %q", got.Path, doc.Path)
	}
	if got.Title != "alpha" {
		t.Errorf("title: got %q, want %q", got.Title, "alpha")
	}
	if got.Mtime != doc.Mtime {
		t.Errorf("mtime: got %d, want %d", got.Mtime, doc.Mtime)
	}
	if got.Tags != `["notes"]` {
		t.Errorf("tags did not round-trip: %q", got.Tags)
	}

	// Upsert again with a new hash; the row must be refreshed, not duplicated.
	doc.ContentHash = "def456"
	if err := s.UpsertDocMeta(ctx, doc); err != nil {
		t.Fatalf("re-upserting: %v", err)
	}
	got, err = s.GetDocMeta(ctx, "notes/alpha.md")
	if err != nil {
		t.Fatalf("getting after re-upsert: %v", err)
	}
	if got.ContentHash != "def456" {
		t.Errorf("content hash: got %q, want %q", got.ContentHash, "def456")
	}
}

func TestGetDocMetaNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetDocMeta(context.Background(), "missing.md")
	if err != sql.ErrNoRows {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestMetaByPaths(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	indexDoc(t, s, "notes/a.md", "alpha content", nil)
	indexDoc(t, s, "notes/b.md", "beta content", nil)

	got, err := s.MetaByPaths(ctx, []string{"notes/a.md", "notes/b.md", "notes/missing.md"})
	if err != nil {
		t.Fatalf("meta by paths: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if _, ok := got["notes/missing.md"]; ok {
		t.Error("unindexed path must be absent from the result")
	}
	if got["notes/a.md"].Mtime != 1700000000000 {
		t.Errorf("mtime not returned: %+v", got["notes/a.md"])
	}
}

func TestListIndexedPaths(t *testing.T) {
	s := newTestStore(t)
	indexDoc(t, s, "a.md", "one", nil)
	indexDoc(t, s, "b.md", "two", nil)

	paths, err := s.ListIndexedPaths(context.Background())
	if err != nil {
		t.Fatalf("listing paths: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %v", paths)
	}
}

// ---------------------------------------------------------------------------
// ReplaceDocument
// ---------------------------------------------------------------------------

func TestReplaceDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleMeta("notes/long.md")
	chunks := []Chunk{
		{DocID: doc.ID, Index: 0, Title: doc.Title, Content: "first chunk text", StartOffset: 0, EndOffset: 16},
		{DocID: doc.ID, Index: 1, Title: doc.Title, Content: "second chunk text", StartOffset: 10, EndOffset: 27},
	}
	if err := s.ReplaceDocument(ctx, doc, chunks, nil, "", nil, nil); err != nil {
		t.Fatalf("replacing document: %v", err)
	}

	got, err := s.GetChunks(ctx, doc.ID)
	if err != nil {
		t.Fatalf("getting chunks: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(got))
	}
	if got[0].Content != "first chunk text" || got[1].Content != "second chunk text" {
		t.Errorf("chunk contents wrong: %+v", got)
	}
	if got[0].FTSContent == "" {
		t.Error("fts content must be derived when not supplied")
	}
	if got[1].StartOffset != 10 || got[1].EndOffset != 27 {
		t.Errorf("offsets not stored: %+v", got[1])
	}
}

func TestReplaceDocumentReplacesChunks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	indexDoc(t, s, "notes/doc.md", "original content here", nil)

	doc := sampleMeta("notes/doc.md")
	doc.ContentHash = "v2"
	chunks := []Chunk{{DocID: doc.ID, Index: 0, Content: "rewritten", StartOffset: 0, EndOffset: 9}}
	if err := s.ReplaceDocument(ctx, doc, chunks, nil, "", nil, nil); err != nil {
		t.Fatalf("reindexing: %v", err)
	}

	got, err := s.GetChunks(ctx, doc.ID)
	if err != nil {
		t.Fatalf("getting chunks: %v", err)
	}
	if len(got) != 1 || got[0].Content != "rewritten" {
		t.Fatalf("chunks not replaced: %+v", got)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Chunks != 1 {
		t.Errorf("stale chunk rows left behind: %d", stats.Chunks)
	}
}

func TestReplaceDocumentWithVectors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	indexDoc(t, s, "notes/vec.md", "content with a vector", []float32{1, 0, 0, 0})

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Embeddings != 1 {
		t.Fatalf("expected 1 embedding, got %d", stats.Embeddings)
	}

	// Reindex without vectors: the stale embedding must disappear.
	indexDoc(t, s, "notes/vec.md", "content without a vector", nil)
	stats, err = s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Embeddings != 0 {
		t.Fatalf("stale embedding left behind: %d", stats.Embeddings)
	}
}

func TestIndexedDocsCounter(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	indexDoc(t, s, "a.md", "one", nil)
	indexDoc(t, s, "b.md", "two", nil)

	v, err := s.GetState(ctx, StateIndexedDocs)
	if err != nil {
		t.Fatalf("reading state: %v", err)
	}
	if v != "2" {
		t.Errorf("indexed_docs: got %q, want %q", v, "2")
	}

	if err := s.DeleteDocuments(ctx, []string{"a.md"}); err != nil {
		t.Fatalf("deleting: %v", err)
	}
	v, err = s.GetState(ctx, StateIndexedDocs)
	if err != nil {
		t.Fatalf("reading state: %v", err)
	}
	if v != "1" {
		t.Errorf("indexed_docs after delete: got %q, want %q", v, "1")
	}
}

// ---------------------------------------------------------------------------
// Deletion
// ---------------------------------------------------------------------------

func TestDeleteDocuments(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := sampleMeta("notes/gone.md")
	chunks := []Chunk{{DocID: doc.ID, Index: 0, Content: "to be removed", StartOffset: 0, EndOffset: 13}}
	nodes := []GraphNode{
		{ID: "notes/gone.md", Type: "document", Label: "notes/gone.md"},
		{ID: "tag:alpha", Type: "tag", Label: "alpha"},
	}
	edges := []GraphEdge{
		{ID: "e1", From: "notes/gone.md", To: "tag:alpha", Type: "tagged", Weight: 1},
	}
	if err := s.ReplaceDocument(ctx, doc, chunks, [][]float32{{1, 0, 0, 0}}, "m", nodes, edges); err != nil {
		t.Fatalf("indexing: %v", err)
	}
	if err := s.RecordOpen(ctx, doc.ID); err != nil {
		t.Fatalf("recording open: %v", err)
	}

	indexDoc(t, s, "notes/stays.md", "sibling that must survive", nil)

	if err := s.DeleteDocuments(ctx, []string{"notes/gone.md"}); err != nil {
		t.Fatalf("deleting: %v", err)
	}

	if _, err := s.GetDocMeta(ctx, "notes/gone.md"); err != sql.ErrNoRows {
		t.Errorf("meta must be gone, got err=%v", err)
	}
	if got, _ := s.GetChunks(ctx, "notes/gone.md"); len(got) != 0 {
		t.Errorf("chunks must be gone, got %d", len(got))
	}
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Embeddings != 0 {
		t.Errorf("embeddings must be gone, got %d", stats.Embeddings)
	}
	if st, _ := s.GetDocStats(ctx, []string{"notes/gone.md"}); len(st) != 0 {
		t.Error("doc statistics must be gone")
	}

	// The document node and its outgoing edges go; the tag node persists.
	if nodes, _ := s.GraphNodesByIDs(ctx, []string{"notes/gone.md"}); len(nodes) != 0 {
		t.Error("document graph node must be gone")
	}
	if edges, _ := s.GraphEdgesFrom(ctx, []string{"notes/gone.md"}); len(edges) != 0 {
		t.Error("outgoing edges must be gone")
	}
	if nodes, _ := s.GraphNodesByIDs(ctx, []string{"tag:alpha"}); len(nodes) != 1 {
		t.Error("tag node must persist after document deletion")
	}

	// Sibling untouched.
	if _, err := s.GetDocMeta(ctx, "notes/stays.md"); err != nil {
		t.Errorf("sibling document lost: %v", err)
	}
}

func TestDeleteDocumentsMissingPath(t *testing.T) {
	s := newTestStore(t)
	if err := s.DeleteDocuments(context.Background(), []string{"never/indexed.md"}); err != nil {
		t.Fatalf("deleting unknown path must not fail: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Graph rows
// ---------------------------------------------------------------------------

func TestUpsertGraphRefreshesEdges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	nodes := []GraphNode{
		{ID: "a.md", Type: "document", Label: "a.md"},
		{ID: "tag:x", Type: "tag", Label: "x"},
		{ID: "tag:y", Type: "tag", Label: "y"},
	}
	edges := []GraphEdge{
		{ID: "e1", From: "a.md", To: "tag:x", Type: "tagged", Weight: 1},
	}
	if err := s.UpsertGraph(ctx, "a.md", nodes, edges); err != nil {
		t.Fatalf("upserting graph: %v", err)
	}

	// Second upsert replaces the edge set: the old edge must not survive.
	edges = []GraphEdge{
		{ID: "e2", From: "a.md", To: "tag:y", Type: "tagged", Weight: 1},
	}
	if err := s.UpsertGraph(ctx, "a.md", nodes, edges); err != nil {
		t.Fatalf("re-upserting graph: %v", err)
	}

	got, err := s.GraphEdgesFrom(ctx, []string{"a.md"})
	if err != nil {
		t.Fatalf("reading edges: %v", err)
	}
	if len(got) != 1 || got[0].To != "tag:y" {
		t.Fatalf("edges not refreshed: %+v", got)
	}
}

func TestGraphEdgesTouching(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	nodes := []GraphNode{
		{ID: "a.md", Type: "document", Label: "a.md"},
		{ID: "b.md", Type: "document", Label: "b.md"},
	}
	edges := []GraphEdge{
		{ID: "e1", From: "a.md", To: "b.md", Type: "references", Weight: 1},
	}
	if err := s.UpsertGraph(ctx, "a.md", nodes, edges); err != nil {
		t.Fatalf("upserting: %v", err)
	}

	got, err := s.GraphEdgesTouching(ctx, []string{"b.md"})
	if err != nil {
		t.Fatalf("touching: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected incoming edge to be visible, got %+v", got)
	}
}

// ---------------------------------------------------------------------------
// Usage statistics and state
// ---------------------------------------------------------------------------

func TestRecordOpen(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.RecordOpen(ctx, "doc.md"); err != nil {
		t.Fatalf("first open: %v", err)
	}
	if err := s.RecordOpen(ctx, "doc.md"); err != nil {
		t.Fatalf("second open: %v", err)
	}

	stats, err := s.GetDocStats(ctx, []string{"doc.md"})
	if err != nil {
		t.Fatalf("getting stats: %v", err)
	}
	st, ok := stats["doc.md"]
	if !ok {
		t.Fatal("expected a statistics row")
	}
	if st.OpenCount != 2 {
		t.Errorf("open count: got %d, want 2", st.OpenCount)
	}
	if st.LastOpenTs == 0 {
		t.Error("last open timestamp not set")
	}
}

func TestStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if v, err := s.GetState(ctx, "missing"); err != nil || v != "" {
		t.Fatalf("missing key: got (%q, %v), want (\"\", nil)", v, err)
	}

	if err := s.SetState(ctx, StateIndexBuiltAt, "2026-01-02T15:04:05Z"); err != nil {
		t.Fatalf("setting state: %v", err)
	}
	if err := s.SetState(ctx, StateIndexBuiltAt, "2026-02-03T00:00:00Z"); err != nil {
		t.Fatalf("overwriting state: %v", err)
	}

	v, err := s.GetState(ctx, StateIndexBuiltAt)
	if err != nil {
		t.Fatalf("getting state: %v", err)
	}
	if v != "2026-02-03T00:00:00Z" {
		t.Errorf("state: got %q", v)
	}
}

// ---------------------------------------------------------------------------
// Serialization helpers
// ---------------------------------------------------------------------------

func TestSerializeRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3e-7, 42}
	out := deserializeFloat32(serializeFloat32(in))
	if len(out) != len(in) {
		t.Fatalf("length: got %d, want %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Errorf("index %d: got %v, want %v", i, out[i], in[i])
		}
	}
}
