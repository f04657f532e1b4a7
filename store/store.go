// Package store wraps the single-file SQLite database holding document
// metadata, chunks, the full-text index, embeddings, the knowledge graph,
// usage statistics, and key/value index state.
//
// All writes that belong to one document run inside one transaction, so a
// reader never observes a document with stale chunks but fresh metadata.
package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/quillforge/lodestone/normalize"
)

// Index state keys.
const (
	StateIndexBuiltAt = "index_built_at"
	StateIndexedDocs  = "indexed_docs"
)

// DocMeta represents a row in the doc_meta table. ID is the stable document
// identity; the indexing pipeline uses the corpus-relative path.
type DocMeta struct {
	ID          string `json:"id"`
	Path        string `json:"path"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	Mtime       int64  `json:"mtime"` // unix milliseconds
	Size        int64  `json:"size"`
	ContentHash string `json:"content_hash"`
	Tags        string `json:"tags,omitempty"` // JSON array, opaque
	Summary     string `json:"summary,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// Chunk represents a row in the doc_chunk table. FTSContent is the folded
// full-text form of Content; ReplaceDocument derives it when empty.
type Chunk struct {
	ChunkID     int64  `json:"chunk_id"`
	DocID       string `json:"doc_id"`
	Index       int    `json:"chunk_index"`
	Title       string `json:"title"`
	Mtime       int64  `json:"mtime"`
	Content     string `json:"content"`
	FTSContent  string `json:"-"`
	StartOffset int    `json:"start_offset"`
	EndOffset   int    `json:"end_offset"`
}

// GraphNode represents a row in the graph_nodes table. Document nodes carry
// the document path as their label; tag/link/category nodes carry the name.
type GraphNode struct {
	ID         string `json:"id"`
	Type       string `json:"type"` // document|tag|link|category
	Label      string `json:"label"`
	Attributes string `json:"attributes,omitempty"` // JSON, opaque
}

// GraphEdge represents a row in the graph_edges table. IDs are a
// deterministic function of (from, to, type) so re-inserts are idempotent.
type GraphEdge struct {
	ID         string  `json:"id"`
	From       string  `json:"from_node_id"`
	To         string  `json:"to_node_id"`
	Type       string  `json:"type"` // references|tagged|categorized
	Weight     float64 `json:"weight"`
	Attributes string  `json:"attributes,omitempty"`
}

// DocStats represents a row in the doc_statistics table.
type DocStats struct {
	DocID      string `json:"doc_id"`
	LastOpenTs int64  `json:"last_open_ts"` // unix milliseconds
	OpenCount  int64  `json:"open_count"`
}

// Stats holds counts of key database objects.
type Stats struct {
	Documents  int `json:"documents"`
	Chunks     int `json:"chunks"`
	Embeddings int `json:"embeddings"`
	GraphNodes int `json:"graph_nodes"`
	GraphEdges int `json:"graph_edges"`
}

// Store wraps the SQLite database for all lodestone persistence.
type Store struct {
	db           *sql.DB
	embeddingDim int

	// Keyword-coverage boost factors for the fulltext and meta sub-searches.
	// Tuned heuristics, overridable through SetCoverageBoost.
	ftCoverage   float64
	metaCoverage float64
}

// New opens (or creates) a SQLite database at the given path and initialises
// the schema, including the FTS5 table and, on sqlite_vec builds, the vec0
// virtual table sized to embeddingDim.
func New(dbPath string, embeddingDim int) (*Store, error) {
	// Ensure parent directory exists
	dir := filepath.Dir(dbPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open(DriverName, dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Create schema
	if _, err := db.Exec(schemaSQL(embeddingDim)); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	// Connection pool settings for SQLite.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)

	s := &Store{
		db:           db,
		embeddingDim: embeddingDim,
		ftCoverage:   0.5,
		metaCoverage: 0.8,
	}

	// Run pending migrations.
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// EmbeddingDim returns the configured embedding dimension.
func (s *Store) EmbeddingDim() int {
	return s.embeddingDim
}

// SetCoverageBoost overrides the keyword-coverage boost factors applied by
// SearchFulltext and SearchMeta.
func (s *Store) SetCoverageBoost(fulltext, meta float64) {
	s.ftCoverage = fulltext
	s.metaCoverage = meta
}

// --- Document metadata ---

// UpsertDocMeta inserts or refreshes a document's metadata row.
func (s *Store) UpsertDocMeta(ctx context.Context, doc DocMeta) error {
	_, err := s.db.ExecContext(ctx, upsertDocMetaSQL, docMetaArgs(doc)...)
	return err
}

const upsertDocMetaSQL = `
	INSERT INTO doc_meta (id, path, type, title, mtime, size, content_hash, tags, summary)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		path = excluded.path,
		type = excluded.type,
		title = excluded.title,
		mtime = excluded.mtime,
		size = excluded.size,
		content_hash = excluded.content_hash,
		tags = excluded.tags,
		summary = COALESCE(excluded.summary, doc_meta.summary),
		updated_at = CURRENT_TIMESTAMP
`

func docMetaArgs(doc DocMeta) []interface{} {
	return []interface{}{
		doc.ID, doc.Path, doc.Type, doc.Title, doc.Mtime, doc.Size,
		doc.ContentHash, nullable(doc.Tags), nullable(doc.Summary),
	}
}

// GetDocMeta retrieves a document's metadata by ID.
func (s *Store) GetDocMeta(ctx context.Context, id string) (*DocMeta, error) {
	doc := &DocMeta{}
	var tags, summary sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, path, type, title, mtime, size, content_hash, tags, summary, created_at, updated_at
		FROM doc_meta WHERE id = ?
	`, id).Scan(&doc.ID, &doc.Path, &doc.Type, &doc.Title, &doc.Mtime, &doc.Size,
		&doc.ContentHash, &tags, &summary, &doc.CreatedAt, &doc.UpdatedAt)
	if err != nil {
		return nil, err
	}
	doc.Tags = tags.String
	doc.Summary = summary.String
	return doc, nil
}

// ListIndexedPaths returns the path of every indexed document.
func (s *Store) ListIndexedPaths(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT path FROM doc_meta")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// MetaByPaths returns the metadata rows for the given paths, keyed by path.
// Paths with no indexed document are simply absent from the result.
func (s *Store) MetaByPaths(ctx context.Context, paths []string) (map[string]DocMeta, error) {
	if len(paths) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, path, type, title, mtime, size, content_hash
		FROM doc_meta WHERE path IN (?` + repeatPlaceholders(len(paths)-1) + ")"

	args := make([]interface{}, len(paths))
	for i, p := range paths {
		args[i] = p
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]DocMeta, len(paths))
	for rows.Next() {
		var d DocMeta
		if err := rows.Scan(&d.ID, &d.Path, &d.Type, &d.Title, &d.Mtime, &d.Size, &d.ContentHash); err != nil {
			return nil, err
		}
		out[d.Path] = d
	}
	return out, rows.Err()
}

// --- Chunks ---

// GetChunks returns all chunks for a document in chunk order.
func (s *Store) GetChunks(ctx context.Context, docID string) ([]Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, doc_id, chunk_index, title, mtime, content_raw, content_fts_norm, start_offset, end_offset
		FROM doc_chunk WHERE doc_id = ? ORDER BY chunk_index
	`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		if err := rows.Scan(&c.ChunkID, &c.DocID, &c.Index, &c.Title, &c.Mtime,
			&c.Content, &c.FTSContent, &c.StartOffset, &c.EndOffset); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// --- Indexing transactions ---

// ReplaceDocument atomically writes one document's complete index state:
// metadata upsert, delete-then-reinsert of chunks, full-text rows and
// embeddings, graph refresh, and the indexed-docs counter. vectors runs
// parallel to chunks; nil entries (or a nil slice) mean no embedding.
func (s *Store) ReplaceDocument(ctx context.Context, doc DocMeta, chunks []Chunk, vectors [][]float32, embeddingModel string, nodes []GraphNode, edges []GraphEdge) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, upsertDocMetaSQL, docMetaArgs(doc)...); err != nil {
			return fmt.Errorf("upserting doc meta: %w", err)
		}

		if err := deleteDocDataTx(ctx, tx, []string{doc.ID}); err != nil {
			return fmt.Errorf("clearing previous index data: %w", err)
		}

		if err := insertChunksTx(ctx, tx, doc, chunks, vectors, embeddingModel); err != nil {
			return err
		}

		if err := upsertGraphTx(ctx, tx, doc.Path, nodes, edges); err != nil {
			return fmt.Errorf("refreshing graph: %w", err)
		}

		return refreshIndexedDocsTx(ctx, tx)
	})
}

func insertChunksTx(ctx context.Context, tx *sql.Tx, doc DocMeta, chunks []Chunk, vectors [][]float32, embeddingModel string) error {
	if len(chunks) == 0 {
		return nil
	}

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO doc_chunk (doc_id, chunk_index, title, mtime, content_raw, content_fts_norm, start_offset, end_offset)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer chunkStmt.Close()

	ftsStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunk_fts (rowid, content, title, path, doc_id)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer ftsStmt.Close()

	embStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO embedding (id, doc_id, chunk_id, chunk_index, embedding, embedding_model, embedding_len)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer embStmt.Close()

	ftsPath := normalize.FTSText(doc.Path)

	for i, c := range chunks {
		ftsContent := c.FTSContent
		if ftsContent == "" {
			ftsContent = normalize.FTSText(c.Content)
		}

		res, err := chunkStmt.ExecContext(ctx,
			doc.ID, c.Index, c.Title, c.Mtime, c.Content, ftsContent,
			c.StartOffset, c.EndOffset)
		if err != nil {
			return fmt.Errorf("inserting chunk %d: %w", c.Index, err)
		}
		chunkID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		if _, err := ftsStmt.ExecContext(ctx,
			chunkID, ftsContent, normalize.FTSText(c.Title), ftsPath, doc.ID); err != nil {
			return fmt.Errorf("inserting fts row for chunk %d: %w", c.Index, err)
		}

		if i >= len(vectors) || len(vectors[i]) == 0 {
			continue
		}
		blob := serializeFloat32(vectors[i])
		if _, err := embStmt.ExecContext(ctx,
			uuid.NewString(), doc.ID, chunkID, c.Index, blob, embeddingModel, len(vectors[i])); err != nil {
			return fmt.Errorf("inserting embedding for chunk %d: %w", c.Index, err)
		}
		if VectorIndexAvailable {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)", chunkID, blob); err != nil {
				return fmt.Errorf("inserting vec row for chunk %d: %w", c.Index, err)
			}
		}
	}
	return nil
}

// deleteDocDataTx removes all chunk, full-text, and embedding rows for the
// given document IDs. Metadata, statistics, and graph rows are untouched.
func deleteDocDataTx(ctx context.Context, tx *sql.Tx, docIDs []string) error {
	if len(docIDs) == 0 {
		return nil
	}
	ph := "(?" + repeatPlaceholders(len(docIDs)-1) + ")"
	args := make([]interface{}, len(docIDs))
	for i, id := range docIDs {
		args[i] = id
	}

	// FTS and vec rows are keyed by chunk id, so they go before doc_chunk.
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM chunk_fts WHERE rowid IN (SELECT chunk_id FROM doc_chunk WHERE doc_id IN "+ph+")", args...); err != nil {
		return err
	}
	if VectorIndexAvailable {
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM vec_chunks WHERE chunk_id IN (SELECT chunk_id FROM doc_chunk WHERE doc_id IN "+ph+")", args...); err != nil {
			return err
		}
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM embedding WHERE doc_id IN "+ph, args...); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		"DELETE FROM doc_chunk WHERE doc_id IN "+ph, args...); err != nil {
		return err
	}
	return nil
}

// DeleteDocuments removes the given documents entirely: metadata, chunks,
// full-text rows, embeddings, statistics, and each document's graph node and
// outgoing edges. Tag/link/category nodes persist even when orphaned, and
// edges pointing at a removed document are kept so the link heals if the
// document returns. One transaction covers the whole batch.
func (s *Store) DeleteDocuments(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		ph := "(?" + repeatPlaceholders(len(paths)-1) + ")"
		args := make([]interface{}, len(paths))
		for i, p := range paths {
			args[i] = p
		}

		rows, err := tx.QueryContext(ctx, "SELECT id FROM doc_meta WHERE path IN "+ph, args...)
		if err != nil {
			return err
		}
		var ids []string
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if err := deleteDocDataTx(ctx, tx, ids); err != nil {
			return err
		}

		if len(ids) > 0 {
			idPh := "(?" + repeatPlaceholders(len(ids)-1) + ")"
			idArgs := make([]interface{}, len(ids))
			for i, id := range ids {
				idArgs[i] = id
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM doc_statistics WHERE doc_id IN "+idPh, idArgs...); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx,
				"DELETE FROM doc_meta WHERE id IN "+idPh, idArgs...); err != nil {
				return err
			}
		}

		// Graph cleanup runs on paths, not ids, so stub nodes for documents
		// that were never indexed are removed as well.
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM graph_edges WHERE from_node_id IN (
				SELECT id FROM graph_nodes WHERE type = 'document' AND label IN `+ph+`
			)`, args...); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			"DELETE FROM graph_nodes WHERE type = 'document' AND label IN "+ph, args...); err != nil {
			return err
		}

		return refreshIndexedDocsTx(ctx, tx)
	})
}

// --- Graph ---

// UpsertGraph refreshes one document's graph footprint outside an indexing
// transaction: its previous outgoing edges are dropped, target nodes are
// created or reused, and the new edges inserted.
func (s *Store) UpsertGraph(ctx context.Context, docPath string, nodes []GraphNode, edges []GraphEdge) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return upsertGraphTx(ctx, tx, docPath, nodes, edges)
	})
}

func upsertGraphTx(ctx context.Context, tx *sql.Tx, docPath string, nodes []GraphNode, edges []GraphEdge) error {
	// Drop the document's previous outgoing edges; re-inserts below rebuild
	// the current set.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM graph_edges WHERE from_node_id IN (
			SELECT id FROM graph_nodes WHERE type = 'document' AND label = ?
		)`, docPath); err != nil {
		return err
	}

	for _, n := range nodes {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO graph_nodes (id, type, label, attributes)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				label = excluded.label,
				attributes = COALESCE(excluded.attributes, graph_nodes.attributes)
		`, n.ID, n.Type, n.Label, nullable(n.Attributes)); err != nil {
			return err
		}
	}

	for _, e := range edges {
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO graph_edges (id, from_node_id, to_node_id, type, weight, attributes)
			VALUES (?, ?, ?, ?, ?, ?)
		`, e.ID, e.From, e.To, e.Type, e.Weight, nullable(e.Attributes)); err != nil {
			return err
		}
	}
	return nil
}

// GraphNodesByIDs returns the nodes with the given IDs.
func (s *Store) GraphNodesByIDs(ctx context.Context, ids []string) ([]GraphNode, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, type, label, attributes FROM graph_nodes
		WHERE id IN (?` + repeatPlaceholders(len(ids)-1) + ")"

	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return s.queryNodes(ctx, query, args...)
}

func (s *Store) queryNodes(ctx context.Context, query string, args ...interface{}) ([]GraphNode, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []GraphNode
	for rows.Next() {
		var n GraphNode
		var attrs sql.NullString
		if err := rows.Scan(&n.ID, &n.Type, &n.Label, &attrs); err != nil {
			return nil, err
		}
		n.Attributes = attrs.String
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// GraphEdgesFrom returns all edges whose source is one of the given nodes.
func (s *Store) GraphEdgesFrom(ctx context.Context, fromIDs []string) ([]GraphEdge, error) {
	if len(fromIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT id, from_node_id, to_node_id, type, weight, attributes FROM graph_edges
		WHERE from_node_id IN (?` + repeatPlaceholders(len(fromIDs)-1) + ")"

	args := make([]interface{}, len(fromIDs))
	for i, id := range fromIDs {
		args[i] = id
	}
	return s.queryEdges(ctx, query, args...)
}

// GraphEdgesTouching returns all edges with either endpoint in the given set.
// Used by neighborhood previews, which are undirected.
func (s *Store) GraphEdgesTouching(ctx context.Context, ids []string) ([]GraphEdge, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	ph := "(?" + repeatPlaceholders(len(ids)-1) + ")"
	query := `
		SELECT id, from_node_id, to_node_id, type, weight, attributes FROM graph_edges
		WHERE from_node_id IN ` + ph + " OR to_node_id IN " + ph

	args := make([]interface{}, 0, len(ids)*2)
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	return s.queryEdges(ctx, query, args...)
}

func (s *Store) queryEdges(ctx context.Context, query string, args ...interface{}) ([]GraphEdge, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []GraphEdge
	for rows.Next() {
		var e GraphEdge
		var attrs sql.NullString
		if err := rows.Scan(&e.ID, &e.From, &e.To, &e.Type, &e.Weight, &attrs); err != nil {
			return nil, err
		}
		e.Attributes = attrs.String
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// --- Usage statistics ---

// RecordOpen bumps a document's open counter and stamps the open time.
func (s *Store) RecordOpen(ctx context.Context, docID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO doc_statistics (doc_id, last_open_ts, open_count)
		VALUES (?, ?, 1)
		ON CONFLICT(doc_id) DO UPDATE SET
			last_open_ts = excluded.last_open_ts,
			open_count = doc_statistics.open_count + 1
	`, docID, time.Now().UnixMilli())
	return err
}

// GetDocStats returns the usage statistics for the given documents, keyed by
// document ID. Documents never opened are absent from the result.
func (s *Store) GetDocStats(ctx context.Context, docIDs []string) (map[string]DocStats, error) {
	if len(docIDs) == 0 {
		return nil, nil
	}
	query := `
		SELECT doc_id, last_open_ts, open_count FROM doc_statistics
		WHERE doc_id IN (?` + repeatPlaceholders(len(docIDs)-1) + ")"

	args := make([]interface{}, len(docIDs))
	for i, id := range docIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]DocStats)
	for rows.Next() {
		var d DocStats
		if err := rows.Scan(&d.DocID, &d.LastOpenTs, &d.OpenCount); err != nil {
			return nil, err
		}
		out[d.DocID] = d
	}
	return out, rows.Err()
}

// --- Index state ---

// SetState writes a key/value pair to the index_state table.
func (s *Store) SetState(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// GetState reads a key from the index_state table. A missing key returns ""
// without an error.
func (s *Store) GetState(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM index_state WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func refreshIndexedDocsTx(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO index_state (key, value)
		VALUES (?, (SELECT COUNT(*) FROM doc_meta))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, StateIndexedDocs)
	return err
}

// --- Stats ---

// Stats returns counts of documents, chunks, embeddings, and graph objects.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	queries := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM doc_meta", &stats.Documents},
		{"SELECT COUNT(*) FROM doc_chunk", &stats.Chunks},
		{"SELECT COUNT(*) FROM embedding", &stats.Embeddings},
		{"SELECT COUNT(*) FROM graph_nodes", &stats.GraphNodes},
		{"SELECT COUNT(*) FROM graph_edges", &stats.GraphEdges},
	}
	for _, q := range queries {
		if err := s.db.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.query, err)
		}
	}
	return stats, nil
}

// --- helpers ---

func (s *Store) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

func repeatPlaceholders(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// serializeFloat32 converts a float32 slice to little-endian bytes for
// storage in embedding blobs and sqlite-vec.
func serializeFloat32(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// deserializeFloat32 is the inverse of serializeFloat32.
func deserializeFloat32(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
