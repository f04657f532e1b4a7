package store

// schemaSQL returns the DDL for all tables. embeddingDim controls the
// vec0 virtual table dimension on builds that carry the extension.
func schemaSQL(embeddingDim int) string {
	return baseSchemaSQL + vecSchemaSQL(embeddingDim)
}

const baseSchemaSQL = `
-- Document registry; a row here is the authoritative "indexed" signal
CREATE TABLE IF NOT EXISTS doc_meta (
    id TEXT PRIMARY KEY,
    path TEXT NOT NULL UNIQUE,
    type TEXT NOT NULL DEFAULT '',
    title TEXT NOT NULL DEFAULT '',
    mtime INTEGER NOT NULL DEFAULT 0,
    size INTEGER NOT NULL DEFAULT 0,
    content_hash TEXT NOT NULL,
    tags JSON,
    summary TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Chunks; replaced wholesale on every reindex of the parent document
CREATE TABLE IF NOT EXISTS doc_chunk (
    chunk_id INTEGER PRIMARY KEY,
    doc_id TEXT NOT NULL REFERENCES doc_meta(id) ON DELETE CASCADE,
    chunk_index INTEGER NOT NULL,
    title TEXT NOT NULL DEFAULT '',
    mtime INTEGER NOT NULL DEFAULT 0,
    content_raw TEXT NOT NULL,
    content_fts_norm TEXT NOT NULL,
    start_offset INTEGER NOT NULL DEFAULT 0,
    end_offset INTEGER NOT NULL DEFAULT 0
);

-- Full-text index; rowid mirrors doc_chunk.chunk_id
CREATE VIRTUAL TABLE IF NOT EXISTS chunk_fts USING fts5(
    content,
    title,
    path,
    doc_id UNINDEXED,
    tokenize='unicode61 remove_diacritics 2'
);

-- Chunk embeddings (canonical storage; vec_chunks mirrors them for KNN
-- on builds where the extension is available)
CREATE TABLE IF NOT EXISTS embedding (
    id TEXT PRIMARY KEY,
    doc_id TEXT NOT NULL REFERENCES doc_meta(id) ON DELETE CASCADE,
    chunk_id INTEGER NOT NULL,
    chunk_index INTEGER NOT NULL,
    embedding BLOB NOT NULL,
    embedding_model TEXT NOT NULL DEFAULT '',
    embedding_len INTEGER NOT NULL,
    ctime DATETIME DEFAULT CURRENT_TIMESTAMP,
    mtime DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Knowledge graph: typed nodes (document|tag|link|category)
CREATE TABLE IF NOT EXISTS graph_nodes (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    label TEXT NOT NULL,
    attributes JSON
);

-- Knowledge graph: typed edges (references|tagged|categorized)
CREATE TABLE IF NOT EXISTS graph_edges (
    id TEXT PRIMARY KEY,
    from_node_id TEXT NOT NULL,
    to_node_id TEXT NOT NULL,
    type TEXT NOT NULL,
    weight REAL NOT NULL DEFAULT 1.0,
    attributes JSON
);

-- Usage signal read by the ranking booster
CREATE TABLE IF NOT EXISTS doc_statistics (
    doc_id TEXT PRIMARY KEY,
    last_open_ts INTEGER NOT NULL DEFAULT 0,
    open_count INTEGER NOT NULL DEFAULT 0
);

-- Key/value index state (index_built_at, indexed_docs)
CREATE TABLE IF NOT EXISTS index_state (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_doc_chunk_doc ON doc_chunk(doc_id);
CREATE INDEX IF NOT EXISTS idx_embedding_doc ON embedding(doc_id);
CREATE INDEX IF NOT EXISTS idx_embedding_chunk ON embedding(chunk_id);
CREATE INDEX IF NOT EXISTS idx_graph_nodes_type ON graph_nodes(type);
CREATE INDEX IF NOT EXISTS idx_graph_edges_from ON graph_edges(from_node_id);
CREATE INDEX IF NOT EXISTS idx_graph_edges_to ON graph_edges(to_node_id);
`
