//go:build sqlite_vec

package store

// CGO build with the sqlite-vec extension loaded: vector KNN queries run
// inside SQLite through the vec_chunks virtual table.
//
//   CGO_ENABLED=1 go build -tags sqlite_vec ./...

import (
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

const (
	// DriverName is the database/sql driver this build registers.
	DriverName = "sqlite3"

	// VectorIndexAvailable reports whether KNN queries can use the
	// vec_chunks virtual table instead of a brute-force scan.
	VectorIndexAvailable = true

	// BuildMode describes the compiled storage backend.
	BuildMode = "cgo"
)

func dsn(path string) string {
	return path + "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=30000"
}

// vecSchemaSQL returns the vec0 virtual table DDL that mirrors chunk
// embeddings for KNN search.
func vecSchemaSQL(embeddingDim int) string {
	return fmt.Sprintf(`
CREATE VIRTUAL TABLE IF NOT EXISTS vec_chunks USING vec0(
    chunk_id INTEGER PRIMARY KEY,
    embedding float[%d]
);
`, embeddingDim)
}
