//go:build purego || !sqlite_vec

package store

// Pure Go build on modernc.org/sqlite, without the sqlite-vec extension.
// Vector search falls back to a brute-force scan over stored embedding blobs.
//
//   CGO_ENABLED=0 go build ./...

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the database/sql driver this build registers.
	DriverName = "sqlite"

	// VectorIndexAvailable reports whether KNN queries can use the
	// vec_chunks virtual table instead of a brute-force scan.
	VectorIndexAvailable = false

	// BuildMode describes the compiled storage backend.
	BuildMode = "purego"
)

func dsn(path string) string {
	return path + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(30000)"
}

func vecSchemaSQL(int) string { return "" }
