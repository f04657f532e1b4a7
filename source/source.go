// Package source provides documents to the indexing pipeline. A Source
// answers cheap metadata scans and full content loads; the shipped Dir
// implementation walks a filesystem root and can stream change events
// into the incremental update listener.
package source

import "context"

// FileInfo is the metadata-only view of one document, returned by Scan.
// Paths are corpus-relative with forward slashes.
type FileInfo struct {
	Path  string `json:"path"`
	Mtime int64  `json:"mtime"` // unix milliseconds
	Size  int64  `json:"size"`
	Type  string `json:"type"` // markdown, text, pdf, xlsx, ...
}

// Document is the full content load of one document. ContentHash is the
// hex SHA-256 of the extracted text, so reconciliation can tell mtime-only
// touches from real edits.
type Document struct {
	FileInfo
	Content     string
	ContentHash string
	Metadata    map[string]string
}

// Source supplies documents to the indexer. Scan stays metadata-only so
// change detection over large corpora never loads content it will not use.
type Source interface {
	Scan(ctx context.Context) ([]FileInfo, error)
	Read(ctx context.Context, path string) (*Document, error)
}

// ChangeListener receives live change notifications from a watching
// source. Paths follow the same corpus-relative convention as Scan.
type ChangeListener interface {
	FileChanged(path string) // created or modified
	FileRemoved(path string) // removed, or the old name of a rename
}

// Watcher is implemented by sources that can stream live change events.
// Watch blocks until ctx is cancelled.
type Watcher interface {
	Watch(ctx context.Context, l ChangeListener) error
}
