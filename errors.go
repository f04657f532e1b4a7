package lodestone

import "errors"

var (
	// ErrInvalidConfig is returned by New for unusable configuration values.
	ErrInvalidConfig = errors.New("lodestone: invalid configuration")

	// ErrDocumentNotFound is returned when a path has no indexed document.
	ErrDocumentNotFound = errors.New("lodestone: document not found")

	// ErrWatchUnsupported is returned by Watch when the configured source
	// cannot stream change events.
	ErrWatchUnsupported = errors.New("lodestone: source does not support watching")
)
