// Package parser extracts plain text from the file formats the indexer
// accepts, so attachments can be chunked and searched alongside notes.
package parser

import (
	"context"
	"strings"
)

// Result is the extracted text of one file.
type Result struct {
	Text     string
	Metadata map[string]string
}

// Parser extracts text from one family of file formats.
type Parser interface {
	Parse(ctx context.Context, path string) (*Result, error)
	Extensions() []string
}

// Registry routes file extensions to parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates a registry with the built-in parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	for _, p := range []Parser{&Text{}, &PDF{}, &XLSX{}} {
		r.Register(p)
	}
	return r
}

// Register adds a parser for its extensions, replacing any previous one.
func (r *Registry) Register(p Parser) {
	for _, ext := range p.Extensions() {
		r.parsers[ext] = p
	}
}

// Get returns the parser for an extension (without the leading dot).
func (r *Registry) Get(ext string) (Parser, bool) {
	p, ok := r.parsers[strings.ToLower(strings.TrimPrefix(ext, "."))]
	return p, ok
}

// Supported reports whether the extension has a registered parser.
func (r *Registry) Supported(ext string) bool {
	_, ok := r.Get(ext)
	return ok
}

// Extensions lists every registered extension.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.parsers))
	for ext := range r.parsers {
		exts = append(exts, ext)
	}
	return exts
}
