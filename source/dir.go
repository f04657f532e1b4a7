package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quillforge/lodestone/parser"
)

// typeByExt maps registered extensions to the document type recorded in the
// index. Extensions added through a custom parser fall back to themselves.
var typeByExt = map[string]string{
	"md":       "markdown",
	"markdown": "markdown",
	"txt":      "text",
	"pdf":      "pdf",
	"xlsx":     "xlsx",
	"xlsm":     "xlsx",
}

// Dir is a filesystem-rooted Source. Hidden files and directories are
// ignored; everything else routes through the parser registry, so only
// extensions with a registered parser are scanned, read, or watched.
type Dir struct {
	root    string
	parsers *parser.Registry
}

// NewDir creates a Dir rooted at root. The root must exist and be a
// directory; a nil registry gets the built-in parsers.
func NewDir(root string, reg *parser.Registry) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving source root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("source root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source root %s is not a directory", abs)
	}
	if reg == nil {
		reg = parser.NewRegistry()
	}
	return &Dir{root: abs, parsers: reg}, nil
}

// Root returns the absolute root directory.
func (d *Dir) Root() string {
	return d.root
}

// Scan walks the root and returns metadata for every parseable document.
func (d *Dir) Scan(ctx context.Context) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(d.root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		name := info.Name()
		if info.IsDir() {
			if path != d.root && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if !d.parsers.Supported(ext) {
			return nil
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:  filepath.ToSlash(rel),
			Mtime: info.ModTime().UnixMilli(),
			Size:  info.Size(),
			Type:  d.docType(ext),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", d.root, err)
	}
	return files, nil
}

// Read loads and extracts one document by its corpus-relative path.
func (d *Dir) Read(ctx context.Context, path string) (*Document, error) {
	abs := filepath.Join(d.root, filepath.FromSlash(path))
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	ext := strings.TrimPrefix(filepath.Ext(abs), ".")
	p, ok := d.parsers.Get(ext)
	if !ok {
		return nil, fmt.Errorf("reading %s: no parser for extension %q", path, ext)
	}
	res, err := p.Parse(ctx, abs)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	sum := sha256.Sum256([]byte(res.Text))
	return &Document{
		FileInfo: FileInfo{
			Path:  path,
			Mtime: info.ModTime().UnixMilli(),
			Size:  info.Size(),
			Type:  d.docType(ext),
		},
		Content:     res.Text,
		ContentHash: hex.EncodeToString(sum[:]),
		Metadata:    res.Metadata,
	}, nil
}

func (d *Dir) docType(ext string) string {
	ext = strings.ToLower(ext)
	if t, ok := typeByExt[ext]; ok {
		return t
	}
	return ext
}
