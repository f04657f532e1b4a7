package index

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/quillforge/lodestone/graph"
	"github.com/quillforge/lodestone/normalize"
)

var (
	wikilinkRe = regexp.MustCompile(`\[\[([^\[\]]+)\]\]`)
	mdLinkRe   = regexp.MustCompile(`\]\(<?([^()<>\s]+)>?[^()]*\)`)
	tagRe      = regexp.MustCompile(`(?:^|[\s(])#([\p{L}\p{N}][\p{L}\p{N}/_-]*)`)
	headingRe  = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+)$`)
)

// PathSet resolves link targets against the known corpus paths, the way
// note apps do: exact path first, then path without extension, then bare
// file name. A nil PathSet resolves nothing.
type PathSet struct {
	exact map[string]string
	noExt map[string]string
	stem  map[string]string
}

// NewPathSet builds a resolver over the given corpus-relative paths.
func NewPathSet(paths []string) *PathSet {
	ps := &PathSet{
		exact: make(map[string]string, len(paths)),
		noExt: make(map[string]string, len(paths)),
		stem:  make(map[string]string, len(paths)),
	}
	for _, p := range paths {
		ps.Add(p)
	}
	return ps
}

// Add registers one path. For ambiguous bare names the first registration
// wins.
func (ps *PathSet) Add(p string) {
	trimmed := trimExt(p)
	ps.exact[normalize.Fold(p)] = p
	ps.noExt[normalize.Fold(trimmed)] = p
	stem := normalize.Fold(path.Base(trimmed))
	if _, ok := ps.stem[stem]; !ok {
		ps.stem[stem] = p
	}
}

// Resolve maps a link target written in a document under fromDir to a
// corpus path.
func (ps *PathSet) Resolve(target, fromDir string) (string, bool) {
	if ps == nil || target == "" {
		return "", false
	}
	candidates := []string{
		path.Clean(path.Join(fromDir, target)),
		path.Clean(strings.TrimPrefix(target, "/")),
	}
	for _, c := range candidates {
		folded := normalize.Fold(c)
		if p, ok := ps.exact[folded]; ok {
			return p, true
		}
		if p, ok := ps.noExt[folded]; ok {
			return p, true
		}
	}
	if !strings.Contains(target, "/") {
		if p, ok := ps.stem[normalize.Fold(trimExt(target))]; ok {
			return p, true
		}
	}
	return "", false
}

func trimExt(p string) string {
	return strings.TrimSuffix(p, path.Ext(p))
}

func isMarkdownPath(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".markdown", ".mdown":
		return true
	}
	return false
}

// Extract derives the document title and outgoing graph relations from
// markdown content: wiki and markdown link targets resolved against the
// corpus, inline and frontmatter tags, and the top-level folder as the
// category. Non-markdown formats pass through here too; their content
// yields no relations, but a heading-shaped first line still becomes the
// title.
func Extract(docPath, content string, paths *PathSet) (string, graph.Rels) {
	fm, body := splitFrontmatter(content)

	title := fm.title
	if title == "" {
		title = firstHeading(body)
	}
	if title == "" && !isMarkdownPath(docPath) {
		title = plainTitle(body)
	}
	if title == "" {
		title = path.Base(trimExt(docPath))
	}

	var rels graph.Rels
	fromDir := path.Dir(docPath)
	seenDoc := make(map[string]bool)
	seenLink := make(map[string]bool)

	addTarget := func(target string) {
		target = strings.TrimSpace(target)
		if target == "" || strings.HasPrefix(target, "#") {
			return
		}
		if strings.Contains(target, "://") || strings.HasPrefix(target, "mailto:") {
			if !seenLink[target] {
				seenLink[target] = true
				rels.Links = append(rels.Links, target)
			}
			return
		}
		if i := strings.IndexAny(target, "#^"); i >= 0 {
			target = strings.TrimSpace(target[:i])
			if target == "" {
				return
			}
		}
		if p, ok := paths.Resolve(target, fromDir); ok {
			if p != docPath && !seenDoc[p] {
				seenDoc[p] = true
				rels.DocPaths = append(rels.DocPaths, p)
			}
			return
		}
		if !seenLink[target] {
			seenLink[target] = true
			rels.Links = append(rels.Links, target)
		}
	}

	for _, m := range wikilinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if i := strings.Index(target, "|"); i >= 0 {
			target = target[:i]
		}
		addTarget(target)
	}
	for _, m := range mdLinkRe.FindAllStringSubmatch(body, -1) {
		target := m[1]
		if unescaped, err := url.PathUnescape(target); err == nil {
			target = unescaped
		}
		addTarget(target)
	}

	seenTag := make(map[string]bool)
	addTag := func(tag string) {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag == "" {
			return
		}
		folded := normalize.Fold(tag)
		if seenTag[folded] {
			return
		}
		seenTag[folded] = true
		rels.Tags = append(rels.Tags, tag)
	}
	for _, t := range fm.tags {
		addTag(t)
	}
	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		addTag(m[1])
	}

	if i := strings.Index(docPath, "/"); i > 0 {
		rels.Categories = []string{docPath[:i]}
	}

	return title, rels
}

type frontmatter struct {
	title string
	tags  []string
}

// splitFrontmatter separates a leading YAML frontmatter block from the
// body. Only the title and tags keys are read; everything else is opaque.
// An unterminated block is treated as body text.
func splitFrontmatter(content string) (frontmatter, string) {
	var fm frontmatter
	if !strings.HasPrefix(content, "---\n") && !strings.HasPrefix(content, "---\r\n") {
		return fm, content
	}

	rest := content[strings.Index(content, "\n")+1:]
	lines := strings.Split(rest, "\n")
	end := -1
	for i, line := range lines {
		if strings.TrimRight(line, "\r") == "---" {
			end = i
			break
		}
	}
	if end < 0 {
		return fm, content
	}
	body := strings.Join(lines[end+1:], "\n")

	inTags := false
	for _, line := range lines[:end] {
		trimmed := strings.TrimSpace(line)
		if inTags {
			if strings.HasPrefix(trimmed, "- ") {
				fm.tags = append(fm.tags, unquote(strings.TrimPrefix(trimmed, "- ")))
				continue
			}
			inTags = false
		}
		key, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			fm.title = unquote(value)
		case "tags", "tag":
			switch {
			case value == "":
				inTags = true
			case strings.HasPrefix(value, "["):
				for _, t := range strings.Split(strings.Trim(value, "[]"), ",") {
					if t = unquote(t); t != "" {
						fm.tags = append(fm.tags, t)
					}
				}
			default:
				fm.tags = append(fm.tags, unquote(value))
			}
		}
	}
	return fm, body
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

func firstHeading(body string) string {
	m := headingRe.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
