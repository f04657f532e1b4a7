// Package graph maintains the knowledge graph derived from the document
// corpus: document nodes connected to the link targets, tags, and categories
// they reference. It assembles per-document node/edge sets for the indexing
// pipeline and answers hop-limited traversal queries for ranking boosts and
// UI previews.
package graph

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quillforge/lodestone/normalize"
	"github.com/quillforge/lodestone/store"
)

// Node type constants stored in graph_nodes.type.
const (
	NodeDocument = "document"
	NodeTag      = "tag"
	NodeLink     = "link"
	NodeCategory = "category"
)

// Edge type constants stored in graph_edges.type.
const (
	EdgeReferences  = "references"
	EdgeTagged      = "tagged"
	EdgeCategorized = "categorized"
)

// DocNodeID returns the node ID for a document path. Paths are folded so
// case or accent variants of the same file share one node.
func DocNodeID(path string) string {
	return normalize.Fold(path)
}

// TagNodeID returns the node ID for a tag name.
func TagNodeID(name string) string {
	return "tag:" + normalize.Fold(name)
}

// LinkNodeID returns the node ID for a link target that did not resolve to
// a document in the corpus (external URLs, dangling wiki links).
func LinkNodeID(target string) string {
	return "link:" + normalize.Fold(target)
}

// CategoryNodeID returns the node ID for a category name.
func CategoryNodeID(name string) string {
	return "category:" + normalize.Fold(name)
}

// EdgeID derives a stable edge identifier from the endpoints and edge type,
// so re-indexing a document rewrites the same edge rows instead of accreting
// duplicates.
func EdgeID(from, to, edgeType string) string {
	sum := sha256.Sum256([]byte(from + "\x00" + to + "\x00" + edgeType))
	return hex.EncodeToString(sum[:12])
}

// Rels holds the outgoing relations extracted from one document. DocPaths
// are link targets already resolved to corpus paths; Links are targets that
// did not resolve and are kept as plain link nodes.
type Rels struct {
	DocPaths   []string
	Links      []string
	Tags       []string
	Categories []string
}

// Build assembles the node and edge set describing one document's graph
// footprint. Target nodes are emitted alongside the document node so the
// store can create them on demand; nodes that already exist are reused by
// ID. Self references and duplicate relations collapse to single rows.
func Build(doc store.DocMeta, rels Rels) ([]store.GraphNode, []store.GraphEdge) {
	docID := DocNodeID(doc.Path)

	var (
		nodes     []store.GraphNode
		edges     []store.GraphEdge
		seenNodes = make(map[string]bool)
		seenEdges = make(map[string]bool)
	)

	addNode := func(n store.GraphNode) {
		if seenNodes[n.ID] {
			return
		}
		seenNodes[n.ID] = true
		nodes = append(nodes, n)
	}
	addEdge := func(to, edgeType string) {
		if to == docID {
			return
		}
		id := EdgeID(docID, to, edgeType)
		if seenEdges[id] {
			return
		}
		seenEdges[id] = true
		edges = append(edges, store.GraphEdge{
			ID:     id,
			From:   docID,
			To:     to,
			Type:   edgeType,
			Weight: 1,
		})
	}

	var attrs string
	if doc.Title != "" {
		b, _ := json.Marshal(map[string]string{"title": doc.Title})
		attrs = string(b)
	}
	addNode(store.GraphNode{ID: docID, Type: NodeDocument, Label: doc.Path, Attributes: attrs})

	for _, p := range rels.DocPaths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		addNode(store.GraphNode{ID: DocNodeID(p), Type: NodeDocument, Label: p})
		addEdge(DocNodeID(p), EdgeReferences)
	}
	for _, l := range rels.Links {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		addNode(store.GraphNode{ID: LinkNodeID(l), Type: NodeLink, Label: l})
		addEdge(LinkNodeID(l), EdgeReferences)
	}
	for _, t := range rels.Tags {
		t = strings.TrimSpace(strings.TrimPrefix(t, "#"))
		if t == "" {
			continue
		}
		addNode(store.GraphNode{ID: TagNodeID(t), Type: NodeTag, Label: t})
		addEdge(TagNodeID(t), EdgeTagged)
	}
	for _, c := range rels.Categories {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		addNode(store.GraphNode{ID: CategoryNodeID(c), Type: NodeCategory, Label: c})
		addEdge(CategoryNodeID(c), EdgeCategorized)
	}

	return nodes, edges
}

// Graph answers traversal queries over the node/edge tables and refreshes
// per-document footprints.
type Graph struct {
	store *store.Store
}

// New wraps a store with graph operations.
func New(s *store.Store) *Graph {
	return &Graph{store: s}
}

// Upsert refreshes the document's node and outgoing edges in their own
// transaction. The indexing pipeline folds the same work into its
// per-document transaction via Build; Upsert is for callers that only touch
// the graph.
func (g *Graph) Upsert(ctx context.Context, doc store.DocMeta, rels Rels) error {
	nodes, edges := Build(doc, rels)
	if err := g.store.UpsertGraph(ctx, doc.Path, nodes, edges); err != nil {
		return fmt.Errorf("graph.Upsert: %w", err)
	}
	return nil
}
