package graph

import (
	"context"
	"fmt"

	"github.com/quillforge/lodestone/store"
)

// queryBatch caps IN-clause sizes during traversal.
const queryBatch = 200

// RelatedPaths walks outgoing references from the given document and returns
// the paths of every document reachable within maxHops, excluding the start
// itself. Non-document nodes terminate a walk: tags, links, and categories
// have no outgoing edges and never appear in the result. Edges whose target
// node was deleted drop out silently.
func (g *Graph) RelatedPaths(ctx context.Context, startPath string, maxHops int) ([]string, error) {
	if startPath == "" || maxHops <= 0 {
		return nil, nil
	}

	start := DocNodeID(startPath)
	visited := map[string]bool{start: true}
	frontier := []string{start}

	var paths []string
	for hop := 0; hop < maxHops && len(frontier) > 0; hop++ {
		targets, err := g.outgoingTargets(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("graph.RelatedPaths: %w", err)
		}

		var next []string
		for _, id := range targets {
			if !visited[id] {
				visited[id] = true
				next = append(next, id)
			}
		}
		if len(next) == 0 {
			break
		}

		docs, err := g.documentNodes(ctx, next)
		if err != nil {
			return nil, fmt.Errorf("graph.RelatedPaths: %w", err)
		}

		frontier = frontier[:0]
		for _, n := range docs {
			paths = append(paths, n.Label)
			frontier = append(frontier, n.ID)
		}
	}
	return paths, nil
}

// Subgraph is a bounded neighborhood around one document, for graph views.
type Subgraph struct {
	Nodes []store.GraphNode `json:"nodes"`
	Edges []store.GraphEdge `json:"edges"`
}

// Preview returns the undirected neighborhood of a document: up to maxNodes
// nodes within maxHops of it, plus every edge connecting two included nodes.
// A path with no graph presence yields an empty subgraph.
func (g *Graph) Preview(ctx context.Context, path string, maxNodes, maxHops int) (*Subgraph, error) {
	sub := &Subgraph{}
	if path == "" || maxNodes <= 0 {
		return sub, nil
	}

	start := DocNodeID(path)
	startNodes, err := g.store.GraphNodesByIDs(ctx, []string{start})
	if err != nil {
		return nil, fmt.Errorf("graph.Preview: %w", err)
	}
	if len(startNodes) == 0 {
		return sub, nil
	}

	included := map[string]bool{start: true}
	sub.Nodes = append(sub.Nodes, startNodes[0])

	seenEdges := make(map[string]bool)
	var touching []store.GraphEdge

	frontier := []string{start}
	for hop := 0; hop < maxHops && len(frontier) > 0 && len(sub.Nodes) < maxNodes; hop++ {
		edges, err := g.touchingEdges(ctx, frontier)
		if err != nil {
			return nil, fmt.Errorf("graph.Preview: %w", err)
		}

		queued := make(map[string]bool)
		var nextIDs []string
		for _, e := range edges {
			if !seenEdges[e.ID] {
				seenEdges[e.ID] = true
				touching = append(touching, e)
			}
			for _, id := range [2]string{e.From, e.To} {
				if !included[id] && !queued[id] {
					queued[id] = true
					nextIDs = append(nextIDs, id)
				}
			}
		}

		nodes, err := g.nodesByIDs(ctx, nextIDs)
		if err != nil {
			return nil, fmt.Errorf("graph.Preview: %w", err)
		}

		frontier = frontier[:0]
		for _, n := range nodes {
			if len(sub.Nodes) >= maxNodes {
				break
			}
			included[n.ID] = true
			sub.Nodes = append(sub.Nodes, n)
			frontier = append(frontier, n.ID)
		}
	}

	for _, e := range touching {
		if included[e.From] && included[e.To] {
			sub.Edges = append(sub.Edges, e)
		}
	}
	return sub, nil
}

// outgoingTargets returns the distinct destinations of all edges leaving the
// given nodes, querying in batches to bound IN-clause size.
func (g *Graph) outgoingTargets(ctx context.Context, fromIDs []string) ([]string, error) {
	seen := make(map[string]bool)
	var targets []string
	for start := 0; start < len(fromIDs); start += queryBatch {
		end := start + queryBatch
		if end > len(fromIDs) {
			end = len(fromIDs)
		}
		edges, err := g.store.GraphEdgesFrom(ctx, fromIDs[start:end])
		if err != nil {
			return nil, err
		}
		for _, e := range edges {
			if !seen[e.To] {
				seen[e.To] = true
				targets = append(targets, e.To)
			}
		}
	}
	return targets, nil
}

// documentNodes resolves IDs to nodes and keeps only document-typed ones.
func (g *Graph) documentNodes(ctx context.Context, ids []string) ([]store.GraphNode, error) {
	nodes, err := g.nodesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	docs := nodes[:0]
	for _, n := range nodes {
		if n.Type == NodeDocument {
			docs = append(docs, n)
		}
	}
	return docs, nil
}

func (g *Graph) nodesByIDs(ctx context.Context, ids []string) ([]store.GraphNode, error) {
	var out []store.GraphNode
	for start := 0; start < len(ids); start += queryBatch {
		end := start + queryBatch
		if end > len(ids) {
			end = len(ids)
		}
		nodes, err := g.store.GraphNodesByIDs(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, nodes...)
	}
	return out, nil
}

func (g *Graph) touchingEdges(ctx context.Context, ids []string) ([]store.GraphEdge, error) {
	var out []store.GraphEdge
	for start := 0; start < len(ids); start += queryBatch {
		end := start + queryBatch
		if end > len(ids) {
			end = len(ids)
		}
		edges, err := g.store.GraphEdgesTouching(ctx, ids[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, edges...)
	}
	return out, nil
}
