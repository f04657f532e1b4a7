package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"
)

// rerank submits the current results to the rerank model and blends its
// normalized scores into the ordering. Any failure keeps the boosted
// ordering; the caller never sees rerank errors. Reports whether reranking
// actually ran.
func (e *Engine) rerank(ctx context.Context, query string, results []Result) bool {
	if e.reranker == nil || len(results) < 2 {
		return false
	}

	docs := make([]string, len(results))
	for i, r := range results {
		docs[i] = serializeForRerank(r)
	}

	scores, err := e.reranker.Rerank(ctx, query, docs)
	if err != nil || len(scores) != len(results) {
		slog.Warn("retrieval: rerank failed, keeping boosted order",
			"error", err, "scores", len(scores), "results", len(results))
		return false
	}

	norm := normalizeScores(scores)
	w := e.cfg.RerankWeight
	for i := range results {
		results[i].Score = (1-w)*results[i].Score + w*norm[i]
	}
	sortResults(results)
	return true
}

// serializeForRerank renders one result as the text the rerank model
// scores: title and path for identity, usage annotations for context, and
// the matched snippet or chunk text for content.
func serializeForRerank(r Result) string {
	var b strings.Builder
	b.WriteString(r.Title)
	b.WriteString("\n")
	b.WriteString(r.Path)
	if r.OpenCount > 0 {
		fmt.Fprintf(&b, "\nopened %d times", r.OpenCount)
	}
	if r.Snippet != "" {
		b.WriteString("\n")
		b.WriteString(r.Snippet)
	} else if r.content != "" {
		text := r.content
		if len(text) > 500 {
			cut := 500
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		b.WriteString("\n")
		b.WriteString(text)
	}
	return b.String()
}

// normalizeScores min-max scales a score list into [0,1]. Rank-style lists
// (monotone positions instead of probabilities) come out evenly spaced; a
// constant list carries no signal and maps to 0.5 everywhere.
func normalizeScores(scores []float64) []float64 {
	min, max := scores[0], scores[0]
	for _, s := range scores[1:] {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}

	out := make([]float64, len(scores))
	if max == min {
		for i := range out {
			out[i] = 0.5
		}
		return out
	}
	for i, s := range scores {
		out[i] = (s - min) / (max - min)
	}
	return out
}
