package retrieval

import (
	"sort"

	"github.com/quillforge/lodestone/store"
)

// fuseRRF merges the three sub-search hit lists into document-level results
// using two-stage reciprocal rank fusion. Stage one folds the chunk-level
// fulltext and vector hits into per-document content scores: a hit at rank r
// (1-based) contributes contentWeight/(k+r), and a document surfacing
// several chunks collects every contribution. Stage two ranks those content
// scores against the doc-level meta hits, each lane contributing
// metaWeight/(k+r), summed when a document appears in both. The top topK by
// final score survive.
func fuseRRF(ft, vec, meta []store.SearchHit, k, contentWeight, metaWeight float64, topK int) []Result {
	type docEntry struct {
		res      Result
		content  float64
		final    float64
		bestRank int
		sources  map[string]bool
	}

	entries := make(map[string]*docEntry)
	var order []string // insertion order keeps iteration deterministic

	get := func(h store.SearchHit) *docEntry {
		e, ok := entries[h.DocID]
		if !ok {
			e = &docEntry{
				res:     Result{DocID: h.DocID, Path: h.Path, Title: h.Title},
				sources: make(map[string]bool),
			}
			entries[h.DocID] = e
			order = append(order, h.DocID)
		}
		return e
	}

	absorbContent := func(hits []store.SearchHit, source string) {
		for rank, h := range hits {
			e := get(h)
			e.content += contentWeight / (k + float64(rank+1))
			if !e.sources[source] {
				e.sources[source] = true
				e.res.Sources = append(e.res.Sources, source)
			}
			if e.res.ChunkID == 0 || rank+1 < e.bestRank {
				e.res.ChunkID = h.ChunkID
				e.res.content = h.Content
				e.bestRank = rank + 1
			}
		}
	}
	absorbContent(ft, "fulltext")
	absorbContent(vec, "vector")

	// Stage two: rank content documents by their stage-one score.
	var contentDocs []*docEntry
	for _, id := range order {
		if e := entries[id]; e.content > 0 {
			contentDocs = append(contentDocs, e)
		}
	}
	sort.SliceStable(contentDocs, func(i, j int) bool {
		return contentDocs[i].content > contentDocs[j].content
	})
	for rank, e := range contentDocs {
		e.final += metaWeight / (k + float64(rank+1))
	}

	for rank, h := range meta {
		e := get(h)
		e.final += metaWeight / (k + float64(rank+1))
		if !e.sources["meta"] {
			e.sources["meta"] = true
			e.res.Sources = append(e.res.Sources, "meta")
		}
	}

	ranked := make([]*docEntry, 0, len(entries))
	for _, id := range order {
		ranked = append(ranked, entries[id])
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].final > ranked[j].final
	})
	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}

	results := make([]Result, len(ranked))
	for i, e := range ranked {
		e.res.Score = e.final
		results[i] = e.res
	}
	return results
}

func sortResults(results []Result) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}
