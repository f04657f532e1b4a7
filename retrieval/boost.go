package retrieval

import (
	"context"
	"log/slog"
	"math"
	"time"
)

const millisPerDay = 24 * 60 * 60 * 1000

// applyBoosts adds usage and graph-proximity bonuses to the fused scores
// and re-sorts. Frequently and recently opened documents rise, as do
// documents within a few link hops of the one currently open. Signal
// lookups failing is never fatal: the fused ordering stands.
func (e *Engine) applyBoosts(ctx context.Context, results []Result, activePath string) {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.DocID
	}

	stats, err := e.store.GetDocStats(ctx, ids)
	if err != nil {
		slog.Warn("retrieval: loading usage statistics failed", "error", err)
		stats = nil
	}

	related := make(map[string]bool)
	if activePath != "" && e.graph != nil {
		paths, err := e.graph.RelatedPaths(ctx, activePath, e.cfg.GraphHops)
		if err != nil {
			slog.Warn("retrieval: graph neighborhood lookup failed",
				"path", activePath, "error", err)
		}
		for _, p := range paths {
			related[p] = true
		}
	}

	now := time.Now().UnixMilli()
	for i := range results {
		r := &results[i]
		if st, ok := stats[r.DocID]; ok {
			r.OpenCount = st.OpenCount
			r.Score += math.Log(1+float64(st.OpenCount)) * e.cfg.FreqBoost
			if st.LastOpenTs > 0 {
				days := float64(now-st.LastOpenTs) / millisPerDay
				if bonus := e.cfg.RecencyBoost - days*e.cfg.RecencyDecay; bonus > 0 {
					r.Score += bonus
				}
			}
		}
		if related[r.Path] {
			r.Score += e.cfg.GraphBoost
		}
	}

	sortResults(results)
}
