package eval

import (
	"context"
	"log/slog"
	"time"

	"github.com/quillforge/lodestone"
)

// DefaultCutoffs are the K values reported for Hit@K and Recall@K.
var DefaultCutoffs = []int{1, 5, 10}

// Evaluator runs golden query sets against a lodestone engine.
type Evaluator struct {
	engine  lodestone.Engine
	cutoffs []int
}

// NewEvaluator creates an evaluator with the default cutoffs.
func NewEvaluator(engine lodestone.Engine) *Evaluator {
	return &Evaluator{engine: engine, cutoffs: DefaultCutoffs}
}

// SetCutoffs overrides the K values. The largest cutoff also sizes the
// search window.
func (e *Evaluator) SetCutoffs(ks []int) {
	if len(ks) > 0 {
		e.cutoffs = ks
	}
}

// CaseResult holds the outcome of a single golden query.
type CaseResult struct {
	Query     string          `json:"query"`
	Category  string          `json:"category,omitempty"`
	Rank      int             `json:"rank"` // first relevant hit, 1-based; 0 = missed
	HitAt     map[int]bool    `json:"hit_at"`
	RecallAt  map[int]float64 `json:"recall_at"`
	Returned  int             `json:"returned"`
	ElapsedMs int64           `json:"elapsed_ms"`
	Error     string          `json:"error,omitempty"`
}

// Report aggregates an evaluation run. Failed queries count as misses, so
// the headline numbers never improve by dropping hard cases.
type Report struct {
	Dataset     string             `json:"dataset"`
	Cases       int                `json:"cases"`
	MRR         float64            `json:"mrr"`
	HitRate     map[int]float64    `json:"hit_rate"` // k -> fraction of cases with a hit in the top k
	Recall      map[int]float64    `json:"recall"`   // k -> mean recall@k
	CategoryMRR map[string]float64 `json:"mrr_by_category,omitempty"`
	Results     []CaseResult       `json:"results"`
	RunTime     time.Duration      `json:"run_time"`
}

// Run executes every case through Search and aggregates the ranks.
func (e *Evaluator) Run(ctx context.Context, ds *Dataset) (*Report, error) {
	start := time.Now()
	maxK := 0
	for _, k := range e.cutoffs {
		if k > maxK {
			maxK = k
		}
	}

	report := &Report{
		Dataset: ds.Name,
		Cases:   len(ds.Cases),
		HitRate: make(map[int]float64, len(e.cutoffs)),
		Recall:  make(map[int]float64, len(e.cutoffs)),
		Results: make([]CaseResult, 0, len(ds.Cases)),
	}

	var rrSum float64
	catRR := make(map[string]float64)
	catN := make(map[string]int)

	for _, c := range ds.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		caseStart := time.Now()
		results, _, err := e.engine.Search(ctx, c.Query, lodestone.WithTopK(maxK))
		cr := CaseResult{
			Query:     c.Query,
			Category:  c.Category,
			HitAt:     make(map[int]bool, len(e.cutoffs)),
			RecallAt:  make(map[int]float64, len(e.cutoffs)),
			ElapsedMs: time.Since(caseStart).Milliseconds(),
		}
		if err != nil {
			cr.Error = err.Error()
			slog.Warn("eval: query failed", "query", c.Query, "error", err)
		} else {
			ranked := make([]string, len(results))
			for i, r := range results {
				ranked[i] = r.Path
			}
			cr.Returned = len(ranked)
			cr.Rank = rankOf(ranked, c.Relevant)
			for _, k := range e.cutoffs {
				cr.HitAt[k] = cr.Rank > 0 && cr.Rank <= k
				cr.RecallAt[k] = recallAt(ranked, c.Relevant, k)
			}
		}
		report.Results = append(report.Results, cr)

		var rr float64
		if cr.Rank > 0 {
			rr = 1.0 / float64(cr.Rank)
		}
		rrSum += rr
		if c.Category != "" {
			catRR[c.Category] += rr
			catN[c.Category]++
		}
	}

	n := float64(len(ds.Cases))
	report.MRR = rrSum / n
	for _, k := range e.cutoffs {
		hits := 0
		var recall float64
		for _, cr := range report.Results {
			if cr.HitAt[k] {
				hits++
			}
			recall += cr.RecallAt[k]
		}
		report.HitRate[k] = float64(hits) / n
		report.Recall[k] = recall / n
	}
	if len(catRR) > 0 {
		report.CategoryMRR = make(map[string]float64, len(catRR))
		for cat, sum := range catRR {
			report.CategoryMRR[cat] = sum / float64(catN[cat])
		}
	}
	report.RunTime = time.Since(start)

	slog.Info("eval: run complete",
		"dataset", ds.Name, "cases", report.Cases,
		"mrr", report.MRR, "elapsed", report.RunTime.Round(time.Millisecond))
	return report, nil
}
