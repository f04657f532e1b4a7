package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillforge/lodestone/eval"
)

var (
	evalDataset string
	evalCutoffs []int
	evalJSON    bool
)

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Measure retrieval quality against a golden query set",
	Long: `Runs every query in a JSON golden set through the engine and
reports Hit@K, Recall@K, and mean reciprocal rank. The dataset format is:

  {"name": "my-vault", "cases": [
    {"query": "quarterly budget numbers",
     "relevant": ["finance/q3-budget.md"],
     "category": "finance"}
  ]}

Failed and missed queries count as zeros, so the headline numbers never
improve by dropping hard cases.`,
	Args: cobra.NoArgs,
	RunE: runEval,
}

func init() {
	evalCmd.Flags().StringVarP(&evalDataset, "dataset", "d", "", "path to the golden query set (required)")
	evalCmd.Flags().IntSliceVarP(&evalCutoffs, "cutoff", "k", nil, "cutoffs to report (default 1,5,10)")
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "print the full report as JSON")
	evalCmd.MarkFlagRequired("dataset")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) error {
	ds, err := eval.LoadDataset(evalDataset)
	if err != nil {
		return err
	}

	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signalContext()
	defer stop()

	ev := eval.NewEvaluator(eng)
	if len(evalCutoffs) > 0 {
		ev.SetCutoffs(evalCutoffs)
	}
	report, err := ev.Run(ctx, ds)
	if err != nil {
		return fmt.Errorf("evaluation: %w", err)
	}

	if evalJSON {
		return printJSON(cmd, report)
	}

	cmd.Printf("Dataset: %s (%d cases, %s)\n", report.Dataset, report.Cases, report.RunTime.Round(time.Millisecond))
	cmd.Printf("MRR:     %.3f\n", report.MRR)

	ks := make([]int, 0, len(report.HitRate))
	for k := range report.HitRate {
		ks = append(ks, k)
	}
	sort.Ints(ks)
	for _, k := range ks {
		cmd.Printf("Hit@%-3d  %.3f    Recall@%-3d  %.3f\n", k, report.HitRate[k], k, report.Recall[k])
	}

	if len(report.CategoryMRR) > 0 {
		cats := make([]string, 0, len(report.CategoryMRR))
		for c := range report.CategoryMRR {
			cats = append(cats, c)
		}
		sort.Strings(cats)
		cmd.Println("\nBy category:")
		for _, c := range cats {
			cmd.Printf("  %-24s MRR %.3f\n", c, report.CategoryMRR[c])
		}
	}

	var missed []string
	for _, cr := range report.Results {
		if cr.Rank == 0 {
			missed = append(missed, cr.Query)
		}
	}
	if len(missed) > 0 {
		cmd.Printf("\nMissed queries (%d):\n", len(missed))
		for _, q := range missed {
			cmd.Printf("  %s\n", q)
		}
	}
	return nil
}
