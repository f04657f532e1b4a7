package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillforge/lodestone"
)

var (
	searchLimit  int
	searchFolder string
	searchActive string
	searchJSON   bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search the indexed vault",
	Long: `Runs a hybrid search over the index: the fulltext, vector, and
metadata lanes are fused by reciprocal rank fusion, then usage and
graph-proximity boosts reorder the fused list.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 0, "maximum number of results")
	searchCmd.Flags().StringVar(&searchFolder, "folder", "", "restrict results to one folder")
	searchCmd.Flags().StringVar(&searchActive, "active", "", "path of the currently open note, boosts its link neighbourhood")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signalContext()
	defer stop()

	var opts []lodestone.SearchOption
	if searchLimit > 0 {
		opts = append(opts, lodestone.WithTopK(searchLimit))
	}
	if searchFolder != "" {
		opts = append(opts, lodestone.WithFolder(searchFolder))
	}
	if searchActive != "" {
		opts = append(opts, lodestone.WithActivePath(searchActive))
	}

	results, trace, err := eng.Search(ctx, args[0], opts...)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return printJSON(cmd, map[string]interface{}{
			"results": results,
			"trace":   trace,
		})
	}

	if len(results) == 0 {
		cmd.Println("No results.")
		return nil
	}
	for i, r := range results {
		title := r.Title
		if title == "" {
			title = r.Path
		}
		cmd.Printf("%2d. %s  (%.3f)\n", i+1, title, r.Score)
		cmd.Printf("    %s", r.Path)
		if len(r.Sources) > 0 {
			cmd.Printf("  [%s]", strings.Join(r.Sources, " "))
		}
		cmd.Println()
		if r.Snippet != "" {
			cmd.Printf("    %s\n", oneLine(r.Snippet))
		}
	}
	cmd.Printf("\n%d results in %dms (fulltext %d, vector %d, meta %d)\n",
		len(results), trace.ElapsedMs, trace.FulltextHits, trace.VectorHits, trace.MetaHits)
	return nil
}
