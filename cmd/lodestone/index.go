package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	indexJSON bool
	checkJSON bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the index from a full vault scan",
	Long: `Scans every document in the vault and indexes it: chunking,
fulltext rows, embeddings when a provider is configured, and the link
graph. Documents whose content hash is unchanged are skipped, so re-running
after an interrupted build only does the remaining work.`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Reconcile the index against the vault",
	Long: `Compares stored document metadata against a fresh scan. New and
edited documents are reindexed, vanished documents are removed, and files
whose modification time changed but whose content did not are refreshed
without reindexing.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	indexCmd.Flags().BoolVar(&indexJSON, "json", false, "print the summary as JSON")
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "print the result as JSON")
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(checkCmd)
}

func runIndex(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signalContext()
	defer stop()

	summary, err := eng.IndexAll(ctx)
	if err != nil {
		return fmt.Errorf("indexing: %w", err)
	}

	if indexJSON {
		return printJSON(cmd, summary)
	}
	cmd.Printf("Indexed %d of %d documents in %s\n",
		summary.Indexed, summary.Scanned, summary.Elapsed.Round(time.Millisecond))
	if summary.Failed > 0 {
		cmd.Printf("%d documents failed, see the log for details\n", summary.Failed)
	}
	return nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signalContext()
	defer stop()

	result, err := eng.CheckChanges(ctx)
	if err != nil {
		return fmt.Errorf("checking for changes: %w", err)
	}

	if checkJSON {
		return printJSON(cmd, result)
	}
	if result.Changed == 0 && result.Deleted == 0 && result.Touched == 0 {
		cmd.Printf("Index is up to date (%d documents scanned in %s)\n",
			result.Scanned, result.Elapsed.Round(time.Millisecond))
		return nil
	}
	cmd.Printf("Reindexed %d, removed %d, refreshed %d of %d documents in %s\n",
		result.Changed, result.Deleted, result.Touched, result.Scanned,
		result.Elapsed.Round(time.Millisecond))
	return nil
}
