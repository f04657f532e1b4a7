package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow vault changes and keep the index current",
	Long: `Watches the vault for file changes and reindexes edited documents
after a short debounce window. With auto_index enabled the index is first
reconciled against the vault, so edits made while lodestone was not running
are picked up too. Runs until interrupted.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signalContext()
	defer stop()

	if cfg.AutoIndex {
		if _, err := eng.CheckChanges(ctx); err != nil {
			slog.Warn("startup reconciliation failed", "error", err)
		}
	}

	if err := eng.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watching: %w", err)
	}
	return nil
}
