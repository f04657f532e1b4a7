package main

import (
	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index readiness and row counts",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print the status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	eng, err := newEngine()
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signalContext()
	defer stop()

	status, err := eng.Status(ctx)
	if err != nil {
		return err
	}

	if statusJSON {
		return printJSON(cmd, status)
	}
	cmd.Printf("Database:   %s\n", status.DBPath)
	if status.Ready {
		cmd.Printf("Built at:   %s\n", status.BuiltAt)
	} else {
		cmd.Println("Built at:   never (run \"lodestone index\")")
	}
	cmd.Printf("Documents:  %d\n", status.Documents)
	cmd.Printf("Chunks:     %d\n", status.Chunks)
	cmd.Printf("Embeddings: %d\n", status.Embeddings)
	cmd.Printf("Graph:      %d nodes, %d edges\n", status.GraphNodes, status.GraphEdges)
	return nil
}
