package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	cmd.Println(string(data))
	return nil
}

// oneLine collapses whitespace so multi-line snippets fit a single
// terminal row.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
