package parser

import (
	"context"
	"fmt"
	"os"
)

// Text handles plain text formats: markdown and .txt files.
type Text struct{}

func (p *Text) Extensions() []string { return []string{"md", "markdown", "txt"} }

func (p *Text) Parse(ctx context.Context, path string) (*Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading text file: %w", err)
	}
	return &Result{Text: string(data)}, nil
}
