package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDF extracts plain text from PDF attachments, one text block per page.
type PDF struct{}

func (p *PDF) Extensions() []string { return []string{"pdf"} }

func (p *PDF) Parse(ctx context.Context, path string) (*Result, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer f.Close()

	totalPages := reader.NumPage()
	var pages []string

	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// Pages that fail to extract are skipped, not fatal.
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, text)
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("no extractable text in %s", path)
	}

	return &Result{
		Text: strings.Join(pages, "\n\n"),
		Metadata: map[string]string{
			"pages": fmt.Sprintf("%d", totalPages),
		},
	}, nil
}
