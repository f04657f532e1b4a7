package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// XLSX renders spreadsheet sheets as pipe-separated text, one block per
// sheet headed by the sheet name.
type XLSX struct{}

func (p *XLSX) Extensions() []string { return []string{"xlsx", "xlsm"} }

func (p *XLSX) Parse(ctx context.Context, path string) (*Result, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening XLSX: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	sheets := 0

	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil || len(rows) == 0 {
			continue
		}

		if sheets > 0 {
			b.WriteString("\n")
		}
		b.WriteString("# " + sheet + "\n\n")
		for _, row := range rows {
			b.WriteString("| " + strings.Join(row, " | ") + " |\n")
		}
		sheets++
	}

	if sheets == 0 {
		return nil, fmt.Errorf("no data found in %s", path)
	}

	return &Result{
		Text: b.String(),
		Metadata: map[string]string{
			"sheets": fmt.Sprintf("%d", sheets),
		},
	}, nil
}
