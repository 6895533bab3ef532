package cli

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/adnansarkar/revmig/internal/catalog"
	"github.com/adnansarkar/revmig/internal/checksum"
	"github.com/adnansarkar/revmig/internal/runner"
)

const (
	statusApplied = "applied"
	statusPending = "pending"
)

// renderList prints the executed/pending partition of the catalog. It
// never touches the tracking store beyond the read the caller already did.
func (c *CLI) renderList(rctx *RunContext, cat *catalog.Catalog, applied []string) error {
	ordered := cat.Ordered(catalog.DirUp)
	executed, _ := runner.Partition(ordered, applied)
	set := make(map[string]bool, len(executed))
	for _, m := range executed {
		set[m.Name] = true
	}

	rows := make([][]string, 0, len(ordered))
	for _, m := range ordered {
		status := statusPending
		if set[m.Name] {
			status = statusApplied
		}
		sum := "-"
		if b, err := m.Raw(); err == nil {
			sum = checksum.Short(b)
		}
		rows = append(rows, []string{strconv.FormatInt(m.Revision, 10), m.Name, status, sum})
	}
	return renderTable([]string{"REVISION", "NAME", "STATUS", "CHECKSUM"}, rows, rctx.Stdout)
}

func renderTable(header []string, data [][]string, w io.Writer) error {
	table := tablewriter.NewTable(w,
		tablewriter.WithRenderer(renderer.NewBlueprint(
			tw.Rendition{
				Borders: tw.BorderNone,
				Symbols: tw.NewSymbols(tw.StyleASCII),
				Settings: tw.Settings{
					Lines: tw.Lines{
						ShowHeaderLine: tw.Off,
						ShowFooterLine: tw.Off,
						ShowTop:        tw.Off,
						ShowBottom:     tw.Off,
					},
					Separators: tw.Separators{
						ShowHeader:     tw.Off,
						ShowFooter:     tw.Off,
						BetweenRows:    tw.Off,
						BetweenColumns: tw.Off,
					},
				},
			},
		)),
		tablewriter.WithConfig(tablewriter.Config{
			Header: tw.CellConfig{
				Alignment: tw.CellAlignment{Global: tw.AlignLeft},
			},
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
	)

	table.Header(header)
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
