package main

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// column describes one table column. Numeric columns align right; a
// positive Width trims longer cells with an ellipsis.
type column struct {
	Title   string
	Numeric bool
	Width   int
}

var (
	indexColumn = column{Title: "#", Numeric: true}
	uriColumn   = column{Title: "URI"}
)

// renderTable lays out rows under columns and closes with a count of
// the listed noun ("3 books").
func renderTable(columns []column, rows [][]string, noun string) string {
	if len(columns) == 0 {
		return ""
	}
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Header = text.FormatDefault
	tw.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, len(columns))
	configs := make([]table.ColumnConfig, len(columns))
	for i, col := range columns {
		header[i] = col.Title
		configs[i] = table.ColumnConfig{Number: i + 1, AlignHeader: text.AlignLeft}
		if col.Numeric {
			configs[i].Align = text.AlignRight
		}
	}
	tw.AppendHeader(header)
	tw.SetColumnConfigs(configs)

	for _, row := range rows {
		cells := make(table.Row, len(columns))
		for i, col := range columns {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if col.Width > 0 {
				cell = truncate(cell, col.Width)
			}
			cells[i] = cell
		}
		tw.AppendRow(cells)
	}
	if noun != "" {
		tw.AppendFooter(table.Row{countLabel(len(rows), noun)})
	}
	return tw.Render()
}

func countLabel(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	return string(runes[:limit-1]) + "…"
}
