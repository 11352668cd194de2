package main

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/mattn/go-runewidth"

	"github.com/JonMunkholm/sheetview/internal/core"
)

const ellipsis = "…"

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	frozenStyle = cellStyle.Foreground(lipgloss.Color("214"))
	rownumStyle = cellStyle.Foreground(lipgloss.Color("245")).Align(lipgloss.Right)
	numberStyle = cellStyle.Align(lipgloss.Right)
	nullStyle   = cellStyle.Foreground(lipgloss.Color("240"))
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// truncate shortens s to at most width display columns.
func truncate(s string, width int) string {
	if width <= 0 || runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, ellipsis)
}

// renderTable draws the window as a bordered terminal table. Column 0 holds
// the 1-based data row number.
func renderTable(resp *core.WindowResponse, width int) string {
	cols := resp.ColumnCount()

	headers := make([]string, cols+1)
	headers[0] = "#"
	for i := 0; i < cols; i++ {
		headers[i+1] = truncate(resp.HeaderRow.At(i).String(), width)
	}

	rows := make([][]string, len(resp.VisibleRows))
	for r, vr := range resp.VisibleRows {
		row := make([]string, cols+1)
		row[0] = strconv.Itoa(vr.RowIndex + 1)
		for c := 0; c < cols; c++ {
			row[c+1] = truncate(vr.Cells.At(c).String(), width)
		}
		rows[r] = row
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if row < 0 || row >= len(resp.VisibleRows) {
				return cellStyle
			}
			if col == 0 {
				return rownumStyle
			}
			vr := resp.VisibleRows[row]
			if vr.Frozen {
				return frozenStyle
			}
			switch vr.Cells.At(col - 1).Kind() {
			case core.KindNumber:
				return numberStyle
			case core.KindNull:
				return nullStyle
			}
			return cellStyle
		})
	return t.Render()
}

// footer summarizes the window position and parse time.
func footer(resp *core.WindowResponse, elapsedMs int64) string {
	meta := resp.Meta
	var pos string
	switch {
	case resp.TotalRows == 0:
		pos = "No rows"
	case meta.TotalPages > 0:
		pos = fmt.Sprintf("Page %d of %d (%d rows)", meta.Page, meta.TotalPages, resp.TotalRows)
	default:
		pos = fmt.Sprintf("Rows %d-%d of %d", meta.Start+1, meta.End, resp.TotalRows)
	}
	return fmt.Sprintf("%s · sheet %s · parsed in %dms", pos, meta.Sheet, elapsedMs)
}
