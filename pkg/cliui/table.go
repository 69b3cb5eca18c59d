package cliui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var tableHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true).Padding(0, 1)
var tableCellStyle = lipgloss.NewStyle().Padding(0, 1)

// ResultTable renders query rows as a bordered table. Columns keep the
// given order; missing values render as NULL.
func ResultTable(columns []string, rows []map[string]any) string {
	cells := make([][]string, 0, len(rows))
	for _, row := range rows {
		line := make([]string, len(columns))
		for i, col := range columns {
			line[i] = formatCell(row[col])
		}
		cells = append(cells, line)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(DimStyle).
		Headers(columns...).
		Rows(cells...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			return tableCellStyle
		})

	return t.String()
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case float64:
		// JSON numbers decode as float64; print integers without a fraction.
		if x == float64(int64(x)) {
			return fmt.Sprintf("%d", int64(x))
		}
		return fmt.Sprintf("%g", x)
	default:
		return fmt.Sprint(x)
	}
}
