package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

const (
	colorGray   = "#353b52"
	colorBlue   = "#89ddff"
	colorPurple = "#b9a3eb"
	colorDim    = "#7a819d"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(colorBlue)).
			Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorGray))
	labelStyle  = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color(colorPurple))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(colorDim))
)

func renderTable(w io.Writer, headers []string, rows [][]string) {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)

	fmt.Fprintln(w, t.Render())
}

// renderFields prints label/value pairs with aligned labels. Empty values
// are shown dimmed as "-".
func renderFields(w io.Writer, fields [][2]string) {
	width := 0
	for _, f := range fields {
		width = max(width, len(f[0]))
	}

	for _, f := range fields {
		label := labelStyle.Render(f[0] + ":" + strings.Repeat(" ", width-len(f[0])))
		value := f[1]
		if value == "" {
			value = dimStyle.Render("-")
		}
		fmt.Fprintf(w, "%s %s\n", label, value)
	}
}

func deref[T any](v *T) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(*v)
}
