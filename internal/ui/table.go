package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
)

const (
	tableCellMaxWidth = 50
	tableCellEllipsis = "..."
	tableGap          = "  "
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	cellSpaces  = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ", "\t", " ")
)

// TableBuilder collects rows and renders them as an aligned table.
type TableBuilder struct {
	headers []string
	rows    [][]string
}

func NewTableBuilder(headers []string, capacity int) *TableBuilder {
	return &TableBuilder{headers: headers, rows: make([][]string, 0, capacity)}
}

func (b *TableBuilder) AddRow(row []string) {
	b.rows = append(b.rows, row)
}

func (b *TableBuilder) String() string {
	return FormatTable(b.headers, b.rows)
}

// FormatTable renders headers and rows with columns padded to their widest
// cell. Headers are bold when stdout is a color terminal.
func FormatTable(headers []string, rows [][]string) string {
	cells := make([][]string, 0, len(rows)+1)
	cells = append(cells, flattenRow(headers))
	for _, row := range rows {
		cells = append(cells, flattenRow(row))
	}

	widths := make([]int, len(headers))
	for _, row := range cells {
		for i, cell := range row[:min(len(row), len(widths))] {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var out strings.Builder
	for n, row := range cells {
		for i, cell := range row {
			width := lipgloss.Width(cell)
			if n == 0 && ColorEnabled() {
				cell = headerStyle.Render(cell)
			}
			out.WriteString(cell)
			if i == len(row)-1 {
				break
			}
			if i < len(widths) {
				out.WriteString(strings.Repeat(" ", widths[i]-width))
			}
			out.WriteString(tableGap)
		}
		out.WriteByte('\n')
	}
	return out.String()
}

// TruncateTableCell flattens value onto one line and shortens it to the
// maximum cell width. Escape sequences do not count toward the width.
func TruncateTableCell(value string) string {
	value = cellSpaces.Replace(value)
	if lipgloss.Width(value) <= tableCellMaxWidth {
		return value
	}
	return truncate.StringWithTail(value, tableCellMaxWidth, tableCellEllipsis)
}

func flattenRow(row []string) []string {
	out := make([]string, len(row))
	for i, cell := range row {
		out[i] = cellSpaces.Replace(cell)
	}
	return out
}
