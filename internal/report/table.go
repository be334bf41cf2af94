package report

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Table renders an aligned markdown table. Widths are measured as display
// width so country and article names outside the Latin range stay lined up.
func Table(headers []string, rows [][]string) string {
	colCount := len(headers)
	for _, row := range rows {
		if len(row) > colCount {
			colCount = len(row)
		}
	}
	if colCount == 0 {
		return ""
	}

	colWidths := make([]int, colCount)
	measure := func(cells []string) {
		for i := 0; i < len(cells) && i < colCount; i++ {
			if w := runewidth.StringWidth(cells[i]); w > colWidths[i] {
				colWidths[i] = w
			}
		}
	}
	measure(headers)
	for _, row := range rows {
		measure(row)
	}

	// Keep room for the separator's minimum three dashes.
	for i := range colWidths {
		if colWidths[i] < 3 {
			colWidths[i] = 3
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		sb.WriteString("|")
		for j := 0; j < colCount; j++ {
			content := ""
			if j < len(cells) {
				content = cells[j]
			}
			sb.WriteString(" ")
			sb.WriteString(content)
			if padding := colWidths[j] - runewidth.StringWidth(content); padding > 0 {
				sb.WriteString(strings.Repeat(" ", padding))
			}
			sb.WriteString(" |")
		}
		sb.WriteString("\n")
	}

	writeRow(headers)
	sb.WriteString("|")
	for j := 0; j < colCount; j++ {
		sb.WriteString(" ")
		sb.WriteString(strings.Repeat("-", colWidths[j]))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(row)
	}

	return sb.String()
}
