package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/gocarina/gocsv"
	"github.com/pearl-agents/staking-sidecar/pkg/stakingTypes"
	"golang.org/x/term"
)

const (
	outputTable = "table"
	outputJson  = "json"
	outputCsv   = "csv"
)

var (
	colorDim = lipgloss.Color("#4b5563")

	styleTableHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleTableRow    = lipgloss.NewStyle().Padding(0, 1)
)

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func validateOutput(output string, allowed ...string) error {
	for _, a := range allowed {
		if output == a {
			return nil
		}
	}
	return fmt.Errorf("%w: output '%s', expected one of %s", stakingTypes.ErrInvalidArgument, output, strings.Join(allowed, ", "))
}

// renderTable renders rows as a bordered table on a terminal and as aligned plain text otherwise.
func renderTable(headers []string, rows [][]string) string {
	if !isTTY() {
		return renderTablePlain(headers, rows)
	}
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			return styleTableRow
		}).
		Headers(headers...).
		Rows(rows...).
		String()
}

func renderTablePlain(headers []string, rows [][]string) string {
	if len(headers) == 0 {
		return ""
	}
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var sb strings.Builder
	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i >= len(widths) {
				break
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			sb.WriteString(fmt.Sprintf("%-*s", widths[i], cell))
		}
		sb.WriteString("\n")
	}
	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}
	return sb.String()
}

func writeJson(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeCsv(w io.Writer, rows interface{}) error {
	return gocsv.Marshal(rows, w)
}
