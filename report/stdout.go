package report

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/xerrors"

	"github.com/aquasecurity/cms-auditor/analysis"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).MarginTop(1)
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// TableWriter prints every non-empty table to the console.
type TableWriter struct {
	out io.Writer
}

func NewTableWriter(out io.Writer) TableWriter {
	return TableWriter{out: out}
}

func (w TableWriter) Write(result analysis.Result) error {
	for _, t := range tables(result) {
		if len(t.rows) == 0 {
			continue
		}
		if _, err := fmt.Fprintln(w.out, titleStyle.Render(t.title)); err != nil {
			return xerrors.Errorf("failed to print the %s table: %w", t.title, err)
		}
		if _, err := fmt.Fprintln(w.out, render(t)); err != nil {
			return xerrors.Errorf("failed to print the %s table: %w", t.title, err)
		}
	}
	return nil
}

func render(t section) string {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(t.headings...).
		Rows(t.rows...).
		String()
}
