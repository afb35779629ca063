package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"albumrun/internal/classify"
	"albumrun/internal/execution"
)

// RunSummary aggregates the outcome of one run. Unit ids are listed in the
// order the units were classified, not the order they completed.
type RunSummary struct {
	Total     int
	Succeeded []string
	Failed    []string
	// Skipped holds units never dispatched because the run was interrupted.
	Skipped []string
	// Interrupted holds units stopped between attempts by cancellation.
	Interrupted []string
}

// Summarize builds a RunSummary for units from the results the scheduler
// produced. Results are matched to units by index.
func Summarize(units []classify.WorkUnit, results []execution.JobResult) RunSummary {
	byIndex := make(map[int]execution.JobResult, len(results))
	for _, r := range results {
		byIndex[r.Index] = r
	}
	summary := RunSummary{Total: len(units)}
	for i, unit := range units {
		r, ok := byIndex[i]
		switch {
		case !ok:
			summary.Skipped = append(summary.Skipped, unit.ID)
		case r.Status == execution.StatusSucceeded:
			summary.Succeeded = append(summary.Succeeded, unit.ID)
		case r.Status == execution.StatusInterrupted:
			summary.Interrupted = append(summary.Interrupted, unit.ID)
		default:
			summary.Failed = append(summary.Failed, unit.ID)
		}
	}
	return summary
}

// ExitCode is 0 when no unit failed and 1 otherwise. Skipped and interrupted
// units do not count as failures.
func ExitCode(summary RunSummary) int {
	if len(summary.Failed) > 0 {
		return 1
	}
	return 0
}

// Options control rendering.
type Options struct {
	Color bool
	// Elapsed is the wall-clock run time; zero omits it.
	Elapsed time.Duration
}

// ShouldColor reports whether w is a terminal.
func ShouldColor(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
)

type painter struct{ color bool }

func (p painter) paint(style lipgloss.Style, s string) string {
	if !p.color {
		return s
	}
	return style.Render(s)
}

// Render writes the end-of-run report: counts, a table of failed units with
// their log paths, then the ordered succeeded and failed id lists.
func Render(w io.Writer, summary RunSummary, results []execution.JobResult, opts Options) error {
	p := painter{color: opts.Color}
	var b strings.Builder

	header := fmt.Sprintf("Run summary: %d total, %d succeeded, %d failed", summary.Total, len(summary.Succeeded), len(summary.Failed))
	if len(summary.Skipped) > 0 {
		header += fmt.Sprintf(", %d skipped", len(summary.Skipped))
	}
	if len(summary.Interrupted) > 0 {
		header += fmt.Sprintf(", %d interrupted", len(summary.Interrupted))
	}
	if opts.Elapsed > 0 {
		header += fmt.Sprintf(" in %s", opts.Elapsed.Round(time.Second))
	}
	b.WriteString(p.paint(titleStyle, header))
	b.WriteString("\n")

	if failedTable := FailedTable(summary, results); failedTable != "" {
		b.WriteString("\n")
		b.WriteString(failedTable)
		b.WriteString("\n")
	}

	writeList(&b, p, "Succeeded", summary.Succeeded, okStyle)
	writeList(&b, p, "Failed", summary.Failed, errStyle)
	writeList(&b, p, "Interrupted", summary.Interrupted, mutedStyle)
	writeList(&b, p, "Skipped", summary.Skipped, mutedStyle)

	if len(summary.Failed) > 0 {
		b.WriteString("\n")
		b.WriteString(p.paint(mutedStyle, "Re-run the failed folders after checking their logs."))
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, p painter, title string, ids []string, style lipgloss.Style) {
	if len(ids) == 0 {
		return
	}
	b.WriteString("\n")
	b.WriteString(p.paint(style, fmt.Sprintf("%s (%d):", title, len(ids))))
	b.WriteString("\n")
	for _, id := range ids {
		b.WriteString("  ")
		b.WriteString(id)
		b.WriteString("\n")
	}
}

// FailedTable renders failed units in input order with attempts, last error
// and log path. It returns "" when nothing failed.
func FailedTable(summary RunSummary, results []execution.JobResult) string {
	if len(summary.Failed) == 0 {
		return ""
	}
	byID := make(map[string]execution.JobResult, len(results))
	for _, r := range results {
		byID[r.Unit.ID] = r
	}
	rows := make([][]string, 0, len(summary.Failed))
	for _, id := range summary.Failed {
		r := byID[id]
		rows = append(rows, []string{
			id,
			strconv.Itoa(r.AttemptsUsed),
			r.Error,
			r.LogPath,
		})
	}
	return RenderTable(
		[]string{"Unit", "Attempts", "Last error", "Log"},
		rows,
		[]Alignment{AlignLeft, AlignRight, AlignLeft, AlignLeft},
	)
}

// Alignment selects column alignment for RenderTable.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
)

// RenderTable renders rows with the rounded table style used across the CLI.
func RenderTable(headers []string, rows [][]string, aligns []Alignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == AlignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}
