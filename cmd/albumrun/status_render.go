package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"albumrun/internal/report"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const statusLabelWidth = 20

var statusStyles = map[statusKind]lipgloss.Style{
	statusInfo:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
	statusOK:    lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	statusWarn:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	statusError: lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true),
}

var headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))

func (k statusKind) label() string {
	switch k {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// renderStatusLine formats "  label:   [KIND] message" with the label padded
// to a fixed width.
func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	status := "[" + kind.label() + "]"
	if message != "" {
		status += " " + message
	}
	line := fmt.Sprintf("  %-*s %s", statusLabelWidth, label+":", status)
	if colorize {
		return statusStyles[kind].Render(line)
	}
	return line
}

func renderCheckLine(name string, passed bool, detail string, colorize bool) string {
	if passed {
		return renderStatusLine(name, statusOK, detail, colorize)
	}
	return renderStatusLine(name, statusError, detail, colorize)
}

func renderSectionHeader(title string, colorize bool) []string {
	line := "== " + strings.TrimSpace(title) + " =="
	rule := strings.Repeat("-", len(line))
	if colorize {
		return []string{headerStyle.Render(line), headerStyle.Render(rule)}
	}
	return []string{line, rule}
}

func shouldColorize(w io.Writer) bool {
	return report.ShouldColor(w)
}
