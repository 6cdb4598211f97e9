package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Title renders a styled page title.
func Title(text string) string {
	return TitleStyle.Render(text)
}

// StatusKey renders a key hint for the status bar.
func StatusKey(k, desc string) string {
	return StatusBarKeyStyle.Render(k) + StatusBarStyle.Render(":"+desc)
}

// Badge renders a small colored badge.
func Badge(text string, color lipgloss.Color) string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("230")).
		Background(color).
		Padding(0, 1).
		Render(text)
}

// SuccessBadge renders a green badge.
func SuccessBadge(text string) string {
	return Badge(text, Success)
}

// ErrorBadge renders a red badge.
func ErrorBadge(text string) string {
	return Badge(text, Error)
}

// RenderDiagnostics colorizes compiler output line by line: error
// lines red, warning lines orange, "In <file>:" block headers bold,
// everything else dimmed.
func RenderDiagnostics(output string) string {
	var b strings.Builder
	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "error:") || strings.Contains(line, "undefined reference"):
			b.WriteString(ErrorStyle.Render(line))
		case strings.Contains(line, "warning:"):
			b.WriteString(WarningStyle.Render(line))
		case strings.HasPrefix(line, "In ") && strings.HasSuffix(line, ":"):
			b.WriteString(BoldStyle.Render(line))
		default:
			b.WriteString(DimStyle.Render(line))
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Table renders rows under a bold header with columns padded to the
// widest cell.
func Table(header []string, rows [][]string) string {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range header {
		b.WriteString(BoldStyle.Render(pad(h, widths[i])))
		if i < len(header)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteString("\n")
	b.WriteString(DimStyle.Render(strings.Repeat("─", totalWidth(widths))))
	b.WriteString("\n")
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				b.WriteString(pad(cell, widths[i]))
			} else {
				b.WriteString(cell)
			}
			if i < len(row)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func pad(s string, width int) string {
	return fmt.Sprintf("%-*s", width, s)
}

func totalWidth(widths []int) int {
	total := 0
	for _, w := range widths {
		total += w + 2
	}
	if total >= 2 {
		total -= 2
	}
	return total
}
