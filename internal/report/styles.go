package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles for the console transcript. Colors are dropped automatically when
// the writer is not a terminal.
type Styles struct {
	Title  lipgloss.Style
	Label  lipgloss.Style
	Value  lipgloss.Style
	Subtle lipgloss.Style
	OK     lipgloss.Style
	Error  lipgloss.Style
}

func NewStyles(w io.Writer) Styles {
	r := lipgloss.NewRenderer(w)
	return Styles{
		Title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ffff")),
		Label: r.NewStyle().
			Foreground(lipgloss.Color("#888899")),
		Value: r.NewStyle().
			Foreground(lipgloss.Color("#00ccff")).
			Bold(true),
		Subtle: r.NewStyle().
			Foreground(lipgloss.Color("#666688")),
		OK: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00ff88")),
		Error: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff4444")),
	}
}
