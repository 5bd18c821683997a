package tui

import "github.com/charmbracelet/lipgloss"

// Job states shown in the STATUS column.
const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

var (
	// HeaderStyle styles the column header row.
	HeaderStyle = lipgloss.NewStyle().Bold(true)
	// TitleStyle styles the table title.
	TitleStyle = lipgloss.NewStyle().Bold(true).Underline(true)

	faintStyle = lipgloss.NewStyle().Faint(true)

	statusStyles = map[string]lipgloss.Style{
		StatusDone:    lipgloss.NewStyle().Foreground(lipgloss.Color("2")),
		StatusRunning: lipgloss.NewStyle().Foreground(lipgloss.Color("4")),
		StatusFailed:  lipgloss.NewStyle().Foreground(lipgloss.Color("1")),
		StatusPending: faintStyle,
	}
)

// StatusStyle returns the lipgloss style for the given status string.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
