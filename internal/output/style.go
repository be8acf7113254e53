package output

import "github.com/charmbracelet/lipgloss"

var (
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
)

// Success renders s in the success color. Colors are dropped when stdout is not a terminal.
func Success(s string) string { return successStyle.Render(s) }

// Warning renders s in the warning color.
func Warning(s string) string { return warningStyle.Render(s) }

// Failure renders s in the failure color.
func Failure(s string) string { return failureStyle.Render(s) }
