// Package styles derives the status and panel styles of the voice views from the
// shared grove theme palette.
package styles

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"
)

var (
	Success = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Green)
	Warning = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Orange)
	Error   = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Red).Bold(true)

	// Box frames the preview pane and the recorder panel.
	Box = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.DefaultTheme.Colors.Border).
		Padding(0, 1)
)

// Status picks the style of a task status label.
func Status(status string) lipgloss.Style {
	switch status {
	case "Running":
		return Warning
	case "Completed":
		return Success
	case "Failed":
		return Error
	default:
		return theme.DefaultTheme.Muted
	}
}
