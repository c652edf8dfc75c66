package jobs

import (
	"fmt"
	"strings"

	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-voice/internal/tui/styles"
)

func (m Model) View() string {
	if m.help.ShowAll {
		return m.help.View()
	}
	if m.selectingStage {
		return m.stageList.View()
	}

	var s strings.Builder

	title := "Jobs"
	if m.filter != "" {
		title = fmt.Sprintf("Jobs - %s", m.filter.Title())
	}
	s.WriteString(theme.DefaultTheme.Header.Render(title) + "\n\n")

	if m.detail {
		s.WriteString(m.detailPort.View() + "\n\n")
		s.WriteString(theme.DefaultTheme.Muted.Render("esc to go back"))
		return s.String()
	}

	if len(m.tasks) == 0 {
		s.WriteString(theme.DefaultTheme.Muted.Render("No tasks in this session.") + "\n")
	} else {
		s.WriteString(m.colorize(m.table.View()) + "\n")
	}

	var status []string
	status = append(status, fmt.Sprintf("%d tasks", len(m.tasks)))
	if at := m.source.FetchedAt(); !at.IsZero() {
		status = append(status, "updated "+at.Format("15:04:05"))
	}
	if m.stopped {
		status = append(status, "polling stopped")
	}
	s.WriteString(theme.DefaultTheme.Muted.Render(strings.Join(status, " · ")) + "\n")
	if m.err != nil {
		s.WriteString(styles.Error.Render(m.err.Error()) + "\n")
	}
	s.WriteString("\n" + m.help.View())
	return s.String()
}

// colorize applies status colors to the rendered table.
func (m Model) colorize(table string) string {
	for _, status := range []string{"Running", "Completed", "Failed"} {
		table = strings.ReplaceAll(table, " "+status+" ", " "+styles.Status(status).Render(status)+" ")
	}
	return table
}
