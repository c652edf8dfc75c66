package browser

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-voice/internal/tui/styles"
	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/files"
	"github.com/mattsolo1/grove-voice/pkg/models"
)

func (m Model) View() string {
	if m.help.ShowAll {
		return m.help.View()
	}

	var body string
	if m.confirm.Active {
		body = m.confirm.View()
	} else {
		body = m.renderItems()
		if m.preview != nil {
			body = lipgloss.JoinHorizontal(lipgloss.Top, body, m.renderPreview())
		}
	}

	fullView := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		"",
		body,
		"",
		m.renderStatusLine(),
		m.help.View(),
	)

	return "\n" + fullView
}

func (m Model) renderHeader() string {
	crumbs := m.nav.Breadcrumbs()
	parts := make([]string, len(crumbs))
	for i, c := range crumbs {
		label := fmt.Sprintf("%d:%s", i+1, c.Name)
		if i == len(crumbs)-1 {
			parts[i] = theme.DefaultTheme.Header.Render(label)
		} else {
			parts[i] = theme.DefaultTheme.Muted.Render(label)
		}
	}
	header := strings.Join(parts, theme.DefaultTheme.Muted.Render(" / "))
	if n := m.nav.Selection().Len(); n > 0 {
		header += theme.DefaultTheme.Info.Render(fmt.Sprintf("  [%d selected]", n))
	}
	if m.loading {
		header += " " + m.spinner.View()
	}
	return header
}

func (m Model) renderItems() string {
	if m.loading && len(m.items) == 0 {
		return m.spinner.View() + " Loading..."
	}
	if len(m.items) == 0 {
		return theme.DefaultTheme.Muted.Render("(empty folder)")
	}
	if m.viewMode == gridView {
		return m.renderGrid()
	}
	return m.renderList()
}

func (m Model) renderList() string {
	var b strings.Builder
	width := m.listWidth()
	nameWidth := width - 30
	if nameWidth < 12 {
		nameWidth = 12
	}

	rows := m.getViewportHeight()
	end := m.scrollOffset + rows
	if end > len(m.items) {
		end = len(m.items)
	}
	for i := m.scrollOffset; i < end; i++ {
		item := m.items[i]
		mark := " "
		if m.nav.Selection().Has(item.Path) {
			mark = "✓"
		}
		size := ""
		if !item.IsDir() {
			size = formatSize(item.Size)
		}
		name := truncate(item.Name, nameWidth)
		line := fmt.Sprintf("%s %s %-*s %10s  %s", mark, itemIcon(item), nameWidth, name, size, formatRelativeTime(item.LastModified))
		switch {
		case i == m.cursor:
			line = theme.DefaultTheme.Highlight.Render(line)
		case m.nav.Selection().Has(item.Path):
			line = theme.DefaultTheme.Selected.Render(line)
		case item.IsDir():
			line = theme.DefaultTheme.Info.Render(line)
		}
		b.WriteString(line)
		if i < end-1 {
			b.WriteString("\n")
		}
	}
	return lipgloss.NewStyle().Width(width).Render(b.String())
}

func (m Model) renderGrid() string {
	cols := m.gridColumns()
	rows := m.getViewportHeight()
	cell := lipgloss.NewStyle().Width(gridCellWidth)

	var lines []string
	for r := m.scrollOffset; r < m.scrollOffset+rows; r++ {
		start := r * cols
		if start >= len(m.items) {
			break
		}
		var cells []string
		for c := 0; c < cols && start+c < len(m.items); c++ {
			i := start + c
			item := m.items[i]
			label := itemIcon(item) + " " + truncate(item.Name, gridCellWidth-4)
			if m.nav.Selection().Has(item.Path) {
				label = "✓" + label
			}
			style := cell
			if i == m.cursor {
				style = style.Inherit(theme.DefaultTheme.Highlight)
			} else if item.IsDir() {
				style = style.Inherit(theme.DefaultTheme.Info)
			}
			cells = append(cells, style.Render(label))
		}
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, cells...))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderPreview() string {
	p := m.preview
	var b strings.Builder
	b.WriteString(theme.DefaultTheme.Header.Render(p.Name))
	b.WriteString("\n")

	switch {
	case p.Placeholder != "":
		b.WriteString(theme.DefaultTheme.Muted.Render(p.Placeholder))
	case p.Kind == files.PreviewText:
		b.WriteString(m.previewPort.View())
	case p.Kind == files.PreviewImage:
		b.WriteString(fmt.Sprintf("image %d×%d", p.Width, p.Height))
	case p.Kind == files.PreviewAudio:
		b.WriteString(m.renderAudio())
	}

	width := m.width - m.listWidth() - 2
	if width < 10 {
		width = 10
	}
	return styles.Box.Width(width).Render(b.String())
}

func (m Model) renderAudio() string {
	if m.player == nil {
		return m.spinner.View() + " loading audio"
	}
	switch m.playerState {
	case audio.StateEmpty, audio.StateLoading:
		return m.spinner.View() + " loading audio"
	case audio.StateUnplayable:
		msg := "cannot play this file"
		if err := m.player.Err(); err != nil {
			msg = err.Error()
		}
		return styles.Error.Render(msg)
	}

	var b strings.Builder
	if w := m.player.Waveform(); w != nil {
		played, remaining := w.Render(m.previewPort.Width, m.player.Progress())
		b.WriteString(styles.Warning.Render(played))
		b.WriteString(theme.DefaultTheme.Muted.Render(remaining))
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%s / %s", models.FormatDuration(m.player.Position()), models.FormatDuration(w.Duration)))
	} else {
		b.WriteString(models.FormatDuration(m.player.Position()))
	}
	b.WriteString("  ")
	if m.playerState == audio.StatePlaying {
		b.WriteString(styles.Success.Render("▶ playing"))
	} else {
		b.WriteString(theme.DefaultTheme.Muted.Render("⏸ paused (p to play)"))
	}
	return b.String()
}

func (m Model) renderStatusLine() string {
	if m.inputMode != inputNone {
		return m.input.View()
	}
	if m.toast == "" {
		return ""
	}
	if m.toastLevel == files.LevelError {
		return styles.Error.Render(m.toast)
	}
	return styles.Success.Render(m.toast)
}
