package jobs

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.SetSize(msg.Width, msg.Height)
		h := msg.Height - 8
		if h < 3 {
			h = 3
		}
		m.table.SetHeight(h)
		m.stageList.SetSize(msg.Width, msg.Height-2)
		m.detailPort.Width = msg.Width - 4
		m.detailPort.Height = h
		return m, nil

	case sessionMsg:
		m.err = msg.err
		m.rebuild()
		return m, waitForSession(m.updates)

	case pollStoppedMsg:
		m.stopped = true
		return m, nil

	case tea.KeyMsg:
		if m.selectingStage {
			return m.updateStageList(msg)
		}
		if m.detail {
			switch {
			case key.Matches(msg, m.keys.Back), key.Matches(msg, m.keys.Detail):
				m.detail = false
			case key.Matches(msg, m.keys.Quit):
				m.Close()
				return m, tea.Quit
			default:
				m.detailPort, cmd = m.detailPort.Update(msg)
			}
			return m, cmd
		}

		switch {
		case key.Matches(msg, m.keys.Quit):
			m.Close()
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.Toggle()
			return m, nil
		case key.Matches(msg, m.keys.Filter):
			m.stageList.SetItems(m.stageItems())
			m.selectingStage = true
			return m, nil
		case key.Matches(msg, m.keys.Clear):
			m.filter = ""
			m.rebuild()
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, m.refreshCmd()
		case key.Matches(msg, m.keys.Detail):
			if len(m.tasks) == 0 {
				return m, nil
			}
			m.detail = true
			m.detailPort.SetContent(m.renderDetail())
			m.detailPort.GotoTop()
			return m, nil
		}
	}

	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) updateStageList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		if item, ok := m.stageList.SelectedItem().(stageItem); ok {
			m.filter = item.stage
			m.rebuild()
		}
		m.selectingStage = false
		return m, nil
	case "esc", "q":
		m.selectingStage = false
		return m, nil
	}
	var cmd tea.Cmd
	m.stageList, cmd = m.stageList.Update(msg)
	return m, cmd
}

func (m Model) renderDetail() string {
	c := m.table.Cursor()
	if c < 0 || c >= len(m.tasks) {
		return ""
	}
	out, err := yaml.Marshal(m.tasks[c])
	if err != nil {
		return err.Error()
	}
	return string(out)
}
