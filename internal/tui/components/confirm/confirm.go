package confirm

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/theme"
)

// --- Messages ---

// ConfirmedMsg is sent when the user confirms the action.
type ConfirmedMsg struct {
	Payload any
}

// CancelledMsg is sent when the user cancels the action.
type CancelledMsg struct{}

// --- Model ---

// Model represents a confirmation dialog. After confirmation it can stay open in a
// busy state until the caller calls Settle.
type Model struct {
	Active  bool
	Busy    bool
	Prompt  string
	Items   []string
	Payload any

	// StayOpen keeps the dialog visible and busy after confirmation.
	StayOpen bool

	spinner spinner.Model
	keys    keyMap
}

// New creates a new confirmation dialog model.
func New() Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Orange)
	return Model{
		spinner: s,
		keys:    defaultKeyMap,
	}
}

// Activate prepares the dialog for display with a given prompt.
func (m *Model) Activate(prompt string) {
	m.ActivateWith(prompt, nil, nil)
}

// ActivateWith shows prompt above a list of items; payload is echoed in ConfirmedMsg.
func (m *Model) ActivateWith(prompt string, items []string, payload any) {
	m.Prompt = prompt
	m.Items = items
	m.Payload = payload
	m.Active = true
	m.Busy = false
}

// Settle closes the dialog once the confirmed action has finished.
func (m *Model) Settle() {
	m.Active = false
	m.Busy = false
	m.Payload = nil
	m.Items = nil
}

// --- Update ---

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if !m.Active {
		return m, nil
	}

	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !m.Busy {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case tea.KeyMsg:
		if m.Busy {
			return m, nil
		}
		switch {
		case key.Matches(msg, m.keys.Confirm):
			payload := m.Payload
			confirmed := func() tea.Msg { return ConfirmedMsg{Payload: payload} }
			if m.StayOpen {
				m.Busy = true
				return m, tea.Batch(confirmed, m.spinner.Tick)
			}
			m.Active = false
			return m, confirmed
		case key.Matches(msg, m.keys.Cancel):
			m.Active = false
			return m, func() tea.Msg { return CancelledMsg{} }
		}
	}

	return m, nil
}

// --- View ---

func (m Model) View() string {
	if !m.Active {
		return ""
	}

	var body strings.Builder
	body.WriteString(m.Prompt)
	const maxItems = 8
	for i, item := range m.Items {
		if i == maxItems {
			body.WriteString(theme.DefaultTheme.Muted.Render("\n  … and more"))
			break
		}
		body.WriteString("\n  • " + item)
	}

	dialogBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.DefaultTheme.Colors.Orange).
		Padding(1, 2).
		Render(body.String())

	footer := "(y/n)"
	if m.Busy {
		footer = m.spinner.View() + " working…"
	}
	helpText := lipgloss.NewStyle().
		Faint(true).
		Width(lipgloss.Width(dialogBox)).
		Align(lipgloss.Center).
		Render("\n" + footer)

	return lipgloss.JoinVertical(lipgloss.Left, dialogBox, helpText)
}

// --- KeyMap ---

type keyMap struct {
	Confirm key.Binding
	Cancel  key.Binding
}

var defaultKeyMap = keyMap{
	Confirm: key.NewBinding(
		key.WithKeys("y"),
		key.WithHelp("y", "confirm"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("n", "esc"),
		key.WithHelp("n/esc", "cancel"),
	),
}
