package recorder

import (
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-voice/pkg/audio"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.SetSize(msg.Width, msg.Height)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case startedMsg:
		m.starting = false
		if msg.err != nil {
			m.err = msg.err
			m.recording = false
			return m, nil
		}
		m.recording = true
		m.elapsed = 0
		return m, nil

	case tickMsg:
		if m.recording {
			m.elapsed = msg.elapsed
		}
		return m, waitForTick(m.ticks)

	case stoppedMsg:
		m.recording = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.clip = msg.clip
		if m.keep != nil {
			m.keep(msg.clip)
		}
		return m, loadCmd(m.player, msg.clip.URL)

	case playerLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
		}
		return m, nil

	case playerStateMsg:
		// Events are a wake-up only; a full channel drops them, so read the player itself.
		m.playerState = m.player.State()
		cmds := []tea.Cmd{waitForPlayer(m.playerEvents)}
		if m.playerState == audio.StatePlaying {
			cmds = append(cmds, progressTick())
		}
		return m, tea.Batch(cmds...)

	case progressMsg:
		if m.player.Playing() {
			return m, progressTick()
		}
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.Toggle()

	case key.Matches(msg, m.keys.Record):
		if m.starting {
			return m, nil
		}
		if m.recording {
			return m, stopCmd(m.recorder)
		}
		if m.player.Playing() {
			_ = m.player.Pause()
		}
		m.err = nil
		m.starting = true
		return m, startCmd(m.recorder)

	case key.Matches(msg, m.keys.Cancel):
		if m.recording {
			if err := m.recorder.Cancel(); err != nil && !errors.Is(err, audio.ErrNotRecording) {
				m.err = err
			}
			m.recording = false
			m.elapsed = 0
		}

	case key.Matches(msg, m.keys.PlayPause):
		if m.recording || m.clip.Empty() {
			return m, nil
		}
		if err := m.player.Toggle(); err != nil {
			m.err = err
		}
	}
	return m, nil
}
