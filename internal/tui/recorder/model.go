// Package recorder is the reference-clip recorder and player view.
package recorder

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/components/help"
	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

type startedMsg struct{ err error }

type tickMsg struct{ elapsed time.Duration }

type stoppedMsg struct {
	clip models.AudioState
	err  error
}

type playerLoadedMsg struct{ err error }

type playerStateMsg struct{ state audio.PlayerState }

type progressMsg struct{}

// Model records a clip, keeps it as the reference and plays it back.
type Model struct {
	recorder *audio.Recorder
	player   *audio.Player
	keep     func(models.AudioState)

	ticks        chan time.Duration
	playerEvents chan audio.PlayerState

	recording   bool
	starting    bool
	elapsed     time.Duration
	clip        models.AudioState
	playerState audio.PlayerState
	err         error

	keys    KeyMap
	help    help.Model
	spinner spinner.Model
	width   int
}

// New creates a recorder view backed by svc. Finished clips become the reference clip.
func New(svc *service.Service) Model {
	return newModel(svc.NewRecorder, svc.NewPlayer, svc.SetReference)
}

func newModel(
	newRecorder func(...audio.RecorderOption) *audio.Recorder,
	newPlayer func(...audio.PlayerOption) *audio.Player,
	keep func(models.AudioState),
) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Orange)

	ticks := make(chan time.Duration, 1)
	events := make(chan audio.PlayerState, 16)

	m := Model{
		keep:         keep,
		ticks:        ticks,
		playerEvents: events,
		keys:         keys,
		help:         help.NewBuilder().WithKeys(keys).WithTitle("Reference Recorder - Help").Build(),
		spinner:      s,
		width:        80,
	}
	m.recorder = newRecorder(audio.WithTickHandler(func(d time.Duration) {
		// Only the latest duration matters.
		select {
		case <-ticks:
		default:
		}
		ticks <- d
	}))
	m.player = newPlayer(audio.WithStateHandler(func(s audio.PlayerState) {
		select {
		case events <- s:
		default:
		}
	}))
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForTick(m.ticks), waitForPlayer(m.playerEvents), m.spinner.Tick)
}

// Clip returns the last finished recording, if any.
func (m Model) Clip() models.AudioState {
	return m.clip
}

// Err returns the last error shown to the user.
func (m Model) Err() error {
	return m.err
}

// Close stops any recording and releases the player.
func (m *Model) Close() {
	if m.recorder.State() == audio.Recording {
		_ = m.recorder.Cancel()
	}
	_ = m.player.Close()
}

func startCmd(r *audio.Recorder) tea.Cmd {
	return func() tea.Msg {
		return startedMsg{err: r.Start(context.Background())}
	}
}

func stopCmd(r *audio.Recorder) tea.Cmd {
	return func() tea.Msg {
		clip, err := r.Stop()
		return stoppedMsg{clip: clip, err: err}
	}
}

func loadCmd(p *audio.Player, url string) tea.Cmd {
	return func() tea.Msg {
		return playerLoadedMsg{err: p.Load(url)}
	}
}

func waitForTick(ch <-chan time.Duration) tea.Cmd {
	return func() tea.Msg {
		return tickMsg{elapsed: <-ch}
	}
}

func waitForPlayer(ch <-chan audio.PlayerState) tea.Cmd {
	return func() tea.Msg {
		return playerStateMsg{state: <-ch}
	}
}

func progressTick() tea.Cmd {
	return tea.Tick(200*time.Millisecond, func(time.Time) tea.Msg { return progressMsg{} })
}
