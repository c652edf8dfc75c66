package browser

import (
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattsolo1/grove-core/tui/components/help"
	"github.com/mattsolo1/grove-core/tui/theme"

	"github.com/mattsolo1/grove-voice/internal/tui/components/confirm"
	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/files"
	"github.com/mattsolo1/grove-voice/pkg/models"
	"github.com/mattsolo1/grove-voice/pkg/service"
)

type viewMode int

const (
	listView viewMode = iota
	gridView
)

type inputMode int

const (
	inputNone inputMode = iota
	inputFolder
	inputUpload
)

const gridCellWidth = 24

// Model is the file browser TUI rooted at a namespace home path.
type Model struct {
	service *service.Service
	nav     *files.Navigator
	keys    KeyMap
	help    help.Model
	width   int
	height  int

	listing      models.Listing
	items        []models.FileItem
	cursor       int
	scrollOffset int
	viewMode     viewMode
	loading      bool
	spinner      spinner.Model

	// Toasts from the file manager arrive on toasts.
	toasts     chan toastMsg
	toast      string
	toastLevel files.Level

	inputMode inputMode
	input     textinput.Model

	confirm confirm.Model

	preview     *files.Preview
	previewPort viewport.Model

	player       *audio.Player
	playerEvents chan audio.PlayerState
	playerState  audio.PlayerState
}

// New creates a browser over svc starting at root.
func New(svc *service.Service, root string) Model {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = lipgloss.NewStyle().Foreground(theme.DefaultTheme.Colors.Orange)

	ti := textinput.New()
	ti.CharLimit = 512

	c := confirm.New()
	c.StayOpen = true

	m := Model{
		service:      svc,
		nav:          files.NewNavigator(root),
		keys:         keys,
		help:         help.NewBuilder().WithKeys(keys).WithTitle("EaseVoice Files - Help").Build(),
		loading:      true,
		spinner:      s,
		toasts:       make(chan toastMsg, 16),
		input:        ti,
		confirm:      c,
		previewPort:  viewport.New(0, 0),
		playerEvents: make(chan audio.PlayerState, 16),
	}
	if svc != nil {
		toasts := m.toasts
		svc.Files.SetNotifier(files.NotifierFunc(func(level files.Level, msg string) {
			select {
			case toasts <- toastMsg{level: level, text: msg}:
			default:
			}
		}))
	}
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		waitForToast(m.toasts),
		waitForPlayer(m.playerEvents),
		m.spinner.Tick,
	}
	if m.service != nil {
		cmds = append(cmds, fetchListingCmd(m.service, m.nav.Path()))
	}
	return tea.Batch(cmds...)
}

// Path returns the directory on screen.
func (m Model) Path() string {
	return m.nav.Path()
}

func (m Model) currentItem() (models.FileItem, bool) {
	if m.cursor < 0 || m.cursor >= len(m.items) {
		return models.FileItem{}, false
	}
	return m.items[m.cursor], true
}

// gridColumns is the number of cells per grid row.
func (m Model) gridColumns() int {
	cols := m.listWidth() / gridCellWidth
	if cols < 1 {
		cols = 1
	}
	return cols
}

func (m Model) listWidth() int {
	if m.preview != nil {
		return m.width / 2
	}
	return m.width
}

func (m Model) getViewportHeight() int {
	// header, blank, blank, toast, footer
	h := m.height - 6
	if h < 3 {
		h = 3
	}
	return h
}

func (m *Model) ensureCursorVisible() {
	rows := m.getViewportHeight()
	line := m.cursor
	if m.viewMode == gridView {
		line = m.cursor / m.gridColumns()
	}
	if line < m.scrollOffset {
		m.scrollOffset = line
	}
	if line >= m.scrollOffset+rows {
		m.scrollOffset = line - rows + 1
	}
}

// Close releases the player and any preview clip.
func (m *Model) Close() {
	if m.player != nil {
		_ = m.player.Close()
	}
	m.releasePreview()
}

func (m *Model) releasePreview() {
	if m.preview != nil && m.preview.AudioURL != "" && m.service != nil {
		_ = m.service.Blobs.Release(m.preview.AudioURL)
	}
	m.preview = nil
}
