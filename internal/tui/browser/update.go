package browser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/mattsolo1/grove-voice/internal/tui/components/confirm"
	"github.com/mattsolo1/grove-voice/pkg/audio"
	"github.com/mattsolo1/grove-voice/pkg/files"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.SetSize(msg.Width, msg.Height)
		m.resizePreview()
		return m, nil

	case spinner.TickMsg:
		var cmds []tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
		m.confirm, cmd = m.confirm.Update(msg)
		cmds = append(cmds, cmd)
		return m, tea.Batch(cmds...)

	case listingLoadedMsg:
		if msg.path != m.nav.Path() {
			// A late response for a directory we already left.
			return m, nil
		}
		m.setListing(msg)
		return m, nil

	case mutationDoneMsg:
		if msg.kind == mutationDelete {
			m.confirm.Settle()
			m.nav.Selection().Clear()
		}
		if msg.local {
			// Local read failures never reach the manager, so no toast was sent.
			m.toast, m.toastLevel = msg.err.Error(), files.LevelError
			return m, nil
		}
		if msg.path == m.nav.Path() {
			m.setListing(listingLoadedMsg{path: msg.path, listing: msg.listing})
		}
		return m, nil

	case toastMsg:
		m.toast, m.toastLevel = msg.text, msg.level
		return m, waitForToast(m.toasts)

	case previewLoadedMsg:
		m.releasePreview()
		pv := msg.preview
		m.preview = &pv
		m.resizePreview()
		m.previewPort.SetContent(pv.Text)
		m.previewPort.GotoTop()
		if pv.Kind == files.PreviewAudio && pv.AudioURL != "" {
			player := m.ensurePlayer()
			return m, loadAudioCmd(player, pv.AudioURL)
		}
		return m, nil

	case playerLoadedMsg:
		if msg.err != nil {
			m.toast, m.toastLevel = msg.err.Error(), files.LevelError
		}
		return m, nil

	case playerStateMsg:
		// Events are a wake-up only; a full channel drops them, so read the player itself.
		m.playerState = msg.state
		if m.player != nil {
			m.playerState = m.player.State()
		}
		var cmds []tea.Cmd
		cmds = append(cmds, waitForPlayer(m.playerEvents))
		if m.playerState == audio.StatePlaying {
			cmds = append(cmds, playerTick())
		}
		return m, tea.Batch(cmds...)

	case playerTickMsg:
		if m.player != nil && m.player.Playing() {
			return m, playerTick()
		}
		return m, nil

	case confirm.ConfirmedMsg:
		paths, _ := msg.Payload.([]string)
		if len(paths) == 0 || m.service == nil {
			m.confirm.Settle()
			return m, nil
		}
		return m, deleteCmd(m.service, m.nav.Path(), paths)

	case confirm.CancelledMsg:
		m.toast = ""
		return m, nil

	case tea.KeyMsg:
		if m.confirm.Active {
			m.confirm, cmd = m.confirm.Update(msg)
			return m, cmd
		}
		if m.inputMode != inputNone {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	return m, nil
}

func (m *Model) setListing(msg listingLoadedMsg) {
	m.loading = false
	m.listing = msg.listing
	m.items = msg.listing.Items()
	if m.cursor >= len(m.items) {
		m.cursor = len(m.items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.ensureCursorVisible()
}

func (m *Model) resizePreview() {
	m.previewPort.Width = m.width - m.listWidth() - 4
	m.previewPort.Height = m.getViewportHeight() - 4
	if m.previewPort.Width < 0 {
		m.previewPort.Width = 0
	}
	if m.previewPort.Height < 0 {
		m.previewPort.Height = 0
	}
}

func (m *Model) ensurePlayer() *audio.Player {
	if m.player == nil {
		events := m.playerEvents
		m.player = m.service.NewPlayer(audio.WithStateHandler(func(s audio.PlayerState) {
			select {
			case events <- s:
			default:
			}
		}))
	}
	return m.player
}

// navigate moves to the navigator's new path and fetches it. A previously seen
// listing is shown until the fetch lands.
func (m Model) navigate() (tea.Model, tea.Cmd) {
	m.cursor = 0
	m.scrollOffset = 0
	m.loading = true
	m.items = nil
	m.closePreview()
	if m.service == nil {
		return m, nil
	}
	if l, ok := m.service.Files.Cached(m.nav.Path()); ok {
		m.listing = l
		m.items = l.Items()
	}
	return m, fetchListingCmd(m.service, m.nav.Path())
}

func (m *Model) closePreview() {
	if m.player != nil {
		_ = m.player.Close()
	}
	m.releasePreview()
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.inputMode = inputNone
		m.input.Blur()
		return m, nil
	case tea.KeyEnter:
		value := strings.TrimSpace(m.input.Value())
		mode := m.inputMode
		m.inputMode = inputNone
		m.input.Blur()
		if value == "" || m.service == nil {
			return m, nil
		}
		if mode == inputFolder {
			return m, createFolderCmd(m.service, m.nav.Path(), value)
		}
		return m, uploadCmd(m.service, m.nav.Path(), value)
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) startInput(mode inputMode, prompt, placeholder string) (tea.Model, tea.Cmd) {
	m.inputMode = mode
	m.input.Prompt = prompt
	m.input.Placeholder = placeholder
	m.input.SetValue("")
	return m, m.input.Focus()
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.help.ShowAll {
		if key.Matches(msg, m.keys.Help) || key.Matches(msg, m.keys.Back) || key.Matches(msg, m.keys.Quit) {
			m.help.Toggle()
		}
		return m, nil
	}

	step := 1
	if m.viewMode == gridView {
		step = m.gridColumns()
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.Close()
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.help.Toggle()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		m.moveCursor(-step)
	case key.Matches(msg, m.keys.Down):
		m.moveCursor(step)
	case key.Matches(msg, m.keys.Left):
		if m.viewMode == gridView {
			m.moveCursor(-1)
		}
	case key.Matches(msg, m.keys.Right):
		if m.viewMode == gridView {
			m.moveCursor(1)
		}
	case key.Matches(msg, m.keys.GoToTop):
		m.cursor = 0
		m.ensureCursorVisible()
	case key.Matches(msg, m.keys.GoToBottom):
		m.cursor = len(m.items) - 1
		if m.cursor < 0 {
			m.cursor = 0
		}
		m.ensureCursorVisible()

	case key.Matches(msg, m.keys.ToggleView):
		if m.viewMode == listView {
			m.viewMode = gridView
		} else {
			m.viewMode = listView
		}
		m.scrollOffset = 0
		m.ensureCursorVisible()

	case key.Matches(msg, m.keys.Confirm):
		item, ok := m.currentItem()
		if !ok {
			return m, nil
		}
		if preview := m.nav.Open(item); preview {
			if m.service == nil {
				return m, nil
			}
			return m, loadPreviewCmd(m.service, item.Path)
		}
		return m.navigate()

	case key.Matches(msg, m.keys.Back):
		if m.preview != nil {
			m.closePreview()
			return m, nil
		}
		if m.nav.Up() {
			return m.navigate()
		}

	case key.Matches(msg, m.keys.Crumb):
		i, _ := strconv.Atoi(msg.String())
		before := m.nav.Path()
		m.nav.GoTo(i - 1)
		if m.nav.Path() != before {
			return m.navigate()
		}

	case key.Matches(msg, m.keys.Refresh):
		if m.service != nil {
			m.loading = true
			return m, fetchListingCmd(m.service, m.nav.Path())
		}

	case key.Matches(msg, m.keys.ToggleSelect):
		if item, ok := m.currentItem(); ok {
			m.nav.Selection().Toggle(item.Path)
			m.moveCursor(1)
		}
	case key.Matches(msg, m.keys.SelectAll):
		for _, item := range m.items {
			if !m.nav.Selection().Has(item.Path) {
				m.nav.Selection().Toggle(item.Path)
			}
		}
	case key.Matches(msg, m.keys.SelectNone):
		m.nav.Selection().Clear()

	case key.Matches(msg, m.keys.Delete):
		paths := m.nav.Selection().Paths()
		if len(paths) == 0 {
			if item, ok := m.currentItem(); ok {
				paths = []string{item.Path}
			}
		}
		if len(paths) == 0 {
			return m, nil
		}
		names := make([]string, len(paths))
		for i, p := range paths {
			names[i] = strings.TrimPrefix(strings.TrimPrefix(p, m.nav.Path()), "/")
		}
		m.confirm.ActivateWith(fmt.Sprintf("Delete %d item(s)?", len(paths)), names, paths)
		return m, nil

	case key.Matches(msg, m.keys.NewFolder):
		return m.startInput(inputFolder, "New folder: ", "name")
	case key.Matches(msg, m.keys.Upload):
		return m.startInput(inputUpload, "Upload file: ", "~/path/to/file.wav")

	case key.Matches(msg, m.keys.PlayPause):
		if m.player != nil {
			if err := m.player.Toggle(); err != nil {
				m.toast, m.toastLevel = err.Error(), files.LevelError
			}
		}
	case key.Matches(msg, m.keys.ScrollUp):
		m.previewPort.LineUp(3)
	case key.Matches(msg, m.keys.ScrollDown):
		m.previewPort.LineDown(3)
	}

	return m, nil
}

func (m *Model) moveCursor(delta int) {
	if len(m.items) == 0 {
		return
	}
	next := m.cursor + delta
	if next < 0 {
		next = 0
	}
	if next >= len(m.items) {
		next = len(m.items) - 1
	}
	m.cursor = next
	m.ensureCursorVisible()
}
