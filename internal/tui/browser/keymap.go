package browser

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/mattsolo1/grove-core/tui/keymap"
)

// KeyMap defines the keybindings for the file browser
type KeyMap struct {
	keymap.Base
	Left         key.Binding
	Right        key.Binding
	ToggleView   key.Binding
	ToggleSelect key.Binding
	SelectAll    key.Binding
	SelectNone   key.Binding
	Delete       key.Binding
	NewFolder    key.Binding
	Upload       key.Binding
	Refresh      key.Binding
	PlayPause    key.Binding
	Crumb        key.Binding
	GoToTop      key.Binding
	GoToBottom   key.Binding
	ScrollUp     key.Binding
	ScrollDown   key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Confirm, k.Back, k.ToggleSelect, k.Delete, k.Help, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	baseHelp := k.Base.FullHelp()
	return append(baseHelp, []key.Binding{
		k.Left,
		k.Right,
		k.ToggleView,
		k.Crumb,
		k.GoToTop,
		k.GoToBottom,
		k.Refresh,
	}, []key.Binding{
		k.ToggleSelect,
		k.SelectAll,
		k.SelectNone,
		k.Delete,
		k.NewFolder,
		k.Upload,
	}, []key.Binding{
		k.PlayPause,
		k.ScrollUp,
		k.ScrollDown,
	})
}

// newBase keeps vim-style movement and lets backspace climb out of a folder.
func newBase() keymap.Base {
	b := keymap.NewBase()
	b.Up = key.NewBinding(
		key.WithKeys("up", "k"),
		key.WithHelp("↑/k", "up"),
	)
	b.Down = key.NewBinding(
		key.WithKeys("down", "j"),
		key.WithHelp("↓/j", "down"),
	)
	b.Confirm = key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "open"),
	)
	b.Back = key.NewBinding(
		key.WithKeys("backspace", "esc"),
		key.WithHelp("esc", "back"),
	)
	b.Quit = key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	)
	return b
}

var keys = KeyMap{
	Base: newBase(),
	Left: key.NewBinding(
		key.WithKeys("left", "h"),
		key.WithHelp("←/h", "left"),
	),
	Right: key.NewBinding(
		key.WithKeys("right", "l"),
		key.WithHelp("→/l", "right"),
	),
	ToggleView: key.NewBinding(
		key.WithKeys("v"),
		key.WithHelp("v", "list/grid"),
	),
	ToggleSelect: key.NewBinding(
		key.WithKeys(" "),
		key.WithHelp("space", "select"),
	),
	SelectAll: key.NewBinding(
		key.WithKeys("a"),
		key.WithHelp("a", "select all"),
	),
	SelectNone: key.NewBinding(
		key.WithKeys("A"),
		key.WithHelp("A", "select none"),
	),
	Delete: key.NewBinding(
		key.WithKeys("x", "delete"),
		key.WithHelp("x", "delete"),
	),
	NewFolder: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "new folder"),
	),
	Upload: key.NewBinding(
		key.WithKeys("u"),
		key.WithHelp("u", "upload"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh"),
	),
	PlayPause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "play/pause"),
	),
	Crumb: key.NewBinding(
		key.WithKeys("1", "2", "3", "4", "5", "6", "7", "8", "9"),
		key.WithHelp("1-9", "jump to breadcrumb"),
	),
	GoToTop: key.NewBinding(
		key.WithKeys("g", "home"),
		key.WithHelp("g", "top"),
	),
	GoToBottom: key.NewBinding(
		key.WithKeys("G", "end"),
		key.WithHelp("G", "bottom"),
	),
	ScrollUp: key.NewBinding(
		key.WithKeys("K", "pgup"),
		key.WithHelp("K", "scroll preview up"),
	),
	ScrollDown: key.NewBinding(
		key.WithKeys("J", "pgdown"),
		key.WithHelp("J", "scroll preview down"),
	),
}
