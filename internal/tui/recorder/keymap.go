package recorder

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/mattsolo1/grove-core/tui/keymap"
)

// KeyMap defines the keybindings for the recorder.
type KeyMap struct {
	keymap.Base
	Record    key.Binding
	Cancel    key.Binding
	PlayPause key.Binding
}

func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Record, k.PlayPause, k.Cancel, k.Quit}
}

func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{k.Record, k.Cancel, k.PlayPause}, {k.Help, k.Quit}}
}

// esc belongs to Cancel here, so quitting stays on q.
func recorderBase() keymap.Base {
	b := keymap.NewBase()
	b.Quit = key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	)
	return b
}

var keys = KeyMap{
	Base: recorderBase(),
	Record: key.NewBinding(
		key.WithKeys("r", " "),
		key.WithHelp("r/space", "record/stop"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "discard recording"),
	),
	PlayPause: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "play/pause"),
	),
}
