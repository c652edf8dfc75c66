package jobs

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/mattsolo1/grove-core/tui/keymap"
)

type jobsKeyMap struct {
	keymap.Base
	Filter  key.Binding
	Clear   key.Binding
	Refresh key.Binding
	Detail  key.Binding
}

func (k jobsKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Filter, k.Detail, k.Refresh, k.Help, k.Quit}
}

func (k jobsKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Detail, k.Back},
		{k.Filter, k.Clear, k.Refresh, k.Quit},
	}
}

func jobsBase() keymap.Base {
	b := keymap.NewBase()
	b.Back = key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("esc", "close detail"),
	)
	b.Quit = key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	)
	return b
}

var jobsKeys = jobsKeyMap{
	Base: jobsBase(),
	Filter: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "filter by stage"),
	),
	Clear: key.NewBinding(
		key.WithKeys("c"),
		key.WithHelp("c", "clear filter"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "refresh now"),
	),
	Detail: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("enter", "task detail"),
	),
}
