package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Up         key.Binding
	Down       key.Binding
	Next       key.Binding
	Start      key.Binding
	Intrude    key.Binding
	Mode       key.Binding
	Reset      key.Binding
	Regenerate key.Binding
	Search     key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Up:         key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:       key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Next:       key.NewBinding(key.WithKeys("enter", "n", " "), key.WithHelp("enter/n", "next step")),
		Start:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start")),
		Intrude:    key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "simulate intrusion")),
		Mode:       key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "auto/manual")),
		Reset:      key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reset")),
		Regenerate: key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "new network")),
		Search:     key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "find node")),
		ScrollUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "older activity")),
		ScrollDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "newer activity")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "more keys")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Intrude, k.Mode, k.Reset, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Search},
		{k.Next, k.Start, k.Mode, k.Reset},
		{k.Intrude, k.Regenerate},
		{k.ScrollUp, k.ScrollDown, k.Help, k.Quit},
	}
}
