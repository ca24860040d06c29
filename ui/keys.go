package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings for the explorer
type KeyMap struct {
	NextColumn key.Binding
	PrevColumn key.Binding
	NextChart  key.Binding
	PrevChart  key.Binding
	Retry      key.Binding
	Upload     key.Binding
	Ask        key.Binding
	Submit     key.Binding
	Escape     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		NextColumn: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next column"),
		),
		PrevColumn: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev column"),
		),
		NextChart: key.NewBinding(
			key.WithKeys("down", "j", "c"),
			key.WithHelp("↓/c", "next chart"),
		),
		PrevChart: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "prev chart"),
		),
		Retry: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "retry failed"),
		),
		Upload: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "re-upload"),
		),
		Ask: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "ask"),
		),
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Escape: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "cancel"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.NextColumn, k.NextChart, k.Retry, k.Ask, k.Quit, k.Help}
}

// FullHelp implements help.KeyMap
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextColumn, k.PrevColumn, k.NextChart, k.PrevChart},
		{k.Retry, k.Upload, k.Ask, k.Quit},
	}
}
