package ui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the keybindings for the application.
type KeyMap struct {
	Up           key.Binding
	Down         key.Binding
	Expand       key.Binding
	Collapse     key.Binding
	Enter        key.Binding
	ExpandAll    key.Binding
	CollapseAll  key.Binding
	Tab          key.Binding
	Search       key.Binding
	ExitSearch   key.Binding
	Failed       key.Binding
	Success      key.Binding
	Skipped      key.Binding
	OnlyTests    key.Binding
	Rerun        key.Binding
	RerunAll     key.Binding
	RerunFailed  key.Binding
	RerunChanged key.Binding
	Wider        key.Binding
	Narrower     key.Binding
	Help         key.Binding
	Quit         key.Binding
}

// NewKeyMap returns a set of default keybindings.
func NewKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "move down"),
		),
		Expand: key.NewBinding(
			key.WithKeys("l", "right"),
			key.WithHelp("l/→", "expand"),
		),
		Collapse: key.NewBinding(
			key.WithKeys("h", "left"),
			key.WithHelp("h/←", "collapse"),
		),
		Enter: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", "toggle / run test"),
		),
		ExpandAll: key.NewBinding(
			key.WithKeys("E"),
			key.WithHelp("E", "expand all"),
		),
		CollapseAll: key.NewBinding(
			key.WithKeys("C"),
			key.WithHelp("C", "collapse all"),
		),
		Tab: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("tab", "switch pane"),
		),
		Search: key.NewBinding(
			key.WithKeys("/"),
			key.WithHelp("/", "search"),
		),
		ExitSearch: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "clear search"),
		),
		Failed: key.NewBinding(
			key.WithKeys("f"),
			key.WithHelp("f", "only failed"),
		),
		Success: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "only passed"),
		),
		Skipped: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "only skipped"),
		),
		OnlyTests: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "flat test list"),
		),
		Rerun: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "re-run selected"),
		),
		RerunAll: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "run all"),
		),
		RerunFailed: key.NewBinding(
			key.WithKeys("F"),
			key.WithHelp("F", "re-run failed"),
		),
		RerunChanged: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", "run git changes"),
		),
		Wider: key.NewBinding(
			key.WithKeys(">"),
			key.WithHelp(">", "widen explorer"),
		),
		Narrower: key.NewBinding(
			key.WithKeys("<"),
			key.WithHelp("<", "narrow explorer"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
	}
}

// ShortHelp returns keybindings to be shown in the mini-help view. It's part of the help.KeyMap interface.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Search, k.Failed, k.Rerun, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view. It's part of the help.KeyMap interface.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Expand, k.Collapse, k.Enter, k.ExpandAll, k.CollapseAll},
		{k.Search, k.ExitSearch, k.Failed, k.Success, k.Skipped, k.OnlyTests},
		{k.Rerun, k.RerunAll, k.RerunFailed, k.RerunChanged},
		{k.Tab, k.Wider, k.Narrower, k.Help, k.Quit},
	}
}
