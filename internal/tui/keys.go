package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the live view key bindings with built-in help text.
type KeyMap struct {
	Quit           key.Binding
	ForceQuit      key.Binding
	Help           key.Binding
	Pause          key.Binding
	ToggleModules  key.Binding
	TogglePatterns key.Binding
	IntervalUp     key.Binding
	IntervalDown   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "force quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?", "h"),
			key.WithHelp("?/h", "help"),
		),
		Pause: key.NewBinding(
			key.WithKeys(" "),
			key.WithHelp("space", "pause/resume"),
		),
		ToggleModules: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "toggle module table"),
		),
		TogglePatterns: key.NewBinding(
			key.WithKeys("p"),
			key.WithHelp("p", "toggle message patterns"),
		),
		IntervalUp: key.NewBinding(
			key.WithKeys("+", "="),
			key.WithHelp("+", "slower refresh"),
		),
		IntervalDown: key.NewBinding(
			key.WithKeys("-"),
			key.WithHelp("-", "faster refresh"),
		),
	}
}

// ShortHelp returns the bindings shown in the status line.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Pause, k.ToggleModules, k.Help, k.Quit}
}

// FullHelp returns every binding, grouped for the help panel.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Pause, k.ToggleModules, k.TogglePatterns},
		{k.IntervalUp, k.IntervalDown},
		{k.Help, k.Quit, k.ForceQuit},
	}
}
