package ui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Play      key.Binding
	Stop      key.Binding
	Back      key.Binding
	Forward   key.Binding
	PrevGroup key.Binding
	NextGroup key.Binding
	Faster    key.Binding
	Slower    key.Binding
	Resynth   key.Binding
	Copy      key.Binding
	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Play:      key.NewBinding(key.WithKeys(" ", "p"), key.WithHelp("space", "play/pause")),
		Stop:      key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "stop")),
		Back:      key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←/h", "seek back")),
		Forward:   key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→/l", "seek forward")),
		PrevGroup: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous scene")),
		NextGroup: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next scene")),
		Faster:    key.NewBinding(key.WithKeys("+", "="), key.WithHelp("+", "faster")),
		Slower:    key.NewBinding(key.WithKeys("-", "_"), key.WithHelp("-", "slower")),
		Resynth:   key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "re-synthesize scene")),
		Copy:      key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "copy subtitle")),
		Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "toggle help")),
		Quit:      key.NewBinding(key.WithKeys("q", "esc"), key.WithHelp("q", "quit")),
		ForceQuit: key.NewBinding(key.WithKeys("ctrl+c")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Stop, k.Back, k.Forward, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Play, k.Stop, k.Back, k.Forward},
		{k.PrevGroup, k.NextGroup, k.Faster, k.Slower},
		{k.Resynth, k.Copy, k.Help, k.Quit},
	}
}
