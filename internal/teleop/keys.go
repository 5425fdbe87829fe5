package teleop

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Faster     key.Binding
	Slower     key.Binding
	SteerLeft  key.Binding
	SteerRight key.Binding
	Center     key.Binding
	AuxDown    key.Binding
	AuxUp      key.Binding
	Stop       key.Binding
	Revert     key.Binding
	Help       key.Binding
	Quit       key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Faster, k.SteerLeft, k.Stop, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Faster, k.Slower, k.SteerLeft, k.SteerRight, k.Center},
		{k.AuxDown, k.AuxUp, k.Stop, k.Revert},
		{k.Help, k.Quit},
	}
}

func (k keyMap) action(msg string) (Action, bool) {
	bindings := []struct {
		b key.Binding
		a Action
	}{
		{k.Faster, Faster},
		{k.Slower, Slower},
		{k.SteerLeft, SteerLeft},
		{k.SteerRight, SteerRight},
		{k.Center, Center},
		{k.AuxDown, AuxDown},
		{k.AuxUp, AuxUp},
		{k.Stop, Stop},
		{k.Revert, Revert},
	}
	for _, kb := range bindings {
		for _, s := range kb.b.Keys() {
			if s == msg {
				return kb.a, true
			}
		}
	}
	return 0, false
}

func defaultKeyMap() keyMap {
	return keyMap{
		Faster:     key.NewBinding(key.WithKeys("up", "w"), key.WithHelp("↑/w", "faster")),
		Slower:     key.NewBinding(key.WithKeys("down", "s"), key.WithHelp("↓/s", "slower")),
		SteerLeft:  key.NewBinding(key.WithKeys("left", "a"), key.WithHelp("←/a", "left")),
		SteerRight: key.NewBinding(key.WithKeys("right", "d"), key.WithHelp("→/d", "right")),
		Center:     key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "center")),
		AuxDown:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "aux down")),
		AuxUp:      key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "aux up")),
		Stop:       key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "e-stop")),
		Revert:     key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "revert limits")),
		Help:       key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:       key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	}
}
