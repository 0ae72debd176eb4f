package chat

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Submit   key.Binding
	Newline  key.Binding
	Expand   key.Binding
	Skip     key.Binding
	Cancel   key.Binding
	About    key.Binding
	Back     key.Binding
	Quit     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter"),
			key.WithHelp("alt+enter", "newline"),
		),
		Expand: key.NewBinding(
			key.WithKeys("ctrl+e"),
			key.WithHelp("ctrl+e", "analysis"),
		),
		Skip: key.NewBinding(
			key.WithKeys("ctrl+s"),
			key.WithHelp("ctrl+s", "skip clarification"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("ctrl+x", "stop"),
		),
		About: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("ctrl+o", "about"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back/quit"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("ctrl+c", "quit"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("pgup", "scroll up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("pgdn", "scroll down"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Expand, k.Skip, k.Cancel, k.About, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline, k.Cancel},
		{k.Expand, k.Skip},
		{k.PageUp, k.PageDown},
		{k.About, k.Back, k.Quit},
	}
}

// contextual enables only the bindings that currently do something.
func (k keyMap) contextual(loading, canExpand, canSkip bool, mode ViewMode) keyMap {
	k.Submit.SetEnabled(!loading && mode == ChatView)
	k.Newline.SetEnabled(!loading && mode == ChatView)
	k.Cancel.SetEnabled(loading)
	k.Expand.SetEnabled(canExpand && mode == ChatView)
	k.Skip.SetEnabled(canSkip && !loading && mode == ChatView)
	return k
}
