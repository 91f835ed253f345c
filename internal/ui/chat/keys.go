// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
)

// KeyMap defines the chat screen's key bindings.
type KeyMap struct {
	Submit     key.Binding
	Newline    key.Binding
	Complete   key.Binding
	NextChat   key.Binding
	PrevChat   key.Binding
	NewChat    key.Binding
	ScrollUp   key.Binding
	ScrollDown key.Binding
	Dismiss    key.Binding
	Help       key.Binding
	Quit       key.Binding
}

// DefaultKeyMap returns the default bindings. Plain letters are never bound
// because the input always has focus.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("Enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter", "ctrl+j"),
			key.WithHelp("Alt+Enter", "newline"),
		),
		Complete: key.NewBinding(
			key.WithKeys("tab"),
			key.WithHelp("Tab", "complete /command"),
		),
		NextChat: key.NewBinding(
			key.WithKeys("alt+down", "alt+j"),
			key.WithHelp("Alt+↓", "next chat"),
		),
		PrevChat: key.NewBinding(
			key.WithKeys("alt+up", "alt+k"),
			key.WithHelp("Alt+↑", "previous chat"),
		),
		NewChat: key.NewBinding(
			key.WithKeys("alt+n"),
			key.WithHelp("Alt+n", "new chat"),
		),
		ScrollUp: key.NewBinding(
			key.WithKeys("pgup"),
			key.WithHelp("PgUp", "scroll up"),
		),
		ScrollDown: key.NewBinding(
			key.WithKeys("pgdown"),
			key.WithHelp("PgDn", "scroll down"),
		),
		Dismiss: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("Esc", "dismiss"),
		),
		Help: key.NewBinding(
			key.WithKeys("ctrl+h", "f1"),
			key.WithHelp("F1", "more keys"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "ctrl+q"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp implements help.KeyMap.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.NewChat, k.NextChat, k.Help, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline, k.Complete},
		{k.NewChat, k.NextChat, k.PrevChat},
		{k.ScrollUp, k.ScrollDown, k.Dismiss},
		{k.Help, k.Quit},
	}
}
