// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// KEY MAP DEFINITION
// =============================================================================

// KeyMap defines the keyboard bindings for the chat interface.
type KeyMap struct {
	Submit    key.Binding
	Newline   key.Binding
	Blur      key.Binding
	Focus     key.Binding
	Deep      key.Binding
	ClearDoc  key.Binding
	Up        key.Binding
	Down      key.Binding
	PageUp    key.Binding
	PageDown  key.Binding
	Help      key.Binding
	Quit      key.Binding
	ForceQuit key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Submit: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "send"),
		),
		Newline: key.NewBinding(
			key.WithKeys("alt+enter"),
			key.WithHelp("alt+enter", "newline"),
		),
		Blur: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "browse"),
		),
		Focus: key.NewBinding(
			key.WithKeys("i", "tab"),
			key.WithHelp("i/tab", "type"),
		),
		Deep: key.NewBinding(
			key.WithKeys("ctrl+o"),
			key.WithHelp("C-o", "deep dive"),
		),
		ClearDoc: key.NewBinding(
			key.WithKeys("ctrl+x"),
			key.WithHelp("C-x", "clear document"),
		),
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("up/k", "scroll up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("down/j", "scroll down"),
		),
		PageUp: key.NewBinding(
			key.WithKeys("pgup", "ctrl+u"),
			key.WithHelp("PgUp/C-u", "page up"),
		),
		PageDown: key.NewBinding(
			key.WithKeys("pgdown", "ctrl+d"),
			key.WithHelp("PgDn/C-d", "page down"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "help"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q"),
			key.WithHelp("q", "quit"),
		),
		ForceQuit: key.NewBinding(
			key.WithKeys("ctrl+c"),
			key.WithHelp("C-c", "quit"),
		),
	}
}

// ShortHelp returns the bindings shown in the footer.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Submit, k.Blur, k.Deep, k.ClearDoc, k.Help, k.ForceQuit}
}

// FullHelp returns the bindings shown in the expanded help.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Submit, k.Newline, k.Blur, k.Focus},
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Deep, k.ClearDoc, k.Help, k.Quit, k.ForceQuit},
	}
}

// keyName returns the name used to match the push-to-talk trigger.
// Bubble Tea reports the space bar as " ".
func keyName(msg tea.KeyMsg) string {
	if msg.Type == tea.KeySpace || msg.String() == " " {
		return "space"
	}
	return msg.String()
}

// insertedBy returns the text a key inserts into the input, if any.
func insertedBy(name string) string {
	if name == "space" {
		return " "
	}
	if r := []rune(name); len(r) == 1 {
		return name
	}
	return ""
}
