// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package prompt

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/toeirei/keyshare/internal/i18n"
)

// KeyMap holds the prompt's key bindings. Verify, Share and Ignore press
// their button directly, the rest move or activate the focus.
type KeyMap struct {
	Next   key.Binding
	Prev   key.Binding
	Select key.Binding
	Verify key.Binding
	Share  key.Binding
	Ignore key.Binding
	Cancel key.Binding
}

// ShortHelp returns the bindings shown in the collapsed help line.
func (km KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{km.Next, km.Select, km.Cancel}
}

// FullHelp returns the bindings shown in the expanded help, navigation
// first and button shortcuts second.
func (km KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{{km.Next, km.Prev, km.Select, km.Cancel}, {km.Verify, km.Share, km.Ignore}}
}

// KeyMap implements help.KeyMap
var _ help.KeyMap = KeyMap{}

// DefaultKeyMap builds the bindings with help text in the active language.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Next: key.NewBinding(
			key.WithKeys("right", "tab", "l"),
			key.WithHelp("→/tab", i18n.T("keyshare.help_move")),
		),
		Prev: key.NewBinding(
			key.WithKeys("left", "shift+tab", "h"),
			key.WithHelp("←/shift+tab", i18n.T("keyshare.help_move")),
		),
		Select: key.NewBinding(
			key.WithKeys("enter", " "),
			key.WithHelp("enter", i18n.T("keyshare.help_select")),
		),
		Verify: key.NewBinding(
			key.WithKeys("v"),
			key.WithHelp("v", i18n.T("keyshare.start_verification")),
		),
		Share: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", i18n.T("keyshare.share_without_verifying")),
		),
		Ignore: key.NewBinding(
			key.WithKeys("i"),
			key.WithHelp("i", i18n.T("keyshare.ignore_request")),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", i18n.T("keyshare.help_cancel")),
		),
	}
}
