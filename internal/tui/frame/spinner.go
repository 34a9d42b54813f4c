// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package frame

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Spinner is a busy indicator backed by bubbles/spinner.
type Spinner struct {
	model spinner.Model
}

// NewSpinner returns a dot spinner in the highlight colour.
func NewSpinner() *Spinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	return &Spinner{model: s}
}

// Init starts the animation.
func (s *Spinner) Init() tea.Cmd {
	return s.model.Tick
}

// Update advances the animation on its own tick messages and ignores
// everything else.
func (s *Spinner) Update(msg tea.Msg) tea.Cmd {
	if _, ok := msg.(spinner.TickMsg); !ok {
		return nil
	}
	var cmd tea.Cmd
	s.model, cmd = s.model.Update(msg)
	return cmd
}

func (s *Spinner) View() string {
	return s.model.View()
}
