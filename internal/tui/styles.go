// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import "github.com/charmbracelet/lipgloss"

const (
	colorMuted  = lipgloss.Color("240")
	colorAccent = lipgloss.Color("81")
	colorDenied = lipgloss.Color("208")
	colorError  = lipgloss.Color("196")
	colorShared = lipgloss.Color("40")
)

var (
	docStyle       = lipgloss.NewStyle().Margin(1, 2)
	mainTitleStyle = lipgloss.NewStyle().Foreground(colorAccent).Bold(true).Padding(0, 1)
	helpStyle      = lipgloss.NewStyle().Foreground(colorMuted)
	errorStyle     = lipgloss.NewStyle().Foreground(colorError)

	// history list, one per decision
	shareStyle   = lipgloss.NewStyle().Foreground(colorShared)
	denyStyle    = lipgloss.NewStyle().Foreground(colorDenied)
	dismissStyle = lipgloss.NewStyle().Foreground(colorMuted)
)
