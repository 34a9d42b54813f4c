// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package frame

import (
	"github.com/charmbracelet/lipgloss"
)

const defaultDialogWidth = 64

// Dialog renders a modal box with a title bar, a body and a row of buttons.
// It holds no state beyond its width; the caller owns focus.
type Dialog struct {
	width int
}

// NewDialog creates a dialog renderer with the default width.
func NewDialog() *Dialog {
	return &Dialog{width: defaultDialogWidth}
}

// SetWidth sets the outer dialog width. Values below 20 are ignored.
func (d *Dialog) SetWidth(width int) {
	if width >= 20 {
		d.width = width
	}
}

// Width returns the outer dialog width.
func (d *Dialog) Width() int {
	return d.width
}

// Render produces the dialog box. buttons may be empty, in which case no
// button row is drawn. focused indexes buttons; out of range means none.
func (d *Dialog) Render(title, body string, buttons []string, focused int) string {
	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("60")).
		Bold(true).
		Width(d.width)

	header := headerStyle.Render(" " + title)

	parts := []string{header}
	if body != "" {
		messageStyle := lipgloss.NewStyle().
			Width(d.width-4).
			Padding(1, 2, 0, 2)
		parts = append(parts, messageStyle.Render(body))
	}
	if len(buttons) > 0 {
		parts = append(parts, d.renderButtonArea(buttons, focused))
	}

	dialog := lipgloss.JoinVertical(lipgloss.Left, parts...)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Width(d.width)

	return boxStyle.Render(dialog)
}

// renderButtonArea lays the buttons out horizontally, highlighting the
// focused one. Rows that do not fit the dialog are stacked vertically.
func (d *Dialog) renderButtonArea(buttons []string, focused int) string {
	base := lipgloss.NewStyle().
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("239")).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("239")).
		Padding(0, 2)
	active := base.
		Background(lipgloss.Color("60")).
		BorderForeground(lipgloss.Color("60"))

	rendered := make([]string, 0, len(buttons)*2)
	for i, label := range buttons {
		style := base
		if i == focused {
			style = active
		}
		if i > 0 {
			rendered = append(rendered, " ")
		}
		rendered = append(rendered, style.Render(label))
	}

	row := lipgloss.JoinHorizontal(lipgloss.Center, rendered...)
	if lipgloss.Width(row) > d.width-4 {
		stacked := make([]string, 0, len(buttons))
		for i, label := range buttons {
			style := base
			if i == focused {
				style = active
			}
			stacked = append(stacked, style.Render(label))
		}
		row = lipgloss.JoinVertical(lipgloss.Left, stacked...)
	}

	return lipgloss.NewStyle().Padding(1, 2, 0, 2).Render(row)
}
