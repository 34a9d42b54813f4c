// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package frame

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var statusBarStyle = lipgloss.NewStyle().Reverse(true)

// Footer builds a one-line footer from left and right tokens, aligning the
// right token to the right edge of a line with the specified width. The left
// token is truncated when both do not fit.
func Footer(left, right string, width int) string {
	if width <= 0 {
		return left + " " + right
	}
	lw, rw := ansi.StringWidth(left), ansi.StringWidth(right)
	if lw+rw+1 <= width {
		return left + strings.Repeat(" ", width-lw-rw) + right
	}
	maxLeft := width - rw
	if maxLeft <= 0 {
		return ansi.Truncate(right, width, "")
	}
	return ansi.Truncate(left, maxLeft, "") + right
}

// StatusBar renders Footer in reverse video.
func StatusBar(left, right string, width int) string {
	return statusBarStyle.Render(Footer(left, right, width))
}
