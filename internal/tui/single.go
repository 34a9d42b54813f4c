// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/keyshare/internal/model"
	"github.com/toeirei/keyshare/internal/tui/frame"
	"github.com/toeirei/keyshare/internal/tui/prompt"
	"maunium.net/go/mautrix/id"
)

// singleModel hosts exactly one prompt and quits once it is done.
type singleModel struct {
	prompt   *prompt.Model
	dialog   *frame.Dialog
	decision model.Decision
	err      error
	width    int
	height   int
}

func newSingle(deps Deps, userID id.UserID, deviceID id.DeviceID) *singleModel {
	m := &singleModel{dialog: frame.NewDialog()}
	m.prompt = prompt.New(prompt.Request{
		UserID:     userID,
		DeviceID:   deviceID,
		OnFinished: func(d model.Decision) { m.decision = d },
	}, deps.promptDeps(m.dialog))
	return m
}

func (m *singleModel) Init() tea.Cmd {
	return m.prompt.Init()
}

func (m *singleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.dialog.SetWidth(min(64, msg.Width-4))
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.prompt.Close()
			return m, tea.Quit
		}
	case prompt.FinishedMsg:
		if msg.ID == m.prompt.ID() {
			m.prompt.Close()
			return m, tea.Quit
		}
		return m, nil
	case prompt.ErrorMsg:
		if msg.ID == m.prompt.ID() {
			m.err = msg.Err
			m.prompt.Close()
			return m, tea.Quit
		}
		return m, nil
	}
	_, cmd := m.prompt.Update(msg)
	return m, cmd
}

func (m *singleModel) View() string {
	view := m.prompt.View()
	if m.width == 0 || m.height == 0 {
		return view
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, view)
}

// RunPrompt shows a single prompt for the device and returns its decision.
// Interrupting the program yields DecisionDismissed.
func RunPrompt(ctx context.Context, deps Deps, userID id.UserID, deviceID id.DeviceID) (model.Decision, error) {
	restore, err := redirectLogs(deps.LogFile)
	if err != nil {
		return model.DecisionDismissed, err
	}
	defer restore()

	m := newSingle(deps, userID, deviceID)
	if _, err := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		return model.DecisionDismissed, fmt.Errorf("TUI run error: %w", err)
	}
	if m.err != nil {
		return model.DecisionDismissed, m.err
	}
	return m.decision, nil
}
