// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// package tui provides the terminal user interface for keyshare.
// This file, tui.go, contains the queue app: it polls the store for pending
// key share requests, prompts for one device at a time and records the
// outcome of every prompt.
package tui // import "github.com/toeirei/keyshare/internal/tui"

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/keyshare/internal/handler"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/logging"
	"github.com/toeirei/keyshare/internal/model"
	"github.com/toeirei/keyshare/internal/tui/frame"
	"github.com/toeirei/keyshare/internal/tui/prompt"
	"github.com/toeirei/keyshare/internal/verify"
)

const (
	defaultPollInterval = 2 * time.Second
	historySize         = 10
)

// Store is the part of the database the queue app reads and writes.
type Store interface {
	ListKeyShareRequests(ctx context.Context, status model.RequestStatus) ([]model.KeyShareRequest, error)
	UpdateKeyShareRequestStatus(ctx context.Context, requestID string, status model.RequestStatus) error
	LogAction(ctx context.Context, action string, details string) error
}

// Deps wires the TUI to storage, the device directory and verification.
type Deps struct {
	Store     Store
	Directory prompt.Directory
	Trust     prompt.TrustEvaluator
	Verifier  verify.Initiator

	// PollInterval is how often pending requests are re-read.
	PollInterval time.Duration
	// LogFile receives log output while the program owns the terminal.
	// Empty leaves logging untouched.
	LogFile string
	// NewBusy builds the loading indicator for each prompt. Defaults to
	// frame.NewSpinner.
	NewBusy func() prompt.Busy
}

func (d Deps) promptDeps(chrome prompt.Chrome) prompt.Deps {
	newBusy := d.NewBusy
	if newBusy == nil {
		newBusy = func() prompt.Busy { return frame.NewSpinner() }
	}
	return prompt.Deps{
		Directory: d.Directory,
		Trust:     d.Trust,
		Verifier:  d.Verifier,
		Chrome:    chrome,
		Busy:      newBusy(),
	}
}

type (
	pollMsg    struct{}
	pendingMsg struct {
		requests []model.KeyShareRequest
		err      error
	}
)

// appModel is the top-level model of the queue app.
type appModel struct {
	ctx     context.Context
	deps    Deps
	queue   *handler.Handler
	dialog  *frame.Dialog
	prompt  *prompt.Model
	current handler.DeviceKey
	history []resolution
	err     error
	width   int
	height  int

	tick func(time.Duration, func(time.Time) tea.Msg) tea.Cmd
}

func newApp(ctx context.Context, deps Deps) *appModel {
	if deps.PollInterval <= 0 {
		deps.PollInterval = defaultPollInterval
	}
	return &appModel{
		ctx:    ctx,
		deps:   deps,
		queue:  handler.New(),
		dialog: frame.NewDialog(),
		tick:   tea.Tick,
	}
}

// Init loads the pending requests right away.
func (m *appModel) Init() tea.Cmd {
	return m.poll()
}

func (m *appModel) poll() tea.Cmd {
	ctx, store := m.ctx, m.deps.Store
	return func() tea.Msg {
		reqs, err := store.ListKeyShareRequests(ctx, model.RequestPending)
		return pendingMsg{requests: reqs, err: err}
	}
}

func (m *appModel) scheduleTick() tea.Cmd {
	return m.tick(m.deps.PollInterval, func(time.Time) tea.Msg { return pollMsg{} })
}

// Update is the main message loop.
func (m *appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.dialog.SetWidth(min(64, msg.Width-4))

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, m.quit()
		}
		if m.prompt == nil {
			if msg.String() == "q" {
				return m, m.quit()
			}
			return m, nil
		}

	case pollMsg:
		return m, m.poll()

	case pendingMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("load pending requests: %w", msg.err)
			logging.Errorf("%v", m.err)
			return m, m.scheduleTick()
		}
		if m.queue.Sync(msg.requests) && m.prompt != nil {
			logging.Infof("closing prompt for %s: requests cancelled", m.current)
			m.closePrompt()
		}
		return m, tea.Batch(m.openNext(), m.scheduleTick())

	case prompt.FinishedMsg:
		if m.prompt == nil || msg.ID != m.prompt.ID() {
			return m, nil
		}
		key := m.current
		reqs := m.queue.Resolve(msg.Decision)
		m.closePrompt()
		return m, tea.Batch(recordResolution(m.ctx, m.deps.Store, key, reqs, msg.Decision), m.openNext())

	case prompt.ErrorMsg:
		if m.prompt == nil || msg.ID != m.prompt.ID() {
			return m, nil
		}
		m.err = msg.Err
		logging.Errorf("prompt for %s failed: %v", m.current, msg.Err)
		// Retried on the next poll.
		m.queue.Abandon()
		m.closePrompt()
		return m, nil

	case recordedMsg:
		if msg.err != nil {
			m.err = msg.err
			logging.Errorf("%v", msg.err)
		}
		m.history = append([]resolution{msg.res}, m.history...)
		if len(m.history) > historySize {
			m.history = m.history[:historySize]
		}
		return m, nil
	}

	if m.prompt != nil {
		_, cmd := m.prompt.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *appModel) openNext() tea.Cmd {
	if m.prompt != nil {
		return nil
	}
	key, ok := m.queue.Next()
	if !ok {
		return nil
	}
	m.current = key
	m.prompt = prompt.New(prompt.Request{
		UserID:   key.UserID,
		DeviceID: key.DeviceID,
		OnFinished: func(d model.Decision) {
			logging.Debugf("prompt for %s finished: %s", key, d)
		},
	}, m.deps.promptDeps(m.dialog))
	cmds := []tea.Cmd{m.prompt.Init()}
	if m.width > 0 {
		// The new prompt missed the initial size message.
		p := m.prompt
		_, sizeCmd := p.Update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		cmds = append(cmds, sizeCmd)
	}
	return tea.Batch(cmds...)
}

func (m *appModel) closePrompt() {
	if m.prompt == nil {
		return
	}
	m.prompt.Close()
	m.prompt = nil
	m.current = handler.DeviceKey{}
}

// quit leaves any open prompt undecided; its requests stay pending.
func (m *appModel) quit() tea.Cmd {
	m.closePrompt()
	return tea.Quit
}

// View renders the queue overview, or the active prompt centred on screen.
func (m *appModel) View() string {
	if m.prompt != nil {
		view := m.prompt.View()
		if m.width == 0 || m.height == 0 {
			return view
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, view)
	}

	var b strings.Builder
	b.WriteString(mainTitleStyle.Render(i18n.T("app.title")))
	b.WriteString("\n\n")
	if n := m.queue.Len(); n > 0 {
		b.WriteString(i18n.T("app.queue", n))
	} else {
		b.WriteString(helpStyle.Render(i18n.T("app.empty")))
	}
	b.WriteString("\n")

	if len(m.history) > 0 {
		b.WriteString("\n")
		b.WriteString(i18n.T("app.history"))
		b.WriteString("\n")
		for _, r := range m.history {
			b.WriteString(fmt.Sprintf("  %s  %-40s %s\n", r.at.Format("15:04:05"), r.key, decisionLabel(r.decision)))
		}
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errorStyle.Render(i18n.T("app.error", m.err)))
		b.WriteString("\n")
	}

	body := docStyle.Render(b.String())
	if m.height <= 0 {
		return body + "\n" + frame.StatusBar(i18n.T("app.quit_help"), "", m.width)
	}
	gap := m.height - lipgloss.Height(body) - 1
	if gap < 0 {
		gap = 0
	}
	return body + strings.Repeat("\n", gap) + "\n" + frame.StatusBar(i18n.T("app.quit_help"), "", m.width)
}

func decisionLabel(d model.Decision) string {
	label := i18n.T("decision." + d.String())
	switch d {
	case model.DecisionShare:
		return shareStyle.Render(label)
	case model.DecisionDeny:
		return denyStyle.Render(label)
	default:
		return dismissStyle.Render(label)
	}
}

// Run starts the queue app and blocks until the user quits or ctx ends.
func Run(ctx context.Context, deps Deps) error {
	restore, err := redirectLogs(deps.LogFile)
	if err != nil {
		return err
	}
	defer restore()

	p := tea.NewProgram(newApp(ctx, deps), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI run error: %w", err)
	}
	return nil
}

func redirectLogs(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	closeLog, err := logging.ToFile(path)
	if err != nil {
		return nil, err
	}
	return func() {
		if err := closeLog(); err != nil {
			logging.Warnf("could not close log file: %v", err)
		}
	}, nil
}
