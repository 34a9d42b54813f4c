// Copyright (c) 2026 Keymaster Team
// Keyshare - key share request prompt
// This source code is licensed under the MIT license found in the LICENSE file.

// package prompt implements the modal that asks whether encryption keys may
// be shared with a device. The prompt loads the device, marks it as seen and
// reports exactly one decision through its OnFinished callback: share, deny
// or dismissed. It can route through an interactive verification first, in
// which case the device's trust after verification decides.
package prompt

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/toeirei/keyshare/internal/i18n"
	"github.com/toeirei/keyshare/internal/logging"
	"github.com/toeirei/keyshare/internal/model"
	"github.com/toeirei/keyshare/internal/verify"
	"maunium.net/go/mautrix/id"
)

// Directory is the device directory the prompt reads from.
type Directory interface {
	// DownloadKeys returns devices keyed by user and device id. A missing
	// entry means the device is unknown.
	DownloadKeys(ctx context.Context, users []id.UserID, force bool) (map[id.UserID]map[id.DeviceID]*model.Device, error)
	SetDeviceKnown(ctx context.Context, userID id.UserID, deviceID id.DeviceID, known bool) error
	// GetUser returns nil when the user cannot be resolved.
	GetUser(ctx context.Context, userID id.UserID) (*model.User, error)
}

// TrustEvaluator answers whether a device is verified.
type TrustEvaluator interface {
	IsVerified(ctx context.Context, userID id.UserID, deviceID id.DeviceID) (bool, error)
}

// Chrome draws the modal frame around the prompt content.
type Chrome interface {
	Render(title, body string, buttons []string, focused int) string
}

// Busy is the indicator shown while the device is loading.
type Busy interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View() string
}

// Deps are the collaborators a prompt needs.
type Deps struct {
	Directory Directory
	Trust     TrustEvaluator
	Verifier  verify.Initiator
	Chrome    Chrome
	Busy      Busy
}

// Request identifies the requesting device and receives the decision.
type Request struct {
	UserID     id.UserID
	DeviceID   id.DeviceID
	OnFinished func(model.Decision)
}

const (
	buttonVerify = iota
	buttonShare
	buttonIgnore
	buttonCount
)

// Model is the key share request prompt.
type Model struct {
	id   int
	req  Request
	deps Deps

	ctx    context.Context
	cancel context.CancelFunc

	// device is nil until the lookup completes with a device.
	device       *model.Device
	wasNewDevice bool
	focused      int
	verifying    bool

	once     sync.Once
	finished bool
	decision model.Decision

	keys KeyMap
	help help.Model
}

// New creates a prompt for req. Call Init to start loading the device and
// Close when the prompt is taken off screen.
func New(req Request, deps Deps) *Model {
	ctx, cancel := context.WithCancel(context.Background())
	return &Model{
		id:     nextID(),
		req:    req,
		deps:   deps,
		ctx:    ctx,
		cancel: cancel,
		keys:   DefaultKeyMap(),
		help:   help.New(),
	}
}

// ID identifies this prompt instance on FinishedMsg and ErrorMsg.
func (m *Model) ID() int {
	return m.id
}

// Device returns the loaded device, or nil while loading.
func (m *Model) Device() *model.Device {
	return m.device
}

// Decision returns the decision and whether one was made.
func (m *Model) Decision() (model.Decision, bool) {
	return m.decision, m.finished
}

// Loading reports whether the device lookup is still outstanding.
func (m *Model) Loading() bool {
	return m.device == nil && !m.finished
}

// Close unmounts the prompt. Outstanding work completes into the void and
// OnFinished is never called afterwards.
func (m *Model) Close() {
	m.cancel()
}

func (m *Model) closed() bool {
	return m.ctx.Err() != nil
}

// Init starts the busy indicator and the single device lookup.
func (m *Model) Init() tea.Cmd {
	var busy tea.Cmd
	if m.deps.Busy != nil {
		busy = m.deps.Busy.Init()
	}
	return tea.Batch(busy, m.fetchDevice())
}

func (m *Model) fetchDevice() tea.Cmd {
	ctx, dir, pid := m.ctx, m.deps.Directory, m.id
	userID, deviceID := m.req.UserID, m.req.DeviceID
	return func() tea.Msg {
		devices, err := dir.DownloadKeys(ctx, []id.UserID{userID}, false)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return ErrorMsg{ID: pid, Err: fmt.Errorf("download keys of %s: %w", userID, err)}
		}
		return deviceLoadedMsg{id: pid, device: devices[userID][deviceID]}
	}
}

// Update handles messages and updates the prompt's state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.closed() {
		return m, nil
	}

	switch msg := msg.(type) {
	case deviceLoadedMsg:
		if msg.id != m.id {
			return m, nil
		}
		return m, m.onDeviceLoaded(msg.device)

	case userResolvedMsg:
		if msg.id != m.id {
			return m, nil
		}
		return m, m.onUserResolved(msg.user)

	case verificationDoneMsg:
		if msg.id != m.id {
			return m, nil
		}
		if msg.err != nil {
			m.verifying = false
			return m, m.fail(fmt.Errorf("verify %s: %w", m.deviceLabel(), msg.err))
		}
		return m, m.checkTrust()

	case trustCheckedMsg:
		if msg.id != m.id {
			return m, nil
		}
		m.verifying = false
		return m, m.finish(model.DecisionFromBool(msg.verified))

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}

	if m.deps.Busy != nil && (m.Loading() || m.verifying) {
		return m, m.deps.Busy.Update(msg)
	}
	return m, nil
}

func (m *Model) onDeviceLoaded(dev *model.Device) tea.Cmd {
	if m.finished {
		return nil
	}
	if dev == nil {
		logging.Warnf("No details found for session %s", m.deviceLabel())
		return m.finish(model.DecisionDeny)
	}
	d := *dev
	m.device = &d
	m.wasNewDevice = !d.Known
	if !m.wasNewDevice {
		return nil
	}
	return m.markKnown()
}

// markKnown records that the device has now been seen. Its result does not
// feed back into the prompt.
func (m *Model) markKnown() tea.Cmd {
	ctx, dir := m.ctx, m.deps.Directory
	userID, deviceID := m.req.UserID, m.req.DeviceID
	return func() tea.Msg {
		if err := dir.SetDeviceKnown(ctx, userID, deviceID, true); err != nil && ctx.Err() == nil {
			logging.Warnf("could not mark session %s:%s as known: %v", userID, deviceID, err)
		}
		return nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	if m.finished {
		return nil
	}
	if key.Matches(msg, m.keys.Cancel) {
		return m.finish(model.DecisionDismissed)
	}
	if m.device == nil || m.verifying {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.Next):
		m.focused = (m.focused + 1) % buttonCount
	case key.Matches(msg, m.keys.Prev):
		m.focused = (m.focused + buttonCount - 1) % buttonCount
	case key.Matches(msg, m.keys.Select):
		return m.press(m.focused)
	case key.Matches(msg, m.keys.Verify):
		m.focused = buttonVerify
		return m.press(buttonVerify)
	case key.Matches(msg, m.keys.Share):
		m.focused = buttonShare
		return m.press(buttonShare)
	case key.Matches(msg, m.keys.Ignore):
		m.focused = buttonIgnore
		return m.press(buttonIgnore)
	}
	return nil
}

func (m *Model) press(button int) tea.Cmd {
	switch button {
	case buttonVerify:
		return m.startVerification()
	case buttonShare:
		return m.finish(model.DecisionShare)
	case buttonIgnore:
		return m.finish(model.DecisionDeny)
	}
	return nil
}

func (m *Model) startVerification() tea.Cmd {
	m.verifying = true
	ctx, dir, pid, userID := m.ctx, m.deps.Directory, m.id, m.req.UserID
	resolve := func() tea.Msg {
		user, err := dir.GetUser(ctx, userID)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return ErrorMsg{ID: pid, Err: fmt.Errorf("resolve user %s: %w", userID, err)}
		}
		return userResolvedMsg{id: pid, user: user}
	}
	// The spinner stopped ticking once the device loaded; restart it.
	if m.deps.Busy != nil {
		return tea.Batch(m.deps.Busy.Init(), resolve)
	}
	return resolve
}

func (m *Model) onUserResolved(user *model.User) tea.Cmd {
	if user == nil {
		logging.Infof("KeyShareRequestPrompt: could not find user %s to verify", m.req.UserID)
		m.verifying = false
		return m.finish(model.DecisionDeny)
	}
	pid := m.id
	return m.deps.Verifier.Verify(m.ctx, user, m.device, func(err error) tea.Msg {
		return verificationDoneMsg{id: pid, err: err}
	})
}

func (m *Model) checkTrust() tea.Cmd {
	ctx, trust, pid := m.ctx, m.deps.Trust, m.id
	userID, deviceID := m.req.UserID, m.req.DeviceID
	return func() tea.Msg {
		verified, err := trust.IsVerified(ctx, userID, deviceID)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return ErrorMsg{ID: pid, Err: fmt.Errorf("check trust of %s:%s: %w", userID, deviceID, err)}
		}
		return trustCheckedMsg{id: pid, verified: verified}
	}
}

// finish delivers the decision once. Later calls are logged and dropped.
func (m *Model) finish(d model.Decision) tea.Cmd {
	first := false
	m.once.Do(func() {
		first = true
		m.finished = true
		m.decision = d
		if m.req.OnFinished != nil {
			m.req.OnFinished(d)
		}
	})
	if !first {
		logging.Debugf("prompt %d: ignoring %s after %s", m.id, d, m.decision)
		return nil
	}
	pid := m.id
	return func() tea.Msg { return FinishedMsg{ID: pid, Decision: d} }
}

func (m *Model) fail(err error) tea.Cmd {
	pid := m.id
	return func() tea.Msg { return ErrorMsg{ID: pid, Err: err} }
}

func (m *Model) deviceLabel() string {
	return fmt.Sprintf("%s:%s", m.req.UserID, m.req.DeviceID)
}

// View renders the loading, loaded or closing state inside the chrome.
func (m *Model) View() string {
	title := i18n.T("keyshare.title")

	if m.device == nil {
		if m.finished {
			return m.deps.Chrome.Render(title, "", nil, -1)
		}
		body := i18n.T("keyshare.loading")
		if m.deps.Busy != nil {
			body = m.deps.Busy.View() + " " + body
		}
		return m.deps.Chrome.Render(title, body, nil, -1)
	}

	var b strings.Builder
	b.WriteString(m.Text())
	if m.verifying {
		b.WriteString("\n\n")
		if m.deps.Busy != nil {
			b.WriteString(m.deps.Busy.View() + " ")
		}
		b.WriteString(i18n.T("keyshare.verifying"))
	}

	dialog := m.deps.Chrome.Render(title, b.String(), m.Buttons(), m.focused)
	return lipgloss.JoinVertical(lipgloss.Left, dialog, m.help.View(m.keys))
}

// Text is the prompt body for the loaded device.
func (m *Model) Text() string {
	if m.device == nil {
		return ""
	}
	data := map[string]any{"DisplayName": m.device.Name()}
	if m.wasNewDevice {
		return i18n.T("keyshare.new_session", data)
	}
	return i18n.T("keyshare.unverified_session", data)
}

// Buttons are the labels in display order.
func (m *Model) Buttons() []string {
	return []string{
		i18n.T("keyshare.start_verification"),
		i18n.T("keyshare.share_without_verifying"),
		i18n.T("keyshare.ignore_request"),
	}
}
