// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/conversation"
	"github.com/jeranaias/cardiochat/internal/upload"
	"github.com/jeranaias/cardiochat/internal/ui/components"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// Options wires a Model to its collaborators.
type Options struct {
	Session *conversation.Session
	Uploads *upload.Controller

	// Health is probed once at startup. Nil skips the probe.
	Health HealthChecker

	// Watcher feeds dropped files. Nil disables the drop folder.
	Watcher *upload.Watcher

	Theme *styles.Theme

	// ShowDisclaimer renders the backend disclaimer under the transcript.
	ShowDisclaimer bool

	// Markdown renders replies with glamour. Used when post-processing is off.
	Markdown bool
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	ctx    context.Context
	cancel context.CancelFunc

	session *conversation.Session
	uploads *upload.Controller
	health  HealthChecker
	watcher *upload.Watcher
	changes <-chan uint64
	unsub   func()

	// Styling
	theme    *styles.Theme
	renderer *components.TurnRenderer
	keys     KeyMap

	// Dimensions
	width  int
	height int
	ready  bool

	// UI Components
	viewport  viewport.Model
	input     textarea.Model
	pathInput textinput.Model
	thinking  components.ThinkingIndicator
	statusBar *components.StatusBar
	help      help.Model

	// prompting is true while the image path prompt has focus.
	prompting bool
	showHelp  bool

	showDisclaimer bool

	// uiErr is a local error (bad path, clipboard failure) shown inline
	// until the next action.
	uiErr string

	notice   string
	noticeID int

	// lastSeq is the session sequence last rendered.
	lastSeq   uint64
	lastTurns int

	quitting bool
}

// New creates the chat model.
func New(opts Options) Model {
	ctx, cancel := context.WithCancel(context.Background())

	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme(styles.ModeAuto)
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about your scan, or press ctrl+o to attach an image..."
	ta.ShowLineNumbers = false
	ta.CharLimit = api.MaxMessageChars
	ta.SetHeight(3)
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("ctrl+j"))
	ta.Focus()

	ti := textinput.New()
	ti.Prompt = "Image path: "
	ti.PromptStyle = theme.Prompt
	ti.Placeholder = "~/scans/study.png"

	m := Model{
		ctx:            ctx,
		cancel:         cancel,
		session:        opts.Session,
		uploads:        opts.Uploads,
		health:         opts.Health,
		watcher:        opts.Watcher,
		theme:          theme,
		renderer:       components.NewTurnRenderer(theme, 80, opts.Markdown),
		keys:           DefaultKeyMap(),
		viewport:       viewport.New(80, 20),
		input:          ta,
		pathInput:      ti,
		thinking:       components.NewThinkingIndicator(theme),
		statusBar:      components.NewStatusBar(theme),
		help:           help.New(),
		showDisclaimer: opts.ShowDisclaimer,
	}
	m.changes, m.unsub = opts.Session.Subscribe()
	m.statusBar.Provider = opts.Session.Provider()
	m.refresh()
	return m
}

// Init starts the cursor blink, the session subscription, the drop folder
// and the health probe.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		waitForChange(m.changes),
		waitForDrop(m.watcher),
		healthCmd(m.ctx, m.health),
	)
}

// Shutdown cancels requests in flight and stops the session subscription.
// The program calls it once the event loop has ended.
func (m Model) Shutdown() {
	m.cancel()
	if m.unsub != nil {
		m.unsub()
	}
}

// =============================================================================
// LAYOUT
// =============================================================================

// fixedHeight is the number of lines outside the viewport.
func (m *Model) fixedHeight() int {
	h := 1 + 1 // header, status bar
	h += 2     // composer border, char count
	if m.prompting {
		h++
	} else {
		h += m.input.Height()
	}
	h += 2 // chip or thinking line, error line
	if m.showHelp {
		h += 5
	}
	if details := m.renderDetails(); details != "" {
		h += countLines(details)
	}
	return h
}

// layout sizes the components for the current window.
func (m *Model) layout() {
	if m.width == 0 {
		return
	}
	m.theme.SetSize(m.width, m.height)
	m.statusBar.SetWidth(m.width)
	m.input.SetWidth(m.width - 2)
	m.pathInput.Width = m.width - len(m.pathInput.Prompt) - 2
	m.help.Width = m.width
	m.renderer.SetWidth(m.width - 2)

	vh := m.height - m.fixedHeight()
	if vh < 3 {
		vh = 3
	}
	m.viewport.Width = m.width
	m.viewport.Height = vh
}

// refresh re-renders the transcript from the session. The view follows the
// newest turn when the transcript grew or was reset.
func (m *Model) refresh() {
	snap := m.session.Snapshot()
	m.viewport.SetContent(m.renderer.RenderAll(snap.Turns))
	if len(snap.Turns) != m.lastTurns || m.viewport.AtBottom() {
		m.viewport.GotoBottom()
	}
	m.lastTurns = len(snap.Turns)
	m.lastSeq = snap.Seq
	m.statusBar.Provider = snap.Provider
	m.statusBar.Status = m.status(snap)
}

// status derives the status bar activity.
func (m *Model) status(snap conversation.Snapshot) components.Status {
	switch {
	case snap.State == conversation.StateAwaitingClassification:
		return components.StatusClassifying
	case snap.State == conversation.StateAwaitingReply:
		return components.StatusThinking
	case m.uploads.Loading():
		return components.StatusClassifying
	case snap.State == conversation.StateError || m.uiErr != "":
		return components.StatusError
	default:
		return components.StatusReady
	}
}

// busy reports whether either the session or the classifier is working.
func (m *Model) busy() bool {
	return m.session.Loading() || m.uploads.Loading()
}
