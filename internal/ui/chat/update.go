// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/conversation"
	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/upload"
)

// Update handles messages and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case SessionChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)

	case sessionClosedMsg:
		return m, nil

	case SubmitDoneMsg:
		return m.handleSubmitDone(msg)

	case ClassifyDoneMsg:
		return m.handleClassifyDone(msg)

	case DropMsg:
		m.selectWith(func() error { return m.uploads.Drop([]string{msg.Path}) }, "Dropped "+filepath.Base(msg.Path))
		cmd := tea.Batch(waitForDrop(m.watcher), m.noticeCmd())
		return m, cmd

	case dropClosedMsg:
		log.Printf("chat: drop folder watcher stopped")
		return m, nil

	case PasteMsg:
		return m.handlePaste(msg)

	case CopiedMsg:
		if msg.Err != nil {
			m.uiErr = "Clipboard unavailable: " + msg.Err.Error()
			return m, nil
		}
		m.notice = "Copied last reply"
		cmd := m.noticeCmd()
		return m, cmd

	case HealthMsg:
		m.statusBar.Backend = healthSummary(msg)
		return m, nil

	case noticeExpiredMsg:
		if msg.id == m.noticeID {
			m.notice = ""
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.thinking, cmd = m.thinking.Update(msg)
	return m, cmd
}

// =============================================================================
// KEY HANDLING
// =============================================================================

// handleKey routes a key press. The path prompt takes all keys while open.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m.quit()
	}
	if m.prompting {
		return m.handlePromptKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Cancel):
		return m.quit()

	case key.Matches(msg, m.keys.Send):
		return m.send()

	case key.Matches(msg, m.keys.OpenFile):
		m.prompting = true
		m.pathInput.Reset()
		m.input.Blur()
		m.layout()
		cmd := m.pathInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Paste):
		return m, pasteCmd()

	case key.Matches(msg, m.keys.RemoveImage):
		m.uploads.Remove()
		m.uiErr = ""
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.Classify):
		return m.classify()

	case key.Matches(msg, m.keys.ClearClassifier):
		m.uploads.Clear()
		m.session.ClearPrediction()
		m.uiErr = ""
		m.layout()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.NewChat):
		m.session.NewChat()
		m.thinking.Stop()
		m.uiErr = ""
		m.layout()
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Provider):
		if err := m.session.SetProvider(m.session.Provider().Next()); err != nil {
			m.uiErr = err.Error()
		}
		m.notice = "Provider: " + m.session.Provider().Label()
		m.refresh()
		cmd := m.noticeCmd()
		return m, cmd

	case key.Matches(msg, m.keys.CopyReply):
		if reply, ok := lastReply(m.session.Snapshot().Turns); ok {
			return m, copyCmd(reply)
		}
		return m, nil

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.help.ShowAll = m.showHelp
		m.layout()
		return m, nil

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil

	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handlePromptKey drives the image path prompt.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.closePrompt()
		cmd := m.input.Focus()
		return m, cmd

	case tea.KeyEnter:
		path := expandPath(m.pathInput.Value())
		m.closePrompt()
		if path != "" {
			m.selectWith(func() error { return m.uploads.SelectFile(path) }, "Attached "+filepath.Base(path))
		}
		cmd := tea.Batch(m.input.Focus(), m.noticeCmd())
		return m, cmd
	}

	var cmd tea.Cmd
	m.pathInput, cmd = m.pathInput.Update(msg)
	return m, cmd
}

// closePrompt hides the path prompt.
func (m *Model) closePrompt() {
	m.prompting = false
	m.pathInput.Blur()
	m.layout()
}

// quit cancels requests in flight and ends the program.
func (m Model) quit() (tea.Model, tea.Cmd) {
	m.quitting = true
	m.cancel()
	return m, tea.Quit
}

// =============================================================================
// ACTIONS
// =============================================================================

// send submits the draft, with the selected image if there is one. The
// draft is cleared at once; the image stays selected until the turn
// succeeds.
func (m Model) send() (tea.Model, tea.Cmd) {
	if m.busy() {
		m.notice = conversation.ErrBusy.Error()
		cmd := m.noticeCmd()
		return m, cmd
	}

	text := m.input.Value()
	img, hasImage := m.uploads.Current()
	if !hasImage && strings.TrimSpace(text) == "" {
		return m, nil
	}
	if len([]rune(text)) > api.MaxMessageChars {
		m.uiErr = api.UserMessage(api.ErrMessageTooLong)
		return m, nil
	}

	m.input.Reset()
	m.uiErr = ""

	var work tea.Cmd
	label := "Thinking"
	if hasImage {
		work = submitImageCmd(m.ctx, m.session, img, text)
		label = "Analyzing image"
	} else {
		work = submitTextCmd(m.ctx, m.session, text)
	}
	cmd := tea.Batch(work, m.thinking.Start(label))
	return m, cmd
}

// handleSubmitDone finishes a submission.
func (m Model) handleSubmitDone(msg SubmitDoneMsg) (tea.Model, tea.Cmd) {
	if conversation.IsDiscarded(msg.Err) {
		return m, nil
	}
	m.thinking.Stop()

	if msg.Err == nil && msg.Image != nil {
		// Only clear the selection if it is still the image that was sent.
		if cur, ok := m.uploads.Current(); ok && upload.Fingerprint(cur.Data) == upload.Fingerprint(msg.Image.Data) {
			m.uploads.Remove()
		}
	}
	if msg.Err != nil && !errors.Is(msg.Err, conversation.ErrEmptyMessage) {
		log.Printf("chat: submit failed: %v", msg.Err)
	}
	if errors.Is(msg.Err, conversation.ErrBusy) {
		m.notice = msg.Err.Error()
	}
	m.layout()
	m.refresh()
	return m, nil
}

// classify runs the classifier on the selected image without chatting.
func (m Model) classify() (tea.Model, tea.Cmd) {
	if _, ok := m.uploads.Current(); !ok {
		m.uiErr = "Select an image first (ctrl+o)."
		return m, nil
	}
	if m.busy() {
		m.notice = upload.ErrBusy.Error()
		cmd := m.noticeCmd()
		return m, cmd
	}
	m.uiErr = ""
	cmd := tea.Batch(classifyCmd(m.ctx, m.uploads), m.thinking.Start("Classifying"))
	return m, cmd
}

// handleClassifyDone makes a classify-only result the chat context.
func (m Model) handleClassifyDone(msg ClassifyDoneMsg) (tea.Model, tea.Cmd) {
	m.thinking.Stop()
	switch {
	case msg.Err == nil:
		m.session.SetPrediction(msg.Prediction)
	case errors.Is(msg.Err, upload.ErrSuperseded):
		// A newer selection replaced the image; nothing to show.
	default:
		log.Printf("chat: classify failed: %v", msg.Err)
		m.session.ClearPrediction()
	}
	m.layout()
	m.refresh()
	return m, nil
}

// handlePaste selects a pasted image, or inserts the text into the draft.
func (m Model) handlePaste(msg PasteMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.uiErr = "Clipboard unavailable: " + msg.Err.Error()
		return m, nil
	}
	err := m.uploads.Paste(msg.Text)
	switch {
	case err == nil:
		m.session.ClearPrediction()
		m.uiErr = ""
		m.notice = "Attached pasted image"
		m.layout()
		cmd := m.noticeCmd()
		return m, cmd
	case errors.Is(err, upload.ErrSelectionIgnored):
		if m.prompting {
			m.pathInput.SetValue(m.pathInput.Value() + msg.Text)
		} else {
			m.input.InsertString(msg.Text)
		}
		return m, nil
	default:
		m.uiErr = err.Error()
		return m, nil
	}
}

// selectWith runs a selection and reports the outcome. Ignored input is
// silent.
func (m *Model) selectWith(fn func() error, success string) {
	err := fn()
	switch {
	case err == nil:
		// A new image invalidates the previous result.
		m.session.ClearPrediction()
		m.uiErr = ""
		m.notice = success
	case errors.Is(err, upload.ErrSelectionIgnored):
		m.notice = "Not an image; ignored"
	default:
		m.uiErr = err.Error()
	}
	m.layout()
}

// noticeCmd schedules the current notice to expire.
func (m *Model) noticeCmd() tea.Cmd {
	m.noticeID++
	return expireNotice(m.noticeID)
}

// =============================================================================
// HELPERS
// =============================================================================

// lastReply returns the newest assistant turn's content.
func lastReply(turns []model.Turn) (string, bool) {
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == model.RoleAssistant {
			return turns[i].Content, true
		}
	}
	return "", false
}

// expandPath trims the prompt value and expands a leading "~/".
func expandPath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), `"'`)
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}

// healthSummary formats a health probe result for the status bar.
func healthSummary(msg HealthMsg) string {
	if msg.Err != nil {
		log.Printf("chat: health probe failed: %v", msg.Err)
		return "offline"
	}
	if !msg.Health.OK() {
		if msg.Health == nil || msg.Health.Status == "" {
			return "unknown"
		}
		return msg.Health.Status
	}
	if msg.Health.Device != "" {
		return fmt.Sprintf("online (%s)", msg.Health.Device)
	}
	return "online"
}
