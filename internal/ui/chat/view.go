// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/ui/components"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// View renders the chat interface.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Starting cardiochat..."
	}

	sections := []string{
		m.renderHeader(),
		m.viewport.View(),
	}
	if details := m.renderDetails(); details != "" {
		sections = append(sections, details)
	}
	sections = append(sections,
		m.renderActivity(),
		m.renderErrorLine(),
		m.renderComposer(),
	)
	if m.showHelp {
		sections = append(sections, m.help.View(m.keys))
	}
	sections = append(sections, m.statusBar.View())
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderHeader renders the title line with the status badge on the right.
func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("cardiochat") +
		m.theme.HeaderMeta.Render("  cardiac MRI assistant")

	badge := components.RenderBadge(m.theme, m.session.Prediction())
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(badge) - 2
	if badge != "" && gap > 0 {
		title += strings.Repeat(" ", gap) + badge
	} else if badge != "" {
		title = badge
	}
	return m.theme.Header.Width(m.width).Render(title)
}

// renderDetails renders the classify-only result and the disclaimer.
func (m *Model) renderDetails() string {
	var parts []string

	st := m.uploads.Snapshot()
	if st.Prediction != nil {
		parts = append(parts, components.RenderDetails(m.theme, st.Prediction))
	}

	if m.showDisclaimer {
		disclaimer := st.Disclaimer
		if disclaimer == "" {
			disclaimer = m.session.Snapshot().Disclaimer
		}
		if d := components.RenderDisclaimer(m.theme, disclaimer); d != "" {
			parts = append(parts, lipgloss.NewStyle().Width(m.width).Render(d))
		}
	}
	return strings.Join(parts, "\n")
}

// renderActivity shows the spinner while working, else the image chip or a
// notice.
func (m Model) renderActivity() string {
	if m.thinking.IsActive() {
		return m.theme.ThinkingText.Render(m.thinking.View())
	}
	if st := m.uploads.Snapshot(); st.Selection != nil {
		return components.RenderChip(m.theme, st.Selection, m.width)
	}
	if m.notice != "" {
		return m.theme.ShortcutDesc.Render(m.notice)
	}
	return ""
}

// renderErrorLine shows the most specific error: local, then session, then
// classifier.
func (m Model) renderErrorLine() string {
	msg := m.uiErr
	if msg == "" {
		msg = m.session.Snapshot().Error
	}
	if msg == "" {
		msg = m.uploads.Snapshot().Error
	}
	if msg == "" {
		if m.thinking.IsActive() && m.notice != "" {
			return m.theme.ShortcutDesc.Render(m.notice)
		}
		return ""
	}
	return styles.RenderError(msg)
}

// renderComposer renders the path prompt or the textarea with its counter.
func (m Model) renderComposer() string {
	if m.prompting {
		return m.theme.InputContainer.Width(m.width).Render(m.pathInput.View())
	}
	return m.theme.InputContainer.Width(m.width).Render(
		lipgloss.JoinVertical(lipgloss.Right, m.input.View(), m.renderCharCount()),
	)
}

// renderCharCount renders "n/4000", colored as the limit nears.
func (m Model) renderCharCount() string {
	n := utf8.RuneCountInString(m.input.Value())
	if n == 0 {
		return ""
	}
	text := strconv.Itoa(n) + "/" + strconv.Itoa(api.MaxMessageChars)
	switch {
	case n >= api.MaxMessageChars:
		return m.theme.CharCountDanger.Render(text)
	case n >= api.MaxMessageChars*9/10:
		return m.theme.CharCountWarning.Render(text)
	default:
		return m.theme.CharCount.Render(text)
	}
}

// countLines returns the number of lines in s.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, "\n") + 1
}
