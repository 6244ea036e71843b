// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is the activity shown at the left of the status bar.
type Status int

const (
	StatusReady Status = iota
	StatusClassifying
	StatusThinking
	StatusError
)

// String returns the display text of the status.
func (s Status) String() string {
	switch s {
	case StatusClassifying:
		return "Classifying"
	case StatusThinking:
		return "Thinking"
	case StatusError:
		return "Error"
	default:
		return "Ready"
	}
}

// Icon returns the ASCII indicator of the status.
func (s Status) Icon() string {
	switch s {
	case StatusClassifying, StatusThinking:
		return styles.StatusIndicators.Pending
	case StatusError:
		return styles.StatusIndicators.Error
	default:
		return styles.StatusIndicators.Success
	}
}

// =============================================================================
// STATUS BAR
// =============================================================================

// Shortcut is one key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// DefaultShortcuts are the hints shown on wide terminals.
var DefaultShortcuts = []Shortcut{
	{"enter", "send"},
	{"^O", "image"},
	{"^K", "classify"},
	{"^P", "provider"},
	{"^N", "new"},
	{"esc", "quit"},
}

// StatusBar is the bottom line of the TUI.
type StatusBar struct {
	Status   Status
	Provider api.Provider

	// Backend is the health probe summary, e.g. "online (cuda)".
	Backend string

	Width int
	theme *styles.Theme
}

// NewStatusBar creates a status bar for the groq provider.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Status:   StatusReady,
		Provider: api.ProviderGroq,
		Width:    80,
		theme:    theme,
	}
}

// SetWidth updates the status bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the status bar. Shortcuts are dropped on narrow terminals.
func (s *StatusBar) View() string {
	sep := lipgloss.NewStyle().Foreground(styles.Overlay).Render(" | ")

	parts := []string{
		s.statusStyle().Render(s.Status.Icon() + " " + s.Status.String()),
		s.theme.HeaderMeta.Render(s.Provider.Label()),
	}
	if s.Backend != "" && s.Width >= 60 {
		parts = append(parts, s.theme.HeaderMeta.Render("backend "+s.Backend))
	}
	left := strings.Join(parts, sep)

	if s.Width >= 100 {
		right := s.renderShortcuts()
		gap := s.Width - lipgloss.Width(left) - lipgloss.Width(right) - 2
		if gap > 0 {
			left += strings.Repeat(" ", gap) + right
		}
	}

	return s.theme.StatusBar.Width(s.Width).Render(left)
}

// renderShortcuts renders keyboard shortcut hints.
func (s *StatusBar) renderShortcuts() string {
	hints := make([]string, 0, len(DefaultShortcuts))
	for _, sc := range DefaultShortcuts {
		hints = append(hints, s.theme.ShortcutKey.Render(sc.Key)+" "+s.theme.ShortcutDesc.Render(sc.Desc))
	}
	return strings.Join(hints, "  ")
}

// statusStyle returns the style for the current status.
func (s *StatusBar) statusStyle() lipgloss.Style {
	switch s.Status {
	case StatusError:
		return lipgloss.NewStyle().Foreground(styles.ErrorHighContrast).Bold(true)
	case StatusClassifying, StatusThinking:
		return lipgloss.NewStyle().Foreground(styles.WarningHighContrast)
	default:
		return lipgloss.NewStyle().Foreground(styles.SuccessHighContrast)
	}
}
