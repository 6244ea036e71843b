// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// =============================================================================
// THINKING INDICATOR
// =============================================================================

// ThinkingIndicator is the spinner shown while a request is in flight.
type ThinkingIndicator struct {
	spinner   spinner.Model
	message   string
	startTime time.Time
	active    bool
}

// NewThinkingIndicator creates an ASCII spinner styled by theme.
func NewThinkingIndicator(theme *styles.Theme) ThinkingIndicator {
	s := spinner.New()
	s.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	s.Style = theme.Spinner
	return ThinkingIndicator{spinner: s, message: "Thinking"}
}

// Start begins the animation with message.
func (t *ThinkingIndicator) Start(message string) tea.Cmd {
	t.message = message
	t.startTime = time.Now()
	t.active = true
	return t.spinner.Tick
}

// Stop ends the animation.
func (t *ThinkingIndicator) Stop() {
	t.active = false
}

// IsActive returns whether the indicator is running.
func (t *ThinkingIndicator) IsActive() bool {
	return t.active
}

// Elapsed returns the time since Start.
func (t *ThinkingIndicator) Elapsed() time.Duration {
	if t.startTime.IsZero() {
		return 0
	}
	return time.Since(t.startTime)
}

// Update advances the animation. Ticks stop once the indicator is stopped.
func (t ThinkingIndicator) Update(msg tea.Msg) (ThinkingIndicator, tea.Cmd) {
	if !t.active {
		return t, nil
	}
	var cmd tea.Cmd
	t.spinner, cmd = t.spinner.Update(msg)
	return t, cmd
}

// View renders "| Thinking... 3s", or "" when stopped.
func (t ThinkingIndicator) View() string {
	if !t.active {
		return ""
	}
	return fmt.Sprintf("%s %s... %s", t.spinner.View(), t.message, formatElapsed(t.Elapsed()))
}

// formatElapsed formats a duration for display.
func formatElapsed(d time.Duration) string {
	seconds := int(d.Seconds())
	if seconds < 60 {
		return fmt.Sprintf("%ds", seconds)
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
