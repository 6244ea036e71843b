// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"log"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"

	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// TurnRenderer renders transcript turns for a fixed width.
//
// Processed replies are plain prose and are only wrapped. When markdown is
// enabled, assistant turns go through glamour instead.
type TurnRenderer struct {
	theme    *styles.Theme
	width    int
	markdown bool
	glam     *glamour.TermRenderer
}

// NewTurnRenderer creates a renderer. markdown selects glamour rendering for
// assistant turns.
func NewTurnRenderer(theme *styles.Theme, width int, markdown bool) *TurnRenderer {
	r := &TurnRenderer{theme: theme, markdown: markdown}
	r.SetWidth(width)
	return r
}

// SetWidth changes the wrap width. The glamour renderer is rebuilt because
// its wrap width is fixed at construction.
func (r *TurnRenderer) SetWidth(width int) {
	if width < 20 {
		width = 20
	}
	if width == r.width && (r.glam != nil || !r.markdown) {
		return
	}
	r.width = width
	r.glam = nil
	if !r.markdown {
		return
	}

	style := "light"
	if r.theme.IsDark {
		style = "dark"
	}
	glam, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle(style),
		glamour.WithWordWrap(r.contentWidth()),
	)
	if err != nil {
		log.Printf("transcript: markdown renderer unavailable: %v", err)
		return
	}
	r.glam = glam
}

// contentWidth is the width left after the turn border and padding.
func (r *TurnRenderer) contentWidth() int {
	return r.width - 2
}

// Body returns the wrapped content of t without decoration.
func (r *TurnRenderer) Body(t model.Turn) string {
	if t.Role == model.RoleAssistant && r.glam != nil {
		out, err := r.glam.Render(t.Content)
		if err == nil {
			return strings.Trim(out, "\n")
		}
		log.Printf("transcript: markdown render failed: %v", err)
	}
	return wordwrap.String(t.Content, r.contentWidth())
}

// Render renders one turn: a role label, the attachment line for image turns,
// and the bordered body.
func (r *TurnRenderer) Render(t model.Turn) string {
	var b strings.Builder

	label := r.theme.AssistantLabel.Render(t.Role.DisplayName())
	body := r.theme.AssistantTurn
	if t.Role == model.RoleUser {
		label = r.theme.UserLabel.Render(t.Role.DisplayName())
		body = r.theme.UserTurn
	}
	b.WriteString(label)
	if !t.CreatedAt.IsZero() {
		b.WriteString(" " + r.theme.Timestamp.Render(t.CreatedAt.Format("15:04")))
	}
	b.WriteString("\n")

	if t.HasImage() {
		b.WriteString(r.theme.Attachment.Render("[image] "+t.Image.Name+" ("+t.Image.HumanSize()+")") + "\n")
	}
	b.WriteString(body.Render(r.Body(t)))
	return b.String()
}

// RenderAll renders turns separated by blank lines.
func (r *TurnRenderer) RenderAll(turns []model.Turn) string {
	parts := make([]string, 0, len(turns))
	for _, t := range turns {
		parts = append(parts, r.Render(t))
	}
	return strings.Join(parts, "\n\n")
}
