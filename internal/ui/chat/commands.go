// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/conversation"
	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/upload"
)

// HealthChecker probes the backend. *api.Client implements it.
type HealthChecker interface {
	Health(ctx context.Context) (*api.HealthResponse, error)
}

// healthTimeout bounds the startup health probe.
const healthTimeout = 5 * time.Second

// noticeTTL is how long a transient notice stays visible.
const noticeTTL = 3 * time.Second

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// submitTextCmd sends a text turn.
func submitTextCmd(ctx context.Context, s *conversation.Session, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := s.SubmitText(ctx, text)
		return SubmitDoneMsg{Reply: reply, Err: err}
	}
}

// submitImageCmd sends an image turn with optional text.
func submitImageCmd(ctx context.Context, s *conversation.Session, img model.Image, text string) tea.Cmd {
	return func() tea.Msg {
		reply, err := s.SubmitImage(ctx, img, text)
		return SubmitDoneMsg{Image: &img, Reply: reply, Err: err}
	}
}

// classifyCmd runs the classifier on the current selection.
func classifyCmd(ctx context.Context, c *upload.Controller) tea.Cmd {
	return func() tea.Msg {
		pred, err := c.RunClassification(ctx)
		return ClassifyDoneMsg{Prediction: pred, Err: err}
	}
}

// waitForChange blocks until the session changes.
func waitForChange(ch <-chan uint64) tea.Cmd {
	return func() tea.Msg {
		seq, ok := <-ch
		if !ok {
			return sessionClosedMsg{}
		}
		return SessionChangedMsg{Seq: seq}
	}
}

// waitForDrop blocks until an image lands in the drop folder.
func waitForDrop(w *upload.Watcher) tea.Cmd {
	if w == nil {
		return nil
	}
	return func() tea.Msg {
		path, ok := <-w.Files()
		if !ok {
			return dropClosedMsg{}
		}
		return DropMsg{Path: path}
	}
}

// healthCmd probes the backend once.
func healthCmd(ctx context.Context, h HealthChecker) tea.Cmd {
	if h == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, healthTimeout)
		defer cancel()
		resp, err := h.Health(ctx)
		return HealthMsg{Health: resp, Err: err}
	}
}

// pasteCmd reads the system clipboard.
func pasteCmd() tea.Cmd {
	return func() tea.Msg {
		text, err := clipboard.ReadAll()
		return PasteMsg{Text: text, Err: err}
	}
}

// copyCmd writes text to the system clipboard.
func copyCmd(text string) tea.Cmd {
	return func() tea.Msg {
		return CopiedMsg{Err: clipboard.WriteAll(text)}
	}
}

// expireNotice clears notice id after noticeTTL.
func expireNotice(id int) tea.Cmd {
	return tea.Tick(noticeTTL, func(time.Time) tea.Msg {
		return noticeExpiredMsg{id: id}
	})
}
