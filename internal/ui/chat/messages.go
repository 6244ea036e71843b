// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/model"
)

// =============================================================================
// CONVERSATION MESSAGES
// =============================================================================

// SessionChangedMsg reports that the session advanced to Seq.
type SessionChangedMsg struct {
	Seq uint64
}

// sessionClosedMsg reports that the subscription channel was closed.
type sessionClosedMsg struct{}

// SubmitDoneMsg is the result of a text or image submission.
type SubmitDoneMsg struct {
	// Image is set for image submissions.
	Image *model.Image

	// Reply is the assistant turn on success.
	Reply model.Turn

	Err error
}

// =============================================================================
// CLASSIFIER MESSAGES
// =============================================================================

// ClassifyDoneMsg is the result of a classify-only run.
type ClassifyDoneMsg struct {
	Prediction *model.Prediction
	Err        error
}

// DropMsg reports an image that appeared in the drop folder.
type DropMsg struct {
	Path string
}

// dropClosedMsg reports that the drop folder watcher stopped.
type dropClosedMsg struct{}

// PasteMsg carries clipboard text.
type PasteMsg struct {
	Text string
	Err  error
}

// =============================================================================
// STATUS MESSAGES
// =============================================================================

// HealthMsg is the result of the backend health probe.
type HealthMsg struct {
	Health *api.HealthResponse
	Err    error
}

// CopiedMsg reports the result of copying a reply to the clipboard.
type CopiedMsg struct {
	Err error
}

// noticeExpiredMsg clears the transient notice with the given id.
type noticeExpiredMsg struct {
	id int
}
