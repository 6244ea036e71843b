// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package conversation

import (
	"errors"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/model"
)

// State represents the session's position in the request lifecycle.
type State int

const (
	// StateIdle accepts new submissions.
	StateIdle State = iota

	// StateAwaitingClassification covers an image turn: classify, then chat.
	StateAwaitingClassification

	// StateAwaitingReply covers a text turn.
	StateAwaitingReply

	// StateError holds the last failure; new submissions are accepted.
	StateError
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingClassification:
		return "awaitingClassification"
	case StateAwaitingReply:
		return "awaitingReply"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Pending reports whether a request is in flight in this state.
func (s State) Pending() bool {
	return s == StateAwaitingClassification || s == StateAwaitingReply
}

// Literals used to build image turns.
const (
	// DefaultImagePrompt is the user turn content when an image is sent
	// without text.
	DefaultImagePrompt = "Please analyze this cardiac MRI image."

	// ImageChatPrefix starts the chat message that follows a classification.
	ImageChatPrefix = "I just uploaded a cardiac MRI scan. "

	// DefaultImageQuestion completes ImageChatPrefix when no text was given.
	DefaultImageQuestion = "Can you explain what this means?"
)

// Error variables for the session.
var (
	// ErrBusy indicates a submission while a request is in flight.
	ErrBusy = errors.New("a request is already in progress")

	// ErrEmptyMessage indicates a text submission with no content.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrNoImage indicates SubmitImage was called without image data.
	ErrNoImage = errors.New("no image to submit")

	// ErrDiscarded indicates the result arrived after NewChat and was dropped.
	ErrDiscarded = errors.New("conversation was reset; result discarded")

	// ErrClosed indicates the session has been closed.
	ErrClosed = errors.New("session closed")
)

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	// Turns is the ordered transcript.
	Turns []model.Turn

	// Prediction is the current classification context, or nil.
	Prediction *model.Prediction

	Provider api.Provider
	State    State
	Loading  bool

	// Error is the user-visible text of the last failure.
	Error string

	// Disclaimer and Model come from the last successful reply.
	Disclaimer string
	Model      string

	// Seq increases on every change; views scroll to the newest turn when
	// it advances.
	Seq uint64
}

// LastTurn returns the newest turn.
func (s Snapshot) LastTurn() (model.Turn, bool) {
	if len(s.Turns) == 0 {
		return model.Turn{}, false
	}
	return s.Turns[len(s.Turns)-1], true
}
