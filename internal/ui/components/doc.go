// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package components provides the rendering pieces of the cardiochat TUI.

# Classifier

RenderBadge (classifier.go) - "Current ML: Sick (prob_sick 87.3%)" status badge.
RenderDetails (classifier.go) - Probabilities, threshold, timing and model files.
RenderDisclaimer (classifier.go) - The backend's medical disclaimer.

# Composer

RenderChip (chip.go) - The selected image: name, size, dimensions.
ThinkingIndicator (spinner.go) - Spinner shown while a request is in flight.

# Transcript

TurnRenderer (transcript.go) - Wraps turns to the viewport width; raw replies
are rendered as markdown with glamour.

# Output

HighlightJSON (highlight.go) - Chroma-highlighted JSON for the classify command.
StatusBar (statusbar.go) - Provider, state and key hints.
*/
package components
