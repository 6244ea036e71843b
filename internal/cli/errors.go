// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes for CLI commands.
//
// Commands return errors; main prints them once and exits with ExitCode.

package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/config"
	"github.com/jeranaias/cardiochat/internal/upload"
)

// Exit codes for different error categories.
const (
	ExitSuccess       = 0
	ExitGeneralError  = 1
	ExitUsageError    = 2
	ExitConfigError   = 3
	ExitNetworkError  = 5
	ExitNotFoundError = 7
	ExitTimeoutError  = 8
)

// UsageError reports invalid command usage.
type UsageError struct {
	Command string
	Reason  string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %s (see 'cardiochat help')", e.Command, e.Reason)
}

// CommandError wraps a failure with the command and action that hit it.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Command, e.Action, e.Err)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// reportedError marks a failure the command already printed. main exits
// with its code without printing it again.
type reportedError struct {
	err error
}

func (e *reportedError) Error() string {
	return e.err.Error()
}

func (e *reportedError) Unwrap() error {
	return e.err
}

// Reported wraps err so PrintError stays quiet about it.
func Reported(err error) error {
	if err == nil {
		return nil
	}
	return &reportedError{err: err}
}

// ExitCode maps an error to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usage *UsageError
	var cfgErrs config.ValidateErrors
	var classifyErr *api.ClassificationError
	var chatErr *api.ChatError

	switch {
	case errors.As(err, &usage):
		return ExitUsageError
	case errors.As(err, &cfgErrs):
		return ExitConfigError
	case errors.Is(err, api.ErrChatTimeout):
		return ExitTimeoutError
	case errors.Is(err, upload.ErrSelectionIgnored), errors.Is(err, upload.ErrNoImage):
		return ExitNotFoundError
	case errors.As(err, &classifyErr), errors.As(err, &chatErr):
		return ExitNetworkError
	default:
		return ExitGeneralError
	}
}

// PrintError writes err to w in the CLI error style.
func PrintError(w io.Writer, err error) {
	var reported *reportedError
	if err == nil || errors.As(err, &reported) {
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("Error:"), api.UserMessage(err))
}
