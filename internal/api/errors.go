// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Error variables for common backend errors.
var (
	// ErrChatTimeout matches any *ChatTimeoutError.
	ErrChatTimeout = errors.New("chat request timed out")

	// ErrMessageTooLong indicates a message exceeds MaxMessageChars.
	ErrMessageTooLong = errors.New("message too long")

	// ErrEmptyMessage indicates a chat request without message text.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrUnknownProvider indicates a provider name other than groq or oss.
	ErrUnknownProvider = errors.New("unknown provider")
)

// ClassificationError is returned when /classify fails, either with a
// non-2xx status or because the request could not complete.
type ClassificationError struct {
	// Status is the HTTP status, or 0 when no response was received.
	Status int

	// Message is the server body text, or a generic message.
	Message string

	// Err is the transport error, if any.
	Err error
}

// Error implements the error interface.
func (e *ClassificationError) Error() string {
	return e.Message
}

// Unwrap returns the underlying transport error.
func (e *ClassificationError) Unwrap() error {
	return e.Err
}

// ChatError is returned when /chat fails with a non-2xx status or a
// transport error.
type ChatError struct {
	Status  int
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ChatError) Error() string {
	return e.Message
}

// Unwrap returns the underlying transport error.
func (e *ChatError) Unwrap() error {
	return e.Err
}

// ChatTimeoutError is returned when /chat exceeds the client-side timeout.
// The in-flight request has been aborted by the time it is returned.
type ChatTimeoutError struct {
	Timeout time.Duration
}

// Error implements the error interface.
func (e *ChatTimeoutError) Error() string {
	return fmt.Sprintf("Chat timed out after %s", e.Timeout)
}

// Is reports whether target is ErrChatTimeout.
func (e *ChatTimeoutError) Is(target error) bool {
	return target == ErrChatTimeout
}

// statusMessage builds the error text for a failed response: the body if
// present, else "<op> failed (<status>)".
func statusMessage(op string, status int, body []byte) string {
	if text := strings.TrimSpace(string(body)); text != "" {
		return text
	}
	return fmt.Sprintf("%s failed (%d)", op, status)
}

// UserMessage returns display text for an error from this package.
// FastAPI-style {"detail": "..."} bodies are reduced to the detail text.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var timeoutErr *ChatTimeoutError
	if errors.As(err, &timeoutErr) {
		return fmt.Sprintf("The assistant did not answer within %s. Please try again.", timeoutErr.Timeout)
	}
	if errors.Is(err, ErrMessageTooLong) {
		return fmt.Sprintf("Your message is too long (maximum %d characters).", MaxMessageChars)
	}

	var classifyErr *ClassificationError
	if errors.As(err, &classifyErr) {
		return detailOf(classifyErr.Message)
	}
	var chatErr *ChatError
	if errors.As(err, &chatErr) {
		return detailOf(chatErr.Message)
	}
	return err.Error()
}

// detailOf extracts the "detail" field from a JSON error body.
func detailOf(message string) string {
	if !strings.HasPrefix(message, "{") {
		return message
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal([]byte(message), &body); err != nil || len(body.Detail) == 0 {
		return message
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil && detail != "" {
		return detail
	}

	// Validation errors carry a list of {msg: ...} objects.
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil && len(items) > 0 {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if item.Msg != "" {
				msgs = append(msgs, item.Msg)
			}
		}
		if len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}
	return message
}
