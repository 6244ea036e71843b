// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting.
//
// Every --json command prints one JSONResponse envelope on stdout.
// Human-readable messages go to stderr in JSON mode.

package cli

import (
	"time"

	"github.com/jeranaias/cardiochat/internal/model"
)

// JSONResponse is the envelope printed by --json commands.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is when the response was generated (RFC 3339, UTC)
	Timestamp string `json:"timestamp"`

	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a successful response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates an error response carrying the user-facing
// message for err.
func NewJSONErrorResponse(command string, msg string) *JSONResponse {
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// ClassifyData is the data returned by the classify command.
type ClassifyData struct {
	File       string            `json:"file"`
	Prediction *model.Prediction `json:"prediction"`
	Disclaimer string            `json:"disclaimer,omitempty"`
	Badge      string            `json:"badge"`
	DurationMs int64             `json:"duration_ms"`
}

// StatusData is the data returned by the status command.
type StatusData struct {
	BaseURL   string `json:"base_url"`
	Reachable bool   `json:"reachable"`
	Status    string `json:"status,omitempty"`
	Device    string `json:"device,omitempty"`
	ModelRepo string `json:"model_repo,omitempty"`
	ModelFile string `json:"model_file,omitempty"`
	ImageSize int    `json:"image_size,omitempty"`
	Provider  string `json:"provider"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// VersionData is the data returned by the version command.
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}
