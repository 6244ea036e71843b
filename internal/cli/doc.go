// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands for
// cardiochat.
//
// # Key Types
//
//   - Command: Enumeration of the CLI commands
//   - Args: Parsed global flags plus the command's remaining arguments
//   - Runtime: The client, session and upload controller shared by commands
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdChat:
//	    err = cli.HandleChat(args)
//	// ... other commands
//	}
//
// # Commands
//
//   - tui: Full-screen chat (default)
//   - chat: Line-mode chat with /image, /new, /provider and /quit
//   - classify: One-shot classification of an image file
//   - status: Backend health
//   - config: show, init or path
//   - version, help
//
// classify and status support --json.
package cli
