// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat provides the Bubble Tea program for the cardiochat TUI.

The model owns no conversation state of its own: it renders snapshots of a
conversation.Session and an upload.Controller, and turns key presses into
tea.Cmds that call them. Results return as messages on the event loop.

# Layout

	header      title, provider, status badge
	viewport    transcript
	details     classifier result and disclaimer
	error       inline error text
	chip        selected image
	composer    textarea (or the image path prompt)
	status bar  activity, provider, backend health, key hints

# Keys

	enter   send           ctrl+j  newline
	ctrl+o  choose image   ctrl+v  paste image or text
	ctrl+r  remove image   ctrl+k  classify only
	ctrl+l  clear result   ctrl+n  new chat
	ctrl+p  provider       ctrl+y  copy last reply
	esc     quit           ctrl+c  quit
*/
package chat
