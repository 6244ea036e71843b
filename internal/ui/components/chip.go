// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/jeranaias/cardiochat/internal/upload"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// ChipText describes a selected image on one line:
// "[img] scan.png · 512x512 · 1.2 MB". The name is shortened so the whole
// text fits in maxWidth cells.
func ChipText(sel *upload.Selection, maxWidth int) string {
	if sel == nil {
		return ""
	}

	meta := []string{sel.Image.HumanSize()}
	if dims := sel.Preview.Dimensions(); dims != "" {
		meta = append([]string{dims}, meta...)
	}
	suffix := " · " + strings.Join(meta, " · ")
	prefix := "[img] "

	name := sel.Image.Name
	if name == "" {
		name = "image"
	}
	if maxWidth > 0 {
		room := maxWidth - runewidth.StringWidth(prefix) - runewidth.StringWidth(suffix)
		if room < 4 {
			room = 4
		}
		name = runewidth.Truncate(name, room, "…")
	}
	return prefix + name + suffix
}

// RenderChip renders the selected image chip with its remove hint.
func RenderChip(theme *styles.Theme, sel *upload.Selection, maxWidth int) string {
	if sel == nil {
		return ""
	}
	hint := theme.ShortcutDesc.Render(" ctrl+r remove")
	// Border and padding take four cells.
	text := ChipText(sel, maxWidth-4-runewidth.StringWidth(" ctrl+r remove"))
	return theme.Chip.Render(text) + hint
}
