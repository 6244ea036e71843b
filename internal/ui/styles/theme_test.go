// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"
	"testing"
)

func TestNewTheme_ForcedModes(t *testing.T) {
	if theme := NewTheme(ModeDark); !theme.IsDark {
		t.Error("dark mode should set IsDark")
	}
	if theme := NewTheme("LIGHT"); theme.IsDark {
		t.Error("light mode should clear IsDark")
	}
}

func TestThemeStylesRender(t *testing.T) {
	theme := NewTheme(ModeDark)

	for name, style := range map[string]interface{ Render(...string) string }{
		"Header":      theme.Header,
		"UserTurn":    theme.UserTurn,
		"BadgeDanger": theme.BadgeDanger,
		"Chip":        theme.Chip,
		"StatusBar":   theme.StatusBar,
	} {
		if !strings.Contains(style.Render("test"), "test") {
			t.Errorf("%s style dropped its content", name)
		}
	}
}

func TestGetLayoutMode(t *testing.T) {
	theme := NewTheme(ModeDark)
	tests := []struct {
		width int
		want  LayoutMode
	}{
		{40, LayoutNarrow},
		{59, LayoutNarrow},
		{60, LayoutMedium},
		{99, LayoutMedium},
		{100, LayoutWide},
	}
	for _, tt := range tests {
		theme.SetSize(tt.width, 24)
		if got := theme.GetLayoutMode(); got != tt.want {
			t.Errorf("width %d: got %d, want %d", tt.width, got, tt.want)
		}
	}
}

func TestRenderStatusIndicators(t *testing.T) {
	if got := RenderStatus(true, "saved"); !strings.Contains(got, "[OK] saved") {
		t.Errorf("RenderStatus(true) = %q", got)
	}
	if got := RenderStatus(false, "failed"); !strings.Contains(got, "[X] failed") {
		t.Errorf("RenderStatus(false) = %q", got)
	}
	if got := RenderWarning("careful"); !strings.Contains(got, "[!]") {
		t.Errorf("RenderWarning = %q", got)
	}
	if got := RenderInfo("note"); !strings.Contains(got, "[i]") {
		t.Errorf("RenderInfo = %q", got)
	}
}
