// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"testing"
)

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	data := []byte("[api]\nbase_url = \"http://localhost:7860\"\n")

	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", content, data)
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "config.toml")

	if err := AtomicWriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	if err := AtomicWriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("got %q, want %q", content, "updated")
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestCollapseSpace(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"  hello   world \n", "hello world"},
		{"\t\n  ", ""},
		{"one\n\ntwo", "one two"},
		{"", ""},
	}

	for _, tc := range testCases {
		if got := CollapseSpace(tc.input); got != tc.expected {
			t.Errorf("CollapseSpace(%q) = %q, want %q", tc.input, got, tc.expected)
		}
	}
}

func TestNormalizeText(t *testing.T) {
	decomposed := "cafe\u0301"
	if got := NormalizeText(decomposed); got != "caf\u00e9" {
		t.Errorf("NormalizeText(%q) = %q, want composed form", decomposed, got)
	}
}

func TestTruncateRunes(t *testing.T) {
	testCases := []struct {
		input    string
		max      int
		expected string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo", 2, "hé"},
		{"anything", 0, ""},
	}

	for _, tc := range testCases {
		if got := TruncateRunes(tc.input, tc.max); got != tc.expected {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.input, tc.max, got, tc.expected)
		}
	}
}

func TestTruncateWidth(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		maxWidth int
	}{
		{"ascii short", "scan.png", 20},
		{"ascii truncate", "very-long-mri-slice-name.png", 10},
		{"cjk truncate", "心臓画像ファイル.png", 7},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := TruncateWidth(tc.input, tc.maxWidth)
			if w := StringWidth(got); w > tc.maxWidth {
				t.Errorf("TruncateWidth(%q, %d) = %q has width %d", tc.input, tc.maxWidth, got, w)
			}
		})
	}

	if got := TruncateWidth("scan.png", 0); got != "" {
		t.Errorf("TruncateWidth with zero width = %q, want empty", got)
	}
}
