// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared by the cardiochat packages.
//
// # Key Functions
//
// String Utilities:
//   - CollapseSpace: collapse runs of whitespace and trim (draft cleanup)
//   - NormalizeText: NFC normalisation for user and assistant text
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width aware truncation for terminal cells
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	msg := util.CollapseSpace(draft)
//	label := util.TruncateWidth(fileName, 24)
//	err := util.AtomicWriteFile(path, data, 0600)
package util
