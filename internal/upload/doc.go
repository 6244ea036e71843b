// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package upload manages the selected MRI image.
//
// Three input modalities end in Controller.Select:
//
//   - SelectFile: an explicit path from the file prompt
//   - Drop: paths dropped onto the terminal, or files placed in the drop
//     folder reported by a Watcher
//   - Paste: clipboard text holding a path or a data:image URL
//
// Only image/* input is accepted; anything else returns ErrSelectionIgnored
// and leaves the state unchanged. Each selection owns a Preview from a
// PreviewStore. The previous preview is always released before a new one is
// created, and Clear, Remove, Take and Close release it too.
package upload
