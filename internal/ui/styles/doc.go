// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package styles provides the visual styling system for the cardiochat TUI.

All colors use Lip Gloss AdaptiveColor so the same palette works on light and
dark terminals. The theme is built once at startup:

	theme := styles.NewTheme(cfg.UI.Theme) // "auto", "dark" or "light"

# Color System (colors.go)

  - Crimson - Brand color and the "Sick" verdict
  - Teal - Assistant turns and the "Normal" verdict
  - Amber - Pending states and warnings
  - Slate surfaces and text tiers for everything else

Status messages always carry an ASCII indicator ([OK], [X], [!], [i]) so the
meaning does not depend on color alone.
*/
package styles
