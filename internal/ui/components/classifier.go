// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// =============================================================================
// NUMBER FORMATTING
// =============================================================================

// FormatPercent formats a probability in [0,1] as a percentage with one
// decimal place, rounding half away from zero: 0.8735 -> "87.4%".
func FormatPercent(p float64) string {
	return decimal.NewFromFloat(p).Shift(2).StringFixed(1) + "%"
}

// FormatThreshold formats a decision threshold to four decimal places.
func FormatThreshold(t float64) string {
	return decimal.NewFromFloat(t).StringFixed(4)
}

// =============================================================================
// STATUS BADGE
// =============================================================================

// BadgeText returns the plain badge text for p, or "" when p is nil.
func BadgeText(p *model.Prediction) string {
	if p == nil {
		return ""
	}
	return fmt.Sprintf("Current ML: %s (prob_sick %s)", p.Label, FormatPercent(p.ProbSick))
}

// RenderBadge renders the status badge. A sick verdict uses the danger style.
func RenderBadge(theme *styles.Theme, p *model.Prediction) string {
	text := BadgeText(p)
	if text == "" {
		return ""
	}
	if p.IsSick {
		return theme.BadgeDanger.Render(text)
	}
	return theme.BadgeNormal.Render(text)
}

// =============================================================================
// DETAILS
// =============================================================================

// DetailLines returns the classification details as key/value rows.
func DetailLines(p *model.Prediction) [][2]string {
	if p == nil {
		return nil
	}
	rows := [][2]string{
		{"Result", string(p.Label)},
		{"P(sick)", FormatPercent(p.ProbSick)},
		{"P(normal)", FormatPercent(p.ProbNormal)},
		{"Threshold", FormatThreshold(p.Threshold)},
		{"Inference", fmt.Sprintf("%d ms", p.InferenceMs)},
	}
	if p.ModelRepo != "" || p.ModelFile != "" {
		rows = append(rows, [2]string{"Model", strings.Trim(p.ModelRepo+"/"+p.ModelFile, "/")})
	}
	if p.ImageSize > 0 {
		rows = append(rows, [2]string{"Input", fmt.Sprintf("%dx%d", p.ImageSize, p.ImageSize)})
	}
	return rows
}

// RenderDetails renders DetailLines as an aligned block.
func RenderDetails(theme *styles.Theme, p *model.Prediction) string {
	rows := DetailLines(p)
	if len(rows) == 0 {
		return ""
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, theme.DetailKey.Render(row[0])+row[1])
	}
	return theme.Details.Render(strings.Join(lines, "\n"))
}

// RenderDisclaimer renders the backend disclaimer, or "" when empty.
func RenderDisclaimer(theme *styles.Theme, disclaimer string) string {
	disclaimer = strings.TrimSpace(disclaimer)
	if disclaimer == "" {
		return ""
	}
	return theme.Disclaimer.Render(disclaimer)
}
