// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package postprocess

import (
	"regexp"
	"strings"
)

// Transform is one step of the reply pipeline.
type Transform func(string) string

var (
	headerRunPattern   = regexp.MustCompile(`#{4,}`)
	headerLinePattern  = regexp.MustCompile(`(?m)^#{2,3}[ \t]+(.+)$`)
	blankRunPattern    = regexp.MustCompile(`\n{3,}`)
	bulletMarkerPrefix = regexp.MustCompile(`^[*-]\s*`)
)

// NormalizeNewlines converts CRLF and lone CR line endings to LF.
func NormalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// CollapseHeaderMarkers reduces runs of four or more '#' to "###".
func CollapseHeaderMarkers(s string) string {
	return headerRunPattern.ReplaceAllString(s, "###")
}

// StripEmphasis removes bold markers.
func StripEmphasis(s string) string {
	return strings.ReplaceAll(s, "**", "")
}

// FlattenHeaders turns "## Title" and "### Title" lines into a plain line
// surrounded by blank lines.
func FlattenHeaders(s string) string {
	return headerLinePattern.ReplaceAllString(s, "\n$1\n")
}

// isBullet reports whether line is a "- " or "* " list item.
func isBullet(line string) bool {
	t := strings.TrimSpace(line)
	return strings.HasPrefix(t, "- ") || strings.HasPrefix(t, "* ")
}

// bulletText returns the item text without its marker.
func bulletText(line string) string {
	return strings.TrimSpace(bulletMarkerPrefix.ReplaceAllString(strings.TrimSpace(line), ""))
}

// CapBullets keeps at most limit consecutive list items. The text of every
// further item in the run is appended, space-separated, to the last kept
// item. A limit below 1 disables the cap.
func CapBullets(limit int) Transform {
	return func(s string) string {
		if limit < 1 {
			return s
		}

		lines := strings.Split(s, "\n")
		out := make([]string, 0, len(lines))
		run := 0
		for _, line := range lines {
			if !isBullet(line) {
				out = append(out, line)
				run = 0
				continue
			}
			run++
			if run <= limit {
				out = append(out, line)
				continue
			}
			if text := bulletText(line); text != "" {
				out[len(out)-1] += " " + text
			}
		}
		return strings.Join(out, "\n")
	}
}

// CollapseBlankLines reduces three or more newlines to one blank line.
func CollapseBlankLines(s string) string {
	return blankRunPattern.ReplaceAllString(s, "\n\n")
}

// Substitute replaces each phrase of the table, ignoring case.
func Substitute(table []Substitution) Transform {
	type rule struct {
		pattern *regexp.Regexp
		to      string
	}
	rules := make([]rule, 0, len(table))
	for _, sub := range table {
		if sub.From == "" {
			continue
		}
		rules = append(rules, rule{
			pattern: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(sub.From)),
			to:      sub.To,
		})
	}

	return func(s string) string {
		for _, r := range rules {
			s = r.pattern.ReplaceAllLiteralString(s, r.to)
		}
		return s
	}
}

// TrimSpace trims leading and trailing whitespace.
func TrimSpace(s string) string {
	return strings.TrimSpace(s)
}
