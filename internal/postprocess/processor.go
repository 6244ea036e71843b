// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package postprocess rewrites assistant replies into plain, patient-friendly
// text before display.
//
// The pipeline is an ordered list of independent Transform steps:
//
//  1. collapse "####..." header runs to "###"
//  2. strip "**" emphasis
//  3. flatten "##"/"###" header lines into plain lines
//  4. cap consecutive bullet items, folding the rest into the last one
//  5. collapse runs of blank lines
//  6. replace clinical phrases with conversational ones
//  7. trim
//
// A disabled Processor returns replies unchanged.
package postprocess

import (
	"github.com/jeranaias/cardiochat/internal/config"
)

// DefaultMaxBullets is the bullet cap when none is configured.
const DefaultMaxBullets = 3

// Config configures a Processor.
type Config struct {
	// Enabled selects the rewritten variant; false passes replies through.
	Enabled bool

	// MaxBullets caps consecutive list items. Zero means DefaultMaxBullets.
	MaxBullets int

	// Substitutions is the phrase table. Nil means DefaultSubstitutions.
	Substitutions []Substitution
}

// Processor applies the reply pipeline.
// A Processor is immutable and safe for concurrent use.
type Processor struct {
	enabled  bool
	steps    []Transform
	maxItems int
}

// New builds a Processor from cfg.
func New(cfg Config) *Processor {
	maxBullets := cfg.MaxBullets
	if maxBullets == 0 {
		maxBullets = DefaultMaxBullets
	}
	subs := cfg.Substitutions
	if subs == nil {
		subs = DefaultSubstitutions()
	}

	return &Processor{
		enabled:  cfg.Enabled,
		maxItems: maxBullets,
		steps: []Transform{
			NormalizeNewlines,
			CollapseHeaderMarkers,
			StripEmphasis,
			FlattenHeaders,
			CapBullets(maxBullets),
			CollapseBlankLines,
			Substitute(subs),
			TrimSpace,
		},
	}
}

// FromConfig builds a Processor from the chat section of the app config.
// The phrase table is read from chat.phrases_file when set.
func FromConfig(cfg config.ChatConfig) (*Processor, error) {
	pc := Config{
		Enabled:    cfg.PostProcess,
		MaxBullets: cfg.MaxBullets,
	}
	if cfg.PhrasesFile != "" {
		subs, err := LoadSubstitutions(cfg.PhrasesFile)
		if err != nil {
			return New(pc), err
		}
		pc.Substitutions = subs
	}
	return New(pc), nil
}

// Passthrough returns a disabled Processor.
func Passthrough() *Processor {
	return New(Config{Enabled: false})
}

// Enabled reports whether replies are rewritten.
func (p *Processor) Enabled() bool {
	return p != nil && p.enabled
}

// MaxBullets returns the configured bullet cap.
func (p *Processor) MaxBullets() int {
	return p.maxItems
}

// Process returns the display text for an assistant reply.
// The same input and configuration always produce the same output.
func (p *Processor) Process(reply string) string {
	if !p.Enabled() {
		return reply
	}
	for _, step := range p.steps {
		reply = step(reply)
	}
	return reply
}
