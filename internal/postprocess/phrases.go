// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package postprocess

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Substitution maps a clinical phrase to a conversational one.
type Substitution struct {
	From string `yaml:"from" json:"from"`
	To   string `yaml:"to" json:"to"`
}

// phrasesFile is the on-disk layout of a phrase table.
type phrasesFile struct {
	Substitutions []Substitution `yaml:"substitutions"`
}

// DefaultSubstitutions returns the built-in phrase table.
func DefaultSubstitutions() []Substitution {
	return []Substitution{
		{From: "Based on the clinical findings,", To: "Looking at this image,"},
		{From: "The patient presents with", To: "This scan shows"},
		{From: "Clinical correlation is recommended", To: "It's a good idea to discuss this with your doctor"},
		{From: "Further evaluation is warranted", To: "Your doctor can provide more information about this"},
		{From: "It is important to note that", To: "Keep in mind that"},
	}
}

// ParseSubstitutions decodes a YAML phrase table:
//
//	substitutions:
//	  - from: "The patient presents with"
//	    to: "This scan shows"
func ParseSubstitutions(data []byte) ([]Substitution, error) {
	var f phrasesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to decode phrases: %w", err)
	}
	for i, sub := range f.Substitutions {
		if sub.From == "" {
			return nil, fmt.Errorf("phrase %d: empty 'from'", i+1)
		}
	}
	return f.Substitutions, nil
}

// LoadSubstitutions reads a YAML phrase table from path.
func LoadSubstitutions(path string) ([]Substitution, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read phrases file: %w", err)
	}
	subs, err := ParseSubstitutions(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return subs, nil
}

// MarshalSubstitutions encodes a phrase table as YAML, the inverse of
// ParseSubstitutions.
func MarshalSubstitutions(subs []Substitution) ([]byte, error) {
	return yaml.Marshal(phrasesFile{Substitutions: subs})
}
