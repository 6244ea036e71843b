// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"fmt"
	"strings"
)

// Provider selects the LLM behind /chat.
type Provider string

const (
	// ProviderGroq is the hosted Groq API.
	ProviderGroq Provider = "groq"

	// ProviderOSS is the self-hosted open-weights model.
	ProviderOSS Provider = "oss"
)

// Providers lists the selectable providers in display order.
func Providers() []Provider {
	return []Provider{ProviderGroq, ProviderOSS}
}

// ParseProvider parses a provider name. "grok" is accepted as an alias
// for groq. The empty string selects the default.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "groq", "grok":
		return ProviderGroq, nil
	case "oss":
		return ProviderOSS, nil
	default:
		return "", fmt.Errorf("%w: %q (expected groq or oss)", ErrUnknownProvider, s)
	}
}

// String returns the wire identifier.
func (p Provider) String() string {
	return string(p)
}

// Label returns the human-readable provider name.
func (p Provider) Label() string {
	switch p {
	case ProviderOSS:
		return "GPT 120B OSS"
	default:
		return "Groq API"
	}
}

// Next returns the provider after p, wrapping around.
func (p Provider) Next() Provider {
	if p == ProviderGroq {
		return ProviderOSS
	}
	return ProviderGroq
}
