// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for cardiochat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: Main configuration structure with all settings
//   - APIConfig: Backend origin, chat timeout and provider
//   - ChatConfig: Greetings and reply post-processing
//   - UploadConfig: Drop folder and file size limit
//   - UIConfig: Theme and disclaimer
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (CARDIOCHAT_*, and API_BASE_URL)
//   - ~/.cardiochat/config.toml
//   - ~/.cardiochat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Printf("config: %v", err)
//	}
//	client := api.NewClient(cfg.API.BaseURL)
package config
