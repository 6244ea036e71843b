// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Config command implementation.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Print the effective configuration as TOML
//   get <key>           Print one value, e.g. api.base_url
//   init [--force]      Write the default configuration file
//   path                Print the configuration file path
//
// Flags:
//   --json              Output in JSON format (show, get, path)

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/cardiochat/internal/config"
)

// ConfigData is the data returned by config show and path.
type ConfigData struct {
	Path   string         `json:"config_path"`
	Exists bool           `json:"exists"`
	Config *config.Config `json:"config,omitempty"`
}

// HandleConfig handles "cardiochat config [subcommand]".
func HandleConfig(args Args) error {
	p := NewArgParser(args.Rest, "force", "json")
	jsonMode := args.JSON || p.BoolFlag("json")

	path, err := configPath(args)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "show":
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		return showConfig(os.Stdout, cfg, path, jsonMode)

	case "get":
		key := p.Positional(1)
		if key == "" {
			return &UsageError{Command: "config get", Reason: "missing key (e.g. api.base_url)"}
		}
		cfg, err := LoadConfig(args)
		if err != nil {
			return err
		}
		return getConfigValue(os.Stdout, cfg, key, jsonMode)

	case "init":
		return initConfig(os.Stdout, path, p.BoolFlag("force"))

	case "path":
		data := ConfigData{Path: path, Exists: fileExists(path)}
		if jsonMode {
			return outputJSON(os.Stdout, NewJSONResponse("config", data))
		}
		fmt.Println(path)
		return nil

	default:
		return &UsageError{Command: "config " + args.Subcommand, Reason: "unknown subcommand (show, get, init, path)"}
	}
}

// configPath returns --config or the default TOML path.
func configPath(args Args) (string, error) {
	if args.ConfigPath != "" {
		return args.ConfigPath, nil
	}
	return config.ConfigPathTOML()
}

func showConfig(w io.Writer, cfg *config.Config, path string, jsonMode bool) error {
	data := ConfigData{Path: path, Exists: fileExists(path), Config: cfg}
	if jsonMode {
		return outputJSON(w, NewJSONResponse("config", data))
	}

	source := path
	if !data.Exists {
		source = path + " (not found, using defaults)"
	}
	fmt.Fprintln(w, DimStyle.Render("# "+source))
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

func getConfigValue(w io.Writer, cfg *config.Config, key string, jsonMode bool) error {
	val, err := cfg.Get(key)
	if err != nil {
		return &UsageError{Command: "config get", Reason: err.Error()}
	}
	if jsonMode {
		return outputJSON(w, NewJSONResponse("config", map[string]interface{}{key: val}))
	}
	_, err = fmt.Fprintln(w, val)
	return err
}

// ErrConfigExists is returned by config init when the file exists and
// --force was not given.
var ErrConfigExists = errors.New("config file already exists (use --force to overwrite)")

func initConfig(w io.Writer, path string, force bool) error {
	if fileExists(path) && !force {
		return &CommandError{Command: "config", Action: "init", Err: ErrConfigExists}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return &CommandError{Command: "config", Action: "init", Err: err}
	}
	if err := config.SaveTOML(config.Default(), path); err != nil {
		return &CommandError{Command: "config", Action: "init", Err: err}
	}
	fmt.Fprintln(w, SuccessStyle.Render("[OK]")+" Wrote "+path)
	return nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
