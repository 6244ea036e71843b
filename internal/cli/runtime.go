// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// runtime.go - Builds the client, session and upload controller from
// configuration and flags.

package cli

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/config"
	"github.com/jeranaias/cardiochat/internal/conversation"
	"github.com/jeranaias/cardiochat/internal/postprocess"
	"github.com/jeranaias/cardiochat/internal/upload"
)

const defaultBaseURL = config.DefaultBaseURL

// SetupLogging sends the standard logger to stderr with --verbose and
// discards it otherwise.
func SetupLogging(args Args) {
	log.SetFlags(log.Ltime | log.Lmicroseconds)
	if args.Verbose {
		log.SetOutput(os.Stderr)
		return
	}
	log.SetOutput(io.Discard)
}

// LoadConfig loads the configuration file (or --config) and applies flag
// overrides. A config file that fails to parse yields the defaults and a
// warning on stderr; an invalid flag value is an error.
func LoadConfig(args Args) (*config.Config, error) {
	var cfg *config.Config
	if args.ConfigPath != "" {
		loaded, err := config.LoadFromPath(args.ConfigPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		loaded, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v (using defaults)\n", WarningStyle.Render("Warning:"), err)
		}
		cfg = loaded
	}

	cfg = cfg.Clone()
	if args.BaseURL != "" {
		cfg.API.BaseURL = args.BaseURL
	}
	if args.Provider != "" {
		p, err := api.ParseProvider(args.Provider)
		if err != nil {
			return nil, &UsageError{Command: "--provider", Reason: err.Error()}
		}
		cfg.API.Provider = p.String()
	}
	if args.Raw {
		cfg.Chat.PostProcess = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// Runtime is the set of collaborators a command needs.
type Runtime struct {
	Config    *config.Config
	Client    *api.Client
	Processor *postprocess.Processor
	Session   *conversation.Session
	Uploads   *upload.Controller

	store *upload.TempPreviewStore
}

// RuntimeOptions tunes NewRuntime.
type RuntimeOptions struct {
	// TempPreviews writes previews to a private temp directory; otherwise
	// previews are metadata only.
	TempPreviews bool
}

// NewRuntime wires a client, session and upload controller from cfg.
func NewRuntime(cfg *config.Config, opts RuntimeOptions) (*Runtime, error) {
	client := api.NewClient(cfg.API.BaseURL).
		WithChatTimeout(time.Duration(cfg.API.ChatTimeoutSecs) * time.Second)

	proc, err := postprocess.FromConfig(cfg.Chat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %v (using built-in phrases)\n", WarningStyle.Render("Warning:"), err)
	}

	provider, err := api.ParseProvider(cfg.API.Provider)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{
		Config:    cfg,
		Client:    client,
		Processor: proc,
		Session: conversation.New(client, conversation.Options{
			Greeting:      cfg.Chat.Greeting,
			ResetGreeting: cfg.Chat.ResetGreeting,
			Provider:      provider,
			Processor:     proc,
		}),
	}

	var store upload.PreviewStore
	if opts.TempPreviews {
		ts, err := upload.NewTempPreviewStore("")
		if err != nil {
			log.Printf("cli: previews kept in memory: %v", err)
		} else {
			rt.store = ts
			store = ts
		}
	}
	rt.Uploads = upload.NewController(client, store).WithMaxBytes(cfg.MaxImageBytes())

	log.Printf("cli: backend %s, provider %s, post-process %t", client.BaseURL(), provider, proc.Enabled())
	return rt, nil
}

// Close releases previews and cancels anything in flight.
func (r *Runtime) Close() error {
	var errs []error
	errs = append(errs, r.Uploads.Close(), r.Session.Close())
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	return errors.Join(errs...)
}

// DataPath returns a path under the config directory, creating the
// directory if needed.
func DataPath(name string) (string, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return "", err
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}
