// cardiochat - A terminal assistant for cardiac MRI classification and Q&A.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/cardiochat/internal/cli"
	"github.com/jeranaias/cardiochat/internal/ui/chat"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
	"github.com/jeranaias/cardiochat/internal/upload"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()
	cli.SetupLogging(args)

	var err error
	switch cmd {
	case cli.CmdChat:
		err = cli.HandleChat(args)
	case cli.CmdClassify:
		err = cli.HandleClassify(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdConfig:
		err = cli.HandleConfig(args)
	case cli.CmdVersion:
		err = cli.HandleVersion(args)
	case cli.CmdHelp:
		err = cli.HandleHelp(args)
	default:
		err = runTUI(args)
	}

	if err != nil {
		cli.PrintError(os.Stderr, err)
		os.Exit(cli.ExitCode(err))
	}
}

// runTUI starts the full-screen chat.
func runTUI(args cli.Args) error {
	if err := cli.RequiresTTY("start the chat UI"); err != nil {
		return err
	}

	cfg, err := cli.LoadConfig(args)
	if err != nil {
		return err
	}

	// The alternate screen owns the terminal, so logs go to a file.
	if logPath, err := cli.DataPath("debug.log"); err == nil {
		if f, err := tea.LogToFile(logPath, "cardiochat"); err == nil {
			defer f.Close()
		} else {
			log.SetOutput(io.Discard)
		}
	}

	rt, err := cli.NewRuntime(cfg, cli.RuntimeOptions{TempPreviews: true})
	if err != nil {
		return err
	}
	defer rt.Close()

	var watcher *upload.Watcher
	if cfg.Upload.WatchDir != "" {
		watcher, err = upload.NewWatcher(cfg.Upload.WatchDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: drop folder disabled: %v\n", err)
		} else {
			defer watcher.Close()
		}
	}

	m := chat.New(chat.Options{
		Session:        rt.Session,
		Uploads:        rt.Uploads,
		Health:         rt.Client,
		Watcher:        watcher,
		Theme:          styles.NewTheme(cfg.UI.Theme),
		ShowDisclaimer: cfg.UI.ShowDisclaimer,
		Markdown:       !cfg.Chat.PostProcess,
	})
	defer m.Shutdown()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running cardiochat: %w", err)
	}
	return nil
}
