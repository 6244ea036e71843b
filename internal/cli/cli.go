// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for cardiochat.
package cli

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdChat
	CmdClassify
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdChat:
		return "chat"
	case CmdClassify:
		return "classify"
	case CmdStatus:
		return "status"
	case CmdConfig:
		return "config"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Verbose    bool
	JSON       bool   // Output in JSON format
	ConfigPath string // --config overrides ~/.cardiochat/config.toml
	Provider   string // --provider overrides api.provider
	BaseURL    string // --api overrides api.base_url
	Raw        bool   // --raw disables reply post-processing

	// Command-specific
	Subcommand string
	File       string

	// Rest holds the arguments after the command name.
	Rest []string
}

const usageText = `cardiochat - cardiac MRI assistant for the terminal

Upload a cardiac MRI image, get the classifier's verdict, and ask the
assistant about it. Answers are informational, not a diagnosis.

Usage:
  cardiochat                       Start the full-screen chat (default)
  cardiochat chat                  Line-mode chat
  cardiochat classify <image>      Classify one image and print the result
  cardiochat status, s             Check the backend
  cardiochat config [show|init|path]
                                   Show, create or locate the config file
  cardiochat version               Print version information
  cardiochat help                  Show this help

Chat Commands:
  /image <path> [question]         Send an image (and optional question)
  /new                             Start a new chat
  /provider [groq|oss]             Show or switch the provider
  /quit                            Leave the chat

Config Commands:
  cardiochat config show           Print the effective configuration
  cardiochat config init [--force] Write the default config file
  cardiochat config path           Print the config file path

Global Flags:
  --api URL         Backend base URL (default: config, then %s)
  --provider NAME   LLM provider: groq or oss
  --config PATH     Read configuration from PATH
  --raw             Show replies without patient-friendly rewriting
  --json            JSON output for classify and status
  -v, --verbose     Log requests to stderr

Environment:
  CARDIOCHAT_API_BASE_URL (or API_BASE_URL), CARDIOCHAT_API_PROVIDER,
  CARDIOCHAT_CHAT_POST_PROCESS, CARDIOCHAT_UPLOAD_WATCH_DIR, ...

Examples:
  cardiochat classify scan.png
  cardiochat classify scan.png --json
  cardiochat --provider oss chat
  cardiochat --api https://example.hf.space status

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fprintUsage(os.Stdout)
}

func fprintUsage(w io.Writer) {
	fmt.Fprintf(w, usageText, defaultBaseURL, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("cardiochat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// HandleVersion prints version information, as JSON with --json.
func HandleVersion(args Args) error {
	if args.JSON {
		return outputJSON(os.Stdout, NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}))
	}
	PrintVersion()
	return nil
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses command-line arguments, excluding the program name.
// Global flags may appear before or after the command.
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsed := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsed
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsed.Rest = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsed

	case "chat":
		return CmdChat, parsed

	case "classify", "c":
		if len(remaining) > 0 {
			parsed.File = remaining[0]
		}
		return CmdClassify, parsed

	case "status", "s", "health":
		return CmdStatus, parsed

	case "config":
		parsed.Subcommand = "show"
		if len(remaining) > 0 {
			parsed.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdConfig, parsed

	case "version", "--version":
		return CmdVersion, parsed

	case "help", "-h", "--help":
		return CmdHelp, parsed

	default:
		parsed.Subcommand = cmd
		return CmdHelp, parsed
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	value := func(i *int, name string) string {
		arg := args[*i]
		if v, ok := strings.CutPrefix(arg, name+"="); ok {
			return v
		}
		if *i+1 < len(args) {
			*i++
			return args[*i]
		}
		return ""
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, _, _ := strings.Cut(arg, "=")

		switch name {
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--json":
			parsed.JSON = true
		case "--raw":
			parsed.Raw = true
		case "--config":
			parsed.ConfigPath = value(&i, name)
		case "--provider":
			parsed.Provider = value(&i, name)
		case "--api":
			parsed.BaseURL = value(&i, name)
		default:
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsed
}

// HandleHelp prints usage. An unknown command prints usage to stderr and
// returns a UsageError.
func HandleHelp(args Args) error {
	if args.Subcommand == "" {
		PrintUsage()
		return nil
	}
	fprintUsage(os.Stderr)
	return &UsageError{Command: args.Subcommand, Reason: "unknown command"}
}
