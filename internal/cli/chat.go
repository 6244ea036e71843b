// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-mode chat.
//
// Command: chat
//
// Interactive Commands (during chat):
//   /image <path> [question]   Classify an image and ask about it
//   /new                       Start a new chat
//   /provider [groq|oss]       Show or switch the provider
//   /help                      Show available commands
//   /quit, /q                  Exit chat
//   Ctrl+C                     Cancel the current request
//   Ctrl+D                     Exit chat

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/cardiochat/internal/api"
	"github.com/jeranaias/cardiochat/internal/conversation"
	"github.com/jeranaias/cardiochat/internal/model"
	"github.com/jeranaias/cardiochat/internal/upload"
	"github.com/jeranaias/cardiochat/internal/ui/components"
	"github.com/jeranaias/cardiochat/internal/ui/styles"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI reads input lines with history navigation, persisted to
// ~/.cardiochat/chat_history.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a line reader and loads saved history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	historyFile, err := DataPath("chat_history")
	if err != nil {
		historyFile = ""
	}

	cli := &ChatCLI{line: line, historyFile: historyFile}
	cli.LoadHistory()
	return cli
}

// LoadHistory loads command history from file.
func (c *ChatCLI) LoadHistory() {
	if c.historyFile == "" {
		return
	}
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory writes history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if c.historyFile == "" {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

var chatCommands = []string{"/image ", "/new", "/provider ", "/help", "/quit"}

func completeCommand(line string) []string {
	if !strings.HasPrefix(line, "/") {
		return nil
	}
	var out []string
	for _, c := range chatCommands {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

// =============================================================================
// CHAT LOOP
// =============================================================================

// inputReader is satisfied by *ChatCLI.
type inputReader interface {
	ReadInput(prompt string) (string, error)
}

// chatREPL drives a session from line input.
type chatREPL struct {
	session  *conversation.Session
	uploads  *upload.Controller
	in       inputReader
	out      io.Writer
	renderer *components.TurnRenderer

	// interrupt derives a per-request context that Ctrl+C cancels.
	interrupt func(context.Context) (context.Context, context.CancelFunc)
}

// HandleChat handles "cardiochat chat".
func HandleChat(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	cfg, err := LoadConfig(args)
	if err != nil {
		return err
	}
	rt, err := NewRuntime(cfg, RuntimeOptions{})
	if err != nil {
		return err
	}
	defer rt.Close()

	input := NewChatCLI()
	defer input.Close()

	theme := styles.NewTheme(cfg.UI.Theme)
	repl := &chatREPL{
		session:  rt.Session,
		uploads:  rt.Uploads,
		in:       input,
		out:      os.Stdout,
		renderer: components.NewTurnRenderer(theme, GetTerminalWidth(), !cfg.Chat.PostProcess),
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
	}
	return repl.Run(context.Background())
}

// Run prints the greeting and reads lines until /quit or EOF.
func (r *chatREPL) Run(ctx context.Context) error {
	r.printWelcome()

	for {
		line, err := r.in.ReadInput("you> ")
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := r.handleCommand(ctx, line); quit {
				return nil
			}
			continue
		}
		r.sendText(ctx, line)
	}
}

func (r *chatREPL) printWelcome() {
	fmt.Fprintln(r.out, TitleStyle.Render("cardiochat"))
	fmt.Fprintln(r.out, DimStyle.Render(fmt.Sprintf("Provider: %s. Type /help for commands, /quit to exit.",
		r.session.Provider().Label())))
	if turn, ok := r.session.Snapshot().LastTurn(); ok {
		r.printTurn(turn)
	}
}

// handleCommand runs a slash command and reports whether to exit.
func (r *chatREPL) handleCommand(ctx context.Context, line string) bool {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		r.printHelp()

	case "/new":
		r.session.NewChat()
		r.uploads.Clear()
		if turn, ok := r.session.Snapshot().LastTurn(); ok {
			r.printTurn(turn)
		}

	case "/provider":
		r.switchProvider(rest)

	case "/image", "/img":
		if rest == "" {
			r.printError("Usage: /image <path> [question]")
			break
		}
		path, question := splitImageArgs(rest)
		r.sendImage(ctx, path, question)

	default:
		fmt.Fprintln(r.out, WarningStyle.Render("Unknown command "+name+". Type /help for commands."))
	}
	return false
}

func (r *chatREPL) printHelp() {
	fmt.Fprintln(r.out, SectionStyle.Render("Commands"))
	fmt.Fprintln(r.out, RenderField("/image <path>", "Classify an image; text after the path is your question"))
	fmt.Fprintln(r.out, RenderField("/new", "Start a new chat"))
	fmt.Fprintln(r.out, RenderField("/provider [name]", "Show or switch provider (groq, oss)"))
	fmt.Fprintln(r.out, RenderField("/quit", "Exit"))
}

func (r *chatREPL) switchProvider(name string) {
	if name == "" {
		current := r.session.Provider()
		fmt.Fprintln(r.out, RenderField("Provider", current.Label()+" ("+current.String()+")"))
		return
	}
	p, err := api.ParseProvider(name)
	if err != nil {
		r.printError(err.Error())
		return
	}
	if err := r.session.SetProvider(p); err != nil {
		r.printError(api.UserMessage(err))
		return
	}
	fmt.Fprintln(r.out, SuccessStyle.Render("[OK]")+" Provider: "+p.Label())
}

func (r *chatREPL) sendText(ctx context.Context, text string) {
	ctx, cancel := r.requestContext(ctx)
	defer cancel()

	r.printThinking("Thinking")
	reply, err := r.session.SubmitText(ctx, text)
	if err != nil {
		r.printFailure(err)
		return
	}
	r.printTurn(reply)
}

func (r *chatREPL) sendImage(ctx context.Context, path, question string) {
	if err := r.uploads.SelectFile(expandHome(path)); err != nil {
		if errors.Is(err, upload.ErrSelectionIgnored) {
			r.printError(path + " is not an image.")
			return
		}
		r.printError(api.UserMessage(err))
		return
	}
	defer r.uploads.Remove()

	if sel := r.uploads.Snapshot().Selection; sel != nil {
		fmt.Fprintln(r.out, DimStyle.Render(components.ChipText(sel, GetTerminalWidth())))
	}
	img, ok := r.uploads.Current()
	if !ok {
		return
	}

	ctx, cancel := r.requestContext(ctx)
	defer cancel()

	r.printThinking("Analyzing image")
	reply, err := r.session.SubmitImage(ctx, img, question)
	if err != nil {
		r.printFailure(err)
		return
	}
	if p := r.session.Prediction(); p != nil {
		fmt.Fprintln(r.out, components.BadgeText(p))
	}
	r.printTurn(reply)
}

func (r *chatREPL) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.interrupt == nil {
		return context.WithCancel(ctx)
	}
	return r.interrupt(ctx)
}

func (r *chatREPL) printTurn(t model.Turn) {
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, r.renderer.Render(t))
	fmt.Fprintln(r.out)
}

func (r *chatREPL) printThinking(what string) {
	fmt.Fprintln(r.out, DimStyle.Render(what+"..."))
}

func (r *chatREPL) printFailure(err error) {
	switch {
	case conversation.IsDiscarded(err):
		r.printError("Request cancelled.")
	case errors.Is(err, context.Canceled):
		r.printError("Request cancelled.")
	default:
		r.printError(api.UserMessage(err))
	}
}

func (r *chatREPL) printError(msg string) {
	fmt.Fprintln(r.out, styles.RenderError(msg))
}

// splitImageArgs separates the image path from the question. Paths with
// spaces can be quoted.
func splitImageArgs(s string) (path, question string) {
	if q := s[0]; q == '"' || q == '\'' {
		if end := strings.IndexByte(s[1:], q); end >= 0 {
			return s[1 : end+1], strings.TrimSpace(s[end+2:])
		}
	}
	path, question, _ = strings.Cut(s, " ")
	return path, strings.TrimSpace(question)
}

// expandHome expands a leading ~/.
func expandHome(path string) string {
	if rest, ok := strings.CutPrefix(path, "~/"); ok {
		if home, err := os.UserHomeDir(); err == nil {
			return home + string(os.PathSeparator) + rest
		}
	}
	return path
}
