// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/export"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/chat"
)

const historyFileName = "chat_history"

// lineCommands are the commands only the line-mode chat understands.
var lineCommands = []chat.Command{
	{Name: "/doc", Usage: "/doc", Summary: "show the current document"},
	{Name: "/reload", Usage: "/reload", Summary: "reread the configuration file"},
}

func lineModeCommands() []chat.Command {
	out := make([]chat.Command, 0, len(chat.Commands)+len(lineCommands))
	return append(append(out, chat.Commands...), lineCommands...)
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Line-mode chat for plain terminals",
		Long: `Starts a line-by-line chat with history and line editing.

Commands:
  /upload <file.pdf>  chat with a PDF document
  /clear              drop the document and return to chat
  /deep               toggle detailed responses
  /export [md|json]   save the conversation to a file
  /doc                show the current document
  /reload             reread the configuration file
  /help               show this list
  /quit               exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}
			var console io.Writer
			if opts.verbose {
				console = cmd.ErrOrStderr()
			}
			app, err := newApp(cfg, console)
			if err != nil {
				return err
			}
			defer app.Close()

			s := newChatSession(app, cmd.OutOrStdout())
			s.opts = opts
			return runREPL(cmd.Context(), s)
		},
	}
}

// =============================================================================
// LINE EDITOR LOOP
// =============================================================================

func runREPL(ctx context.Context, s *chatSession) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(completeCommand)

	historyFile := ""
	if dir, err := config.ConfigDir(); err == nil {
		historyFile = filepath.Join(dir, historyFileName)
		if f, err := os.Open(historyFile); err == nil {
			_, _ = line.ReadHistory(f)
			f.Close()
		}
	}
	defer saveHistory(line, historyFile)

	s.banner()
	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := line.Prompt(s.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(s.out)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}
		if strings.TrimSpace(input) != "" {
			line.AppendHistory(input)
		}
		if s.handleLine(ctx, input) {
			return nil
		}
	}
}

func saveHistory(line *liner.State, path string) {
	if path == "" {
		return
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = line.WriteHistory(f)
}

func completeCommand(input string) []string {
	if !strings.HasPrefix(input, "/") {
		return nil
	}
	var out []string
	for _, c := range lineModeCommands() {
		if strings.HasPrefix(c.Name, input) {
			out = append(out, c.Name)
		}
	}
	return out
}

// =============================================================================
// SESSION
// =============================================================================

// chatSession handles the lines of a line-mode chat.
type chatSession struct {
	app       *App
	out       io.Writer
	quality   model.Quality
	printer   *fragmentPrinter
	last      exchange.Completion
	exportDir string
	opts      *globalOptions
}

func newChatSession(app *App, out io.Writer) *chatSession {
	s := &chatSession{app: app, out: out, printer: &fragmentPrinter{w: out}}
	if app.Config.UI.DeepDive {
		s.quality = model.QualityDeep
	}
	app.Exchange.OnLog(s.printer.observe)
	app.Exchange.OnComplete(func(c exchange.Completion) { s.last = c })
	return s
}

func (s *chatSession) banner() {
	fmt.Fprintln(s.out, TitleStyle.Render("parley")+" "+DimStyle.Render(s.app.Client.Model()))
	fmt.Fprintln(s.out, DimStyle.Render("Type a question, /help for commands, Ctrl+D to exit."))
}

func (s *chatSession) prompt() string {
	tag := "chat"
	if sess, ok := s.app.Documents.Current(); ok {
		tag = sess.SourceName
	}
	if s.quality == model.QualityDeep {
		tag += " deep"
	}
	return tag + "> "
}

// handleLine runs one line of input and reports whether the chat should end.
func (s *chatSession) handleLine(ctx context.Context, input string) bool {
	input = strings.TrimSpace(input)
	if input == "" {
		return false
	}
	if cmd, ok := chat.ParseCommand(input); ok {
		return s.runCommand(ctx, cmd)
	}

	if err := s.app.Exchange.Submit(ctx, input, s.quality); err != nil {
		fmt.Fprintf(s.out, "%s %v\n", RenderStatus("warn"), err)
		return false
	}
	if s.last.Err != nil {
		s.printer.abandon()
		fmt.Fprintln(s.out, ErrorStyle.Render(s.last.Turn.Content))
		return false
	}
	s.printer.finish(s.last.Turn)
	return false
}

func (s *chatSession) runCommand(ctx context.Context, cmd chat.Command) bool {
	switch cmd.Name {
	case "/upload":
		if cmd.Args == "" {
			fmt.Fprintln(s.out, "Usage: /upload <file.pdf>")
			return false
		}
		path := chat.UploadPath(cmd.Args)
		fmt.Fprintln(s.out, DimStyle.Render("Uploading "+filepath.Base(path)+"..."))
		sess, err := s.app.Documents.Upload(ctx, path)
		if err != nil {
			fmt.Fprintf(s.out, "%s %v\n", RenderStatus("fail"), err)
			return false
		}
		fmt.Fprintf(s.out, "%s Document ready: %s\n", RenderStatus("ok"), sess.SourceName)

	case "/clear":
		switch {
		case s.app.Documents.State() == document.StateUploading:
			fmt.Fprintln(s.out, "Cannot clear while uploading")
		case s.app.Documents.Clear():
			fmt.Fprintf(s.out, "%s Document cleared, back to chat\n", RenderStatus("ok"))
		default:
			fmt.Fprintln(s.out, "No document to clear")
		}

	case "/deep":
		s.quality = s.quality.Toggle()
		fmt.Fprintln(s.out, s.quality.Label())

	case "/export":
		s.exportLog(cmd.Args)

	case "/doc":
		sess, ok := s.app.Documents.Current()
		if !ok {
			fmt.Fprintln(s.out, "No document. Use /upload <file.pdf>")
			return false
		}
		fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Document"), sess.SourceName)
		fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Session"), sess.ID)
		fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Uploaded"), sess.UploadedAt.Format("15:04:05"))

	case "/help", "/?":
		for _, c := range lineModeCommands() {
			fmt.Fprintf(s.out, "  %-20s %s\n", c.Usage, DimStyle.Render(c.Summary))
		}

	case "/reload":
		s.reload()

	case "/quit", "/exit", "/q":
		return true

	default:
		fmt.Fprintf(s.out, "Unknown command %s. Try /help\n", cmd.Name)
	}
	return false
}

func (s *chatSession) exportLog(format string) {
	exporter, err := export.ForFormat(format, nil)
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", RenderStatus("warn"), err)
		return
	}
	doc := ""
	if sess, ok := s.app.Documents.Current(); ok {
		doc = sess.SourceName
	}
	t := export.NewTranscript(s.app.Exchange.Log(), s.app.Client.Model(), doc)
	path, err := export.ExportToFile(t, exporter, &export.Options{OutputDir: chat.ExportDir(s.exportDir), IncludeTimestamps: true})
	if errors.Is(err, export.ErrEmpty) {
		fmt.Fprintln(s.out, "Nothing to export yet")
		return
	}
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", RenderStatus("fail"), err)
		return
	}
	fmt.Fprintf(s.out, "%s Saved %s\n", RenderStatus("ok"), path)
}

// reload rereads the configuration file and applies it. Flags keep their
// precedence over the file.
func (s *chatSession) reload() {
	cfg, err := config.ReloadGlobal()
	if err == nil && s.opts != nil {
		err = s.opts.override(cfg)
	}
	if err != nil {
		fmt.Fprintf(s.out, "%s %v\n", RenderStatus("fail"), err)
		return
	}
	s.app.Apply(cfg)
	fmt.Fprintf(s.out, "%s Reloaded, model %s\n", RenderStatus("ok"), cfg.Backend.Model)
}
