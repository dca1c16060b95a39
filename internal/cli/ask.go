// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/speech"
	"github.com/jeranaias/parley/internal/ui/styles"
)

type askOptions struct {
	doc  string
	deep bool
	raw  bool
}

func newAskCmd(opts *globalOptions) *cobra.Command {
	a := &askOptions{}
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask a single question",
		Long: `Sends one question and prints the answer.

Without --doc the answer streams as it arrives. With --doc the PDF is
uploaded first and the answer is grounded in it. When no question is given
on the command line it is read from standard input.`,
		Example: `  parley ask "What is a goroutine?"
  parley ask --deep "Compare channels and mutexes"
  parley ask --doc report.pdf "What were the Q3 results?"
  git log -1 | parley ask --raw`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, opts, a, args)
		},
	}
	cmd.Flags().StringVarP(&a.doc, "doc", "d", "", "PDF to upload and ground the answer in")
	cmd.Flags().BoolVar(&a.deep, "deep", false, "ask for a detailed answer")
	cmd.Flags().BoolVar(&a.raw, "raw", false, "print plain text instead of rendered markdown")
	return cmd
}

func runAsk(cmd *cobra.Command, opts *globalOptions, a *askOptions, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" {
		in := cmd.InOrStdin()
		if !isTerminalFile(in) {
			b, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("failed to read question: %w", err)
			}
			question = strings.TrimSpace(string(b))
		}
	}
	if question == "" {
		return usageErrorf("ask needs a question")
	}

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
	// The process exits as soon as the answer is printed.
	app.Announcer.SetMode(speech.ModeOff)

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	render := !a.raw && isTerminalFile(out)

	if a.doc != "" {
		fmt.Fprintln(errOut, DimStyle.Render("Uploading "+a.doc+"..."))
		sess, err := app.Documents.Upload(ctx, a.doc)
		if err != nil {
			return err
		}
		fmt.Fprintln(errOut, DimStyle.Render("Indexed "+sess.SourceName))
	}

	quality := model.QualityBrief
	if a.deep || cfg.UI.DeepDive {
		quality = model.QualityDeep
	}

	var done exchange.Completion
	app.Exchange.OnComplete(func(c exchange.Completion) { done = c })

	var printer *fragmentPrinter
	if !render {
		printer = &fragmentPrinter{w: out}
		app.Exchange.OnLog(printer.observe)
	}

	if err := app.Exchange.Submit(ctx, question, quality); err != nil {
		return err
	}

	if done.Err != nil {
		if printer != nil {
			printer.abandon()
		}
		return fmt.Errorf("%s: %w", exchange.ApologyMessage, done.Err)
	}

	if printer != nil {
		printer.finish(done.Turn)
		return nil
	}
	theme := styles.NewTheme(styles.Appearance(cfg.UI.Theme))
	md := styles.NewMarkdown(styles.MarkdownStyleFor(theme))
	fmt.Fprintln(out, md.Render(done.Turn.Content, GetTerminalWidth()))
	return nil
}

// =============================================================================
// STREAMED OUTPUT
// =============================================================================

// fragmentPrinter writes an assistant turn to w while it streams. Only
// pending turns are printed as they grow; finish prints whatever the final
// turn adds.
type fragmentPrinter struct {
	w io.Writer

	mu      sync.Mutex
	turnID  string
	printed string
}

func (p *fragmentPrinter) observe(l model.Log) {
	last, ok := l.Last()
	if !ok || !last.IsPending() {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeLocked(last)
}

// finish prints the rest of the completed turn and ends the line.
func (p *fragmentPrinter) finish(t model.Turn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.writeLocked(t)
	if !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.w)
	}
}

// abandon ends a partially printed line so an error starts on its own line.
func (p *fragmentPrinter) abandon() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.printed != "" && !strings.HasSuffix(p.printed, "\n") {
		fmt.Fprintln(p.w)
	}
}

func (p *fragmentPrinter) writeLocked(t model.Turn) {
	if t.ID != p.turnID {
		p.turnID = t.ID
		p.printed = ""
	}
	if !strings.HasPrefix(t.Content, p.printed) {
		return
	}
	fmt.Fprint(p.w, t.Content[len(p.printed):])
	p.printed = t.Content
}
