// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/model"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or create the configuration file",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration (API key redacted)",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg, path, err := opts.load()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, DimStyle.Render("# "+path))
				fmt.Fprint(out, cfg.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the configuration file path",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				path, err := opts.path()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			},
		},
		newConfigInitCmd(opts),
	)
	return cmd
}

// =============================================================================
// CONFIG INIT
// =============================================================================

func newConfigInitCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Set the API key and model interactively",
		Long: `Prompts for the service API key and the model, then writes the
configuration file with owner-only permissions. Existing settings in the
file are kept; press Enter to keep the current value at any prompt.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := opts.path()
			if err != nil {
				return err
			}

			cfg := config.Default()
			if _, err := os.Stat(path); err == nil {
				if err := config.LoadTOML(cfg, path); err != nil {
					return &ConfigError{Path: path, Err: err}
				}
			}
			if err := opts.override(cfg); err != nil {
				return &ConfigError{Path: path, Err: err}
			}

			p := &prompter{in: bufio.NewReader(cmd.InOrStdin()), file: cmd.InOrStdin(), out: cmd.OutOrStdout()}
			if err := runConfigInit(p, cfg); err != nil {
				return err
			}

			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			if err := config.Save(cfg, path); err != nil {
				return &ConfigError{Path: path, Err: err}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Saved %s\n", RenderStatus("ok"), path)
			return nil
		},
	}
}

// runConfigInit asks for the API key and model and stores the answers in cfg.
func runConfigInit(p *prompter, cfg *config.Config) error {
	fmt.Fprintln(p.out, TitleStyle.Render("parley setup"))

	current := "not set"
	if cfg.Backend.APIKey != "" {
		current = "set"
	}
	key, err := p.secret(fmt.Sprintf("API key (%s): ", current))
	if err != nil {
		return err
	}
	if key != "" {
		cfg.Backend.APIKey = key
	}

	models := model.ListModels()
	fmt.Fprintln(p.out)
	for i, m := range models {
		marker := " "
		if m.ID == cfg.Backend.Model {
			marker = "*"
		}
		fmt.Fprintf(p.out, " %s %d) %-14s %s\n", marker, i+1, m.ID, DimStyle.Render(m.Description))
	}

	for {
		answer, err := p.line(fmt.Sprintf("Model [%s]: ", cfg.Backend.Model))
		if err != nil {
			return err
		}
		if answer == "" {
			return nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(models) {
			cfg.Backend.Model = models[n-1].ID
			return nil
		}
		if info, ok := model.GetModelInfo(answer); ok {
			cfg.Backend.Model = info.ID
			return nil
		}
		fmt.Fprintf(p.out, "%s unknown model %q\n", RenderStatus("warn"), answer)
	}
}

// prompter reads answers from the command's input.
type prompter struct {
	in   *bufio.Reader
	file io.Reader
	out  io.Writer
}

// line reads one trimmed line. EOF after a partial line is not an error.
func (p *prompter) line(prompt string) (string, error) {
	fmt.Fprint(p.out, prompt)
	s, err := p.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && s != "") {
		if errors.Is(err, io.EOF) {
			return "", usageErrorf("input ended before setup finished")
		}
		return "", err
	}
	return strings.TrimSpace(s), nil
}

// secret reads a line without echo when the input is a terminal.
func (p *prompter) secret(prompt string) (string, error) {
	f, ok := p.file.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return p.line(prompt)
	}
	fmt.Fprint(p.out, prompt)
	b, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("failed to read API key: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
