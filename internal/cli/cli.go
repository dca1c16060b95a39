// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/config"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// GLOBAL OPTIONS
// =============================================================================

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	configPath string
	baseURL    string
	model      string
	verbose    bool
}

// path returns the config file in use.
func (o *globalOptions) path() (string, error) {
	if o.configPath != "" {
		return o.configPath, nil
	}
	p, err := config.ConfigPath()
	if err != nil {
		return "", &ConfigError{Err: err}
	}
	return p, nil
}

// override applies the flags, which take precedence over every other source.
func (o *globalOptions) override(cfg *config.Config) error {
	if o.baseURL == "" && o.model == "" {
		return nil
	}
	if o.baseURL != "" {
		cfg.Backend.BaseURL = o.baseURL
	}
	if o.model != "" {
		cfg.Backend.Model = o.model
	}
	cfg.SetDefaults()
	return cfg.Validate()
}

// load reads the configuration and publishes it as the global config.
func (o *globalOptions) load() (*config.Config, string, error) {
	path, err := o.path()
	if err != nil {
		return nil, "", err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, &ConfigError{Err: err}
	}
	if err := o.override(cfg); err != nil {
		return nil, path, &ConfigError{Path: path, Err: err}
	}
	config.SetGlobal(cfg, path)
	return cfg, path, nil
}

// =============================================================================
// ROOT COMMAND
// =============================================================================

// NewRootCmd builds the parley command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "parley",
		Short: "Terminal chat with push-to-talk and PDF grounding",
		Long: `parley is a terminal chat client for a text-generation service.

Ask questions freely, or upload a PDF and get answers grounded in it.
Hold the space bar to speak a question instead of typing it.

Running parley without a subcommand opens the full-screen chat.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), opts)
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &UsageError{Reason: err.Error()}
	})

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.parley/config.toml)")
	pf.StringVar(&opts.baseURL, "base-url", "", "service base URL")
	pf.StringVar(&opts.model, "model", "", "model to use")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "log diagnostics to stderr")

	root.AddCommand(
		newAskCmd(opts),
		newChatCmd(opts),
		newHealthCmd(opts),
		newConfigCmd(opts),
		newVersionCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		DisplayError(os.Stderr, err)
		return GetExitCode(err)
	}
	return ExitSuccess
}

// =============================================================================
// VERSION
// =============================================================================

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "parley %s\n", Version)
			fmt.Fprintf(out, "  commit: %s\n", GitCommit)
			fmt.Fprintf(out, "  built:  %s\n", BuildDate)
			fmt.Fprintf(out, "  go:     %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
