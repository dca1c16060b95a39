// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/parley/internal/backend"
)

func newHealthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the service is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := opts.load()
			if err != nil {
				return err
			}

			client := backend.NewClientWithConfig(&backend.ClientConfig{
				BaseURL: cfg.Backend.BaseURL,
				APIKey:  cfg.Backend.APIKey,
				Model:   cfg.Backend.Model,
				Timeout: cfg.Backend.Timeout(),
			})

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Backend.Timeout())
			defer cancel()

			start := time.Now()
			err = client.Health(ctx)
			elapsed := time.Since(start).Round(time.Millisecond)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, TitleStyle.Render("parley health"))
			if err != nil {
				fmt.Fprintf(out, "  %s %s %s\n", RenderLabel("Service"), ValueStyle.Render(client.BaseURL()), RenderStatus("fail"))
				return err
			}
			fmt.Fprintf(out, "  %s %s %s\n", RenderLabel("Service"), ValueStyle.Render(client.BaseURL()), RenderStatus("ok"))
			fmt.Fprintf(out, "  %s %s\n", RenderLabel("Latency"), ValueStyle.Render(elapsed.String()))
			fmt.Fprintf(out, "  %s %s\n", RenderLabel("Model"), ValueStyle.Render(client.Model()))
			return nil
		},
	}
}
