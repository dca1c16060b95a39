// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/model"
	"github.com/jeranaias/parley/internal/ui/chat"
	"github.com/jeranaias/parley/internal/ui/styles"
	"github.com/jeranaias/parley/internal/voice"
)

// runTUI opens the full-screen chat and blocks until it exits.
func runTUI(ctx context.Context, opts *globalOptions) error {
	if !IsTTY() || !IsStdoutTTY() {
		return usageErrorf("the chat screen needs a terminal; use 'parley chat' or 'parley ask'")
	}

	cfg, path, err := opts.load()
	if err != nil {
		return err
	}
	app, err := newApp(cfg, nil)
	if err != nil {
		return err
	}
	defer app.Close()

	bridge := chat.NewBridge(chat.DefaultSnapshotRate)
	app.Exchange.OnLog(bridge.PublishLog)
	app.Exchange.OnComplete(bridge.PublishCompletion)
	app.OnSessionChange(bridge.PublishSession)

	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	theme := styles.NewTheme(styles.Appearance(cfg.UI.Theme))
	chatOpts := chat.Options{
		Theme:         theme,
		Exchange:      app.Exchange,
		Documents:     app.Documents,
		ModelName:     cfg.Backend.Model,
		MarkdownStyle: styles.MarkdownStyleFor(theme),
		Context:       runCtx,
		Logger:        app.Logger,
	}
	if cfg.UI.DeepDive {
		chatOpts.Quality = model.QualityDeep
	}
	if cfg.Voice.Enabled {
		machine, release := newVoice(cfg, app, bridge)
		defer machine.Close()
		defer release.Stop()
		chatOpts.Voice = machine
		chatOpts.Release = release
	}

	program := tea.NewProgram(chat.New(chatOpts), tea.WithAltScreen())

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		if _, err := program.Run(); err != nil {
			return fmt.Errorf("chat screen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return bridge.Run(gctx, program)
	})
	g.Go(func() error {
		err := config.Watch(gctx, path, func(next *config.Config, err error) {
			reloadConfig(app, bridge, opts, path, next, err)
		})
		if err != nil {
			app.Logger.Warn("config hot reload disabled", zap.Error(err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		program.Quit()
		return nil
	})
	return g.Wait()
}

// reloadConfig applies a changed config file. Flags keep their precedence
// over the file.
func reloadConfig(app *App, bridge *chat.Bridge, opts *globalOptions, path string, next *config.Config, err error) {
	if err == nil {
		err = opts.override(next)
	}
	if err != nil {
		app.Logger.Warn("config reload rejected", zap.String("path", path), zap.Error(err))
		return
	}
	config.SetGlobal(next, path)
	app.Apply(next)
	bridge.Post(chat.ModelChangedMsg{Name: next.Backend.Model})
}

// newVoice builds the push-to-talk machine and the release detector that
// stands in for key-up events the terminal does not report.
func newVoice(cfg *config.Config, app *App, bridge *chat.Bridge) (*voice.Machine, *voice.ReleaseDetector) {
	var cue voice.Cue = voice.NoCue{}
	if cfg.Voice.Cue == "bell" {
		cue = voice.NewBellCue(os.Stderr)
	}

	machine := voice.NewMachine(voice.Options{
		Config: voice.Config{
			TriggerKey: cfg.Voice.TriggerKey,
			LongPress:  cfg.Voice.LongPress(),
			CueDelay:   cfg.Voice.CueDelay(),
			Locale:     cfg.Voice.Locale,
		},
		Recognizer: voice.NewCommandRecognizer(cfg.Voice.RecognizerCommand),
		Sink:       app.Exchange.SubmitVoice,
		Cue:        cue,
		Logger:     app.Logger,
		OnError:    bridge.PublishVoiceError,
		OnState:    bridge.PublishVoiceState,
	})
	release := voice.NewReleaseDetector(voice.SystemClock{}, cfg.Voice.ReleaseGap(), bridge.PublishRelease)
	return machine, release
}
