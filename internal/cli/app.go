// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/parley/internal/backend"
	"github.com/jeranaias/parley/internal/config"
	"github.com/jeranaias/parley/internal/document"
	"github.com/jeranaias/parley/internal/exchange"
	"github.com/jeranaias/parley/internal/logging"
	"github.com/jeranaias/parley/internal/speech"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

// App holds the components shared by the interactive commands.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Client    *backend.Client
	Documents *document.Manager
	Exchange  *exchange.Coordinator
	Announcer *speech.Announcer

	speaker  speech.Speaker
	closeLog func() error

	mu        sync.RWMutex
	onSession []func(*document.Session)
}

// newApp builds the logger and the exchange pipeline from cfg. console, when
// non-nil, also receives log records.
func newApp(cfg *config.Config, console io.Writer) (*App, error) {
	logPath := cfg.Log.Path
	if logPath == "" {
		p, err := config.DefaultLogPath()
		if err != nil {
			return nil, err
		}
		logPath = p
	}

	logger, closeLog, err := logging.New(logging.Options{
		Path:         logPath,
		Level:        cfg.Log.Level,
		MaxSizeMB:    cfg.Log.MaxSizeMB,
		MaxBackups:   cfg.Log.MaxBackups,
		MaxAgeDays:   cfg.Log.MaxAgeDays,
		Console:      console,
		ConsoleLevel: "debug",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open log: %w", err)
	}

	client := backend.NewClientWithConfig(&backend.ClientConfig{
		BaseURL:       cfg.Backend.BaseURL,
		APIKey:        cfg.Backend.APIKey,
		Model:         cfg.Backend.Model,
		Timeout:       cfg.Backend.Timeout(),
		UploadTimeout: cfg.Backend.UploadTimeout(),
		StreamTimeout: cfg.Backend.StreamTimeout(),
		Logger:        logger,
	})

	docs := document.NewManager(client, document.Config{
		MaxUploadBytes: cfg.Document.MaxUploadBytes(),
	}, logger)
	ex := exchange.New(client, docs, exchange.Config{TopK: cfg.Document.TopK}, logger)

	var speaker speech.Speaker = speech.NewCommandSpeaker(cfg.Speech.Command, logger)
	announcer := speech.NewAnnouncer(speaker, speech.Mode(cfg.Speech.Mode))
	ex.OnComplete(announcer.Observe)

	app := &App{
		Config:    cfg,
		Logger:    logger,
		Client:    client,
		Documents: docs,
		Exchange:  ex,
		Announcer: announcer,
		speaker:   speaker,
		closeLog:  closeLog,
	}
	docs.OnSessionChange(app.sessionChanged)

	logger.Info("parley starting",
		zap.String("version", Version),
		zap.String("base_url", client.BaseURL()),
		zap.String("model", client.Model()))
	return app, nil
}

// OnSessionChange registers fn to run after the log has been reset for a new
// or cleared document session.
func (a *App) OnSessionChange(fn func(*document.Session)) {
	a.mu.Lock()
	a.onSession = append(a.onSession, fn)
	a.mu.Unlock()
}

func (a *App) sessionChanged(s *document.Session) {
	a.Exchange.Reset()

	a.mu.RLock()
	hooks := a.onSession
	a.mu.RUnlock()
	for _, fn := range hooks {
		fn(s)
	}
}

// Apply takes the settings that can change without a restart from a
// reloaded configuration.
func (a *App) Apply(cfg *config.Config) {
	a.Client.SetModel(cfg.Backend.Model)
	a.Client.SetAPIKey(cfg.Backend.APIKey)
	a.Announcer.SetMode(speech.Mode(cfg.Speech.Mode))
	a.Logger.Info("configuration reloaded",
		zap.String("model", cfg.Backend.Model),
		zap.String("speech", cfg.Speech.Mode))
}

// Close stops speech playback and flushes the log.
func (a *App) Close() error {
	a.speaker.Stop()
	return a.closeLog()
}
